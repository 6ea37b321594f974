package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/uptimesli/internal/domain"
)

// ErrNotFound is returned when a target (or its latest SLI) does not exist.
var ErrNotFound = errors.New("not found")

// Ports. Every backend implements all three.

// TargetStore is the registry of monitored servers. Sweeps only call List.
type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	List(ctx context.Context) ([]domain.Target, error)
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	Delete(ctx context.Context, id domain.TargetID) error
}

// QueryOptions shapes a window query. Limit <= 0 means no limit.
type QueryOptions struct {
	Limit      int
	Descending bool
}

// HistoryStore is an append-only, per-target, time-ordered log of check
// results. Records with equal timestamps keep their insertion order.
type HistoryStore interface {
	Append(ctx context.Context, r *domain.CheckResult) error
	// QueryWindow returns records with from <= CheckedAt <= to.
	QueryWindow(ctx context.Context, id domain.TargetID, from, to time.Time, opts QueryOptions) ([]domain.HistoryRecord, error)
	// QueryLatest returns up to n records, newest first.
	QueryLatest(ctx context.Context, id domain.TargetID, n int) ([]domain.HistoryRecord, error)
}

// SliStore keeps one appended SliRecord per target per evaluation.
type SliStore interface {
	AppendSLI(ctx context.Context, r *domain.SliRecord) error
	// LatestSLI returns ErrNotFound when the target was never evaluated.
	LatestSLI(ctx context.Context, id domain.TargetID) (*domain.SliRecord, error)
}

// Store bundles the three ports, as every backend provides them together.
type Store interface {
	TargetStore
	HistoryStore
	SliStore
	Close() error
}
