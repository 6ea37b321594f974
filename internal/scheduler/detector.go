package scheduler

import (
	"context"
	"fmt"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/repo"
)

// Detector compares a target's newest record with the one before it. A
// single differing pair is enough to report a change; there is no debounce.
type Detector struct {
	History repo.HistoryStore
}

type Change struct {
	Changed bool
	Up      bool // state after the change
}

func (d *Detector) Detect(ctx context.Context, id domain.TargetID) (Change, error) {
	recs, err := d.History.QueryLatest(ctx, id, 2)
	if err != nil {
		return Change{}, fmt.Errorf("latest records: %w", err)
	}
	// first ever check has nothing to compare against
	if len(recs) < 2 {
		return Change{}, nil
	}
	cur, prev := recs[0], recs[1]
	return Change{Changed: cur.Up != prev.Up, Up: cur.Up}, nil
}
