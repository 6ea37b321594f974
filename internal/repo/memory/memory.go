package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/repo"
)

type Store struct {
	mu      sync.RWMutex
	targets map[domain.TargetID]*domain.Target
	order   []domain.TargetID
	history map[domain.TargetID][]domain.HistoryRecord
	slis    map[domain.TargetID][]domain.SliRecord
}

func New() *Store {
	return &Store{
		targets: make(map[domain.TargetID]*domain.Target),
		history: make(map[domain.TargetID][]domain.HistoryRecord),
		slis:    make(map[domain.TargetID][]domain.SliRecord),
	}
}

func (m *Store) Close() error { return nil }

// ---- TargetStore ----

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if _, ok := m.targets[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.targets[id])
	}
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) Delete(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.targets, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// ---- HistoryStore ----

func (m *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	rows := m.history[r.TargetID]
	// insert after every record with an equal or earlier timestamp
	i := sort.Search(len(rows), func(i int) bool { return rows[i].CheckedAt.After(r.CheckedAt) })
	rows = append(rows, domain.HistoryRecord{})
	copy(rows[i+1:], rows[i:])
	rows[i] = clone(*r)
	m.history[r.TargetID] = rows
	return nil
}

func (m *Store) QueryWindow(ctx context.Context, id domain.TargetID, from, to time.Time, opts repo.QueryOptions) ([]domain.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[id]
	lo := sort.Search(len(rows), func(i int) bool { return !rows[i].CheckedAt.Before(from) })
	hi := sort.Search(len(rows), func(i int) bool { return rows[i].CheckedAt.After(to) })
	if lo >= hi {
		return nil, nil
	}

	out := make([]domain.HistoryRecord, 0, hi-lo)
	if opts.Descending {
		for i := hi - 1; i >= lo; i-- {
			out = append(out, clone(rows[i]))
			if opts.Limit > 0 && len(out) == opts.Limit {
				break
			}
		}
		return out, nil
	}
	for i := lo; i < hi; i++ {
		out = append(out, clone(rows[i]))
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *Store) QueryLatest(ctx context.Context, id domain.TargetID, n int) ([]domain.HistoryRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[id]
	out := make([]domain.HistoryRecord, 0, n)
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, clone(rows[i]))
	}
	return out, nil
}

// ---- SliStore ----

func (m *Store) AppendSLI(ctx context.Context, r *domain.SliRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slis[r.TargetID] = append(m.slis[r.TargetID], *r)
	return nil
}

func (m *Store) LatestSLI(ctx context.Context, id domain.TargetID) (*domain.SliRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.slis[id]
	if len(rows) == 0 {
		return nil, repo.ErrNotFound
	}
	latest := rows[0]
	for _, r := range rows[1:] {
		if !r.EvaluatedAt.Before(latest.EvaluatedAt) {
			latest = r
		}
	}
	return &latest, nil
}

func clone(r domain.HistoryRecord) domain.HistoryRecord {
	if r.Metrics != nil {
		m := make(map[string]float64, len(r.Metrics))
		for k, v := range r.Metrics {
			m[k] = v
		}
		r.Metrics = m
	}
	return r
}
