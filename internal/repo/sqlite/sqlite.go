package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps everything in one SQLite file. Timestamps are stored as unix
// nanoseconds; rowid breaks ties between equal timestamps.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS targets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_targets_created_at_id ON targets (created_at, id);

CREATE TABLE IF NOT EXISTS results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id   TEXT NOT NULL,
	up          INTEGER NOT NULL,
	status_code INTEGER NOT NULL,
	latency_ms  REAL NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	metrics     TEXT,
	checked_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_target_time ON results (target_id, checked_at, id);

CREATE TABLE IF NOT EXISTS sli_records (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id         TEXT NOT NULL,
	target_name       TEXT NOT NULL DEFAULT '',
	evaluated_at      INTEGER NOT NULL,
	period            TEXT NOT NULL,
	window_ms         INTEGER NOT NULL,
	expected_checks   INTEGER NOT NULL,
	actual_checks     INTEGER NOT NULL,
	missing_checks    INTEGER NOT NULL,
	successful_checks INTEGER NOT NULL,
	sli               REAL NOT NULL,
	avg_response_time REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sli_target_time ON sli_records (target_id, evaluated_at, id);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (id, name, url, created_at) VALUES (?, ?, ?, ?)`,
		string(t.ID), t.Name, t.URL, t.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, created_at FROM targets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var (
			t       domain.Target
			id      string
			created int64
		)
		if err := rows.Scan(&id, &t.Name, &t.URL, &created); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		t.ID = domain.TargetID(id)
		t.CreatedAt = fromNanos(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	var (
		t       domain.Target
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, url, created_at FROM targets WHERE id = ?`, string(id),
	).Scan(&t.Name, &t.URL, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	t.ID = id
	t.CreatedAt = fromNanos(created)
	return &t, nil
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- HistoryStore ----

func (s *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	var metrics sql.NullString
	if len(r.Metrics) > 0 {
		b, err := json.Marshal(r.Metrics)
		if err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
		metrics = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (target_id, up, status_code, latency_ms, reason, metrics, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.TargetID), r.Up, r.StatusCode, r.LatencyMS, r.Reason, metrics, r.CheckedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

const resultCols = `target_id, up, status_code, latency_ms, reason, metrics, checked_at`

func (s *Store) QueryWindow(ctx context.Context, id domain.TargetID, from, to time.Time, opts repo.QueryOptions) ([]domain.HistoryRecord, error) {
	q := `SELECT ` + resultCols + ` FROM results
	       WHERE target_id = ? AND checked_at >= ? AND checked_at <= ?`
	if opts.Descending {
		q += ` ORDER BY checked_at DESC, id DESC`
	} else {
		q += ` ORDER BY checked_at, id`
	}
	args := []any{string(id), from.UnixNano(), to.UnixNano()}
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	return s.queryResults(ctx, q, args...)
}

func (s *Store) QueryLatest(ctx context.Context, id domain.TargetID, n int) ([]domain.HistoryRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.queryResults(ctx,
		`SELECT `+resultCols+` FROM results WHERE target_id = ?
		  ORDER BY checked_at DESC, id DESC LIMIT ?`, string(id), n)
}

func (s *Store) queryResults(ctx context.Context, q string, args ...any) ([]domain.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryRecord
	for rows.Next() {
		var (
			r       domain.HistoryRecord
			tid     string
			metrics sql.NullString
			checked int64
		)
		if err := rows.Scan(&tid, &r.Up, &r.StatusCode, &r.LatencyMS, &r.Reason, &metrics, &checked); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.TargetID = domain.TargetID(tid)
		r.CheckedAt = fromNanos(checked)
		if metrics.Valid && metrics.String != "" {
			if err := json.Unmarshal([]byte(metrics.String), &r.Metrics); err != nil {
				return nil, fmt.Errorf("decode metrics: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- SliStore ----

func (s *Store) AppendSLI(ctx context.Context, r *domain.SliRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sli_records
		   (target_id, target_name, evaluated_at, period, window_ms, expected_checks,
		    actual_checks, missing_checks, successful_checks, sli, avg_response_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.TargetID), r.TargetName, r.EvaluatedAt.UnixNano(), r.Period, r.WindowMS, r.ExpectedChecks,
		r.ActualChecks, r.MissingChecks, r.SuccessfulChecks, r.SLI, r.AvgResponseTime)
	if err != nil {
		return fmt.Errorf("insert sli: %w", err)
	}
	return nil
}

func (s *Store) LatestSLI(ctx context.Context, id domain.TargetID) (*domain.SliRecord, error) {
	var (
		r         domain.SliRecord
		evaluated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT target_name, evaluated_at, period, window_ms, expected_checks,
		        actual_checks, missing_checks, successful_checks, sli, avg_response_time
		   FROM sli_records WHERE target_id = ?
		  ORDER BY evaluated_at DESC, id DESC LIMIT 1`, string(id),
	).Scan(&r.TargetName, &evaluated, &r.Period, &r.WindowMS, &r.ExpectedChecks,
		&r.ActualChecks, &r.MissingChecks, &r.SuccessfulChecks, &r.SLI, &r.AvgResponseTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest sli: %w", err)
	}
	r.TargetID = id
	r.EvaluatedAt = fromNanos(evaluated)
	return &r, nil
}
