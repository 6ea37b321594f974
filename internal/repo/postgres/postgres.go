package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects, pings and applies the schema.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool, log: log}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO targets (id, name, url, created_at)
		 VALUES ($1, $2, $3, $4)`,
		string(t.ID), t.Name, t.URL, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, url, created_at
		   FROM targets
		  ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var t domain.Target
		var id string
		if err := rows.Scan(&id, &t.Name, &t.URL, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		t.ID = domain.TargetID(id)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	var t domain.Target
	var tid string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, url, created_at FROM targets WHERE id = $1`, string(id),
	).Scan(&tid, &t.Name, &t.URL, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	t.ID = domain.TargetID(tid)
	return &t, nil
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- HistoryStore ----

func (s *Store) Append(ctx context.Context, cr *domain.CheckResult) error {
	if cr.CheckedAt.IsZero() {
		cr.CheckedAt = time.Now().UTC()
	}
	var metrics []byte
	if len(cr.Metrics) > 0 {
		b, err := json.Marshal(cr.Metrics)
		if err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
		metrics = b
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results
		   (target_id, up, status_code, latency_ms, reason, metrics, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7)`,
		string(cr.TargetID), cr.Up, cr.StatusCode, cr.LatencyMS, cr.Reason, metrics, cr.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) QueryWindow(ctx context.Context, id domain.TargetID, from, to time.Time, opts repo.QueryOptions) ([]domain.HistoryRecord, error) {
	q := `SELECT target_id, up, status_code, latency_ms, reason, metrics, checked_at
	        FROM results
	       WHERE target_id = $1 AND checked_at BETWEEN $2 AND $3`
	if opts.Descending {
		q += ` ORDER BY checked_at DESC, id DESC`
	} else {
		q += ` ORDER BY checked_at, id`
	}
	args := []any{string(id), from, to}
	if opts.Limit > 0 {
		q += ` LIMIT $4`
		args = append(args, opts.Limit)
	}
	return s.queryResults(ctx, q, args...)
}

func (s *Store) QueryLatest(ctx context.Context, id domain.TargetID, n int) ([]domain.HistoryRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.queryResults(ctx,
		`SELECT target_id, up, status_code, latency_ms, reason, metrics, checked_at
		   FROM results
		  WHERE target_id = $1
		  ORDER BY checked_at DESC, id DESC
		  LIMIT $2`, string(id), n)
}

func (s *Store) queryResults(ctx context.Context, q string, args ...any) ([]domain.HistoryRecord, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryRecord
	for rows.Next() {
		var (
			r       domain.HistoryRecord
			tid     string
			metrics []byte
		)
		if err := rows.Scan(&tid, &r.Up, &r.StatusCode, &r.LatencyMS, &r.Reason, &metrics, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.TargetID = domain.TargetID(tid)
		r.CheckedAt = r.CheckedAt.UTC()
		if len(metrics) > 0 {
			if err := json.Unmarshal(metrics, &r.Metrics); err != nil {
				s.log.Warn("pg_metrics_decode_error", zap.String("target_id", tid), zap.Error(err))
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- SliStore ----

func (s *Store) AppendSLI(ctx context.Context, r *domain.SliRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sli_records
		   (target_id, target_name, evaluated_at, period, window_ms, expected_checks,
		    actual_checks, missing_checks, successful_checks, sli, avg_response_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(r.TargetID), r.TargetName, r.EvaluatedAt, r.Period, r.WindowMS, r.ExpectedChecks,
		r.ActualChecks, r.MissingChecks, r.SuccessfulChecks, r.SLI, r.AvgResponseTime,
	)
	if err != nil {
		return fmt.Errorf("insert sli: %w", err)
	}
	return nil
}

func (s *Store) LatestSLI(ctx context.Context, id domain.TargetID) (*domain.SliRecord, error) {
	var (
		r   domain.SliRecord
		tid string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT target_id, target_name, evaluated_at, period, window_ms, expected_checks,
		        actual_checks, missing_checks, successful_checks, sli, avg_response_time
		   FROM sli_records
		  WHERE target_id = $1
		  ORDER BY evaluated_at DESC, id DESC
		  LIMIT 1`, string(id),
	).Scan(&tid, &r.TargetName, &r.EvaluatedAt, &r.Period, &r.WindowMS, &r.ExpectedChecks,
		&r.ActualChecks, &r.MissingChecks, &r.SuccessfulChecks, &r.SLI, &r.AvgResponseTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest sli: %w", err)
	}
	r.TargetID = domain.TargetID(tid)
	r.EvaluatedAt = r.EvaluatedAt.UTC()
	return &r, nil
}
