package postgres

import (
	"context"
	"fmt"
)

// History rows carry no foreign key: deleting a target from the registry
// leaves its history in place.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS targets (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL DEFAULT '',
  url        TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS results (
  id          BIGSERIAL PRIMARY KEY,
  target_id   TEXT NOT NULL,
  up          BOOLEAN NOT NULL,
  status_code INTEGER NOT NULL,
  latency_ms  DOUBLE PRECISION NOT NULL,
  reason      TEXT NOT NULL DEFAULT '',
  metrics     JSONB NULL,
  checked_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_target_time ON results (target_id, checked_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS sli_records (
  id                BIGSERIAL PRIMARY KEY,
  target_id         TEXT NOT NULL,
  target_name       TEXT NOT NULL DEFAULT '',
  evaluated_at      TIMESTAMPTZ NOT NULL,
  period            TEXT NOT NULL,
  window_ms         BIGINT NOT NULL,
  expected_checks   INTEGER NOT NULL,
  actual_checks     INTEGER NOT NULL,
  missing_checks    INTEGER NOT NULL,
  successful_checks INTEGER NOT NULL,
  sli               DOUBLE PRECISION NOT NULL,
  avg_response_time DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sli_target_time ON sli_records (target_id, evaluated_at DESC);
`

// Migrate applies the idempotent schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
