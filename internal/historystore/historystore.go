// Package historystore persists completed RunSummary values to Postgres
// using a pgxpool connection pool. It only ever writes completed
// summaries: in-flight envelopes are never persisted.
package historystore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pilot-net/bulkfetch/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS bulkfetch_runs (
	run_id TEXT PRIMARY KEY,
	config_url TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	request_count BIGINT NOT NULL,
	record_count BIGINT NOT NULL,
	error_count BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL,
	summary JSONB NOT NULL
)`

// Store persists RunSummary rows to Postgres via a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history store pool: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating history store schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Record persists one completed RunSummary.
func (s *Store) Record(ctx context.Context, summary model.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO bulkfetch_runs
			(run_id, config_url, started_at, finished_at, request_count, record_count, error_count, duration_ms, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			request_count = EXCLUDED.request_count,
			record_count = EXCLUDED.record_count,
			error_count = EXCLUDED.error_count,
			duration_ms = EXCLUDED.duration_ms,
			summary = EXCLUDED.summary
	`,
		summary.RunID.String(), summary.ConfigURL, summary.StartedAt, summary.FinishedAt,
		summary.RequestCount, summary.RecordCount, summary.ErrorCount, summary.DurationMS, data,
	)
	if err != nil {
		return fmt.Errorf("recording run summary: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, config_url, started_at, finished_at, request_count, record_count, error_count, duration_ms
		FROM bulkfetch_runs
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var runID string
		if err := rows.Scan(&runID, &r.ConfigURL, &r.StartedAt, &r.FinishedAt, &r.RequestCount, &r.RecordCount, &r.ErrorCount, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}
		r.RunID, _ = uuid.Parse(runID)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunRecord is a lightweight projection of a persisted run, without the
// full JSONB summary payload.
type RunRecord struct {
	RunID        uuid.UUID
	ConfigURL    string
	StartedAt    time.Time
	FinishedAt   time.Time
	RequestCount int64
	RecordCount  int64
	ErrorCount   int64
	DurationMS   int64
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }
