package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wycheng/smartflow/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL.
type RunStore struct {
	pool *pgxpool.Pool
}

var _ domain.RunStore = (*RunStore)(nil)

// NewRunStore creates a RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Create persists one pipeline run record.
func (s *RunStore) Create(ctx context.Context, run domain.PipelineRun) error {
	var stats []byte
	if run.Stats != nil {
		encoded, err := json.Marshal(run.Stats)
		if err != nil {
			return fmt.Errorf("postgres: encode run stats: %w", err)
		}
		stats = encoded
	}

	const query = `
		INSERT INTO pipeline_runs (
			id, started_at, finished_at, event_count, signal_count, stats, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt,
		run.EventCount, run.SignalCount, stats, run.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: create pipeline run %s: %w", run.ID, err)
	}
	return nil
}

// ListRecent returns the most recent pipeline runs, newest first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	const query = `
		SELECT id, started_at, finished_at, event_count, signal_count, stats, error
		FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		var (
			r     domain.PipelineRun
			stats []byte
		)
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt,
			&r.EventCount, &r.SignalCount, &stats, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan pipeline run: %w", err)
		}
		if len(stats) > 0 {
			if err := json.Unmarshal(stats, &r.Stats); err != nil {
				return nil, fmt.Errorf("postgres: decode run stats: %w", err)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent runs: %w", err)
	}
	return runs, nil
}
