package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"opstriage-agent/src/contracts"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS task_metrics (
	task_id          TEXT PRIMARY KEY,
	start_time       TEXT NOT NULL,
	end_time         TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL,
	status           TEXT NOT NULL,
	cpu_usage        DOUBLE PRECISION NOT NULL,
	memory_usage     INTEGER NOT NULL,
	error_count      INTEGER NOT NULL
);`

// PostgresStore serves task metrics from Postgres; used when the worker runs
// against shared infrastructure instead of a local file.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to Postgres and ensures the metrics schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping metrics database: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure metrics schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Lookup(ctx context.Context, taskID string) (*contracts.MetricsRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, start_time, end_time, duration_seconds, status,
		       cpu_usage, memory_usage, error_count
		FROM task_metrics WHERE task_id = $1`, taskID)

	var rec contracts.MetricsRecord
	err := row.Scan(&rec.TaskID, &rec.StartTime, &rec.EndTime, &rec.DurationSeconds,
		&rec.Status, &rec.CPUUsagePct, &rec.MemoryUsageMB, &rec.ErrorCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics row: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
