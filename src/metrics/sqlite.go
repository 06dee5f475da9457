package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"opstriage-agent/src/contracts"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS task_metrics (
	task_id          TEXT PRIMARY KEY,
	start_time       TEXT NOT NULL,
	end_time         TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL,
	status           TEXT NOT NULL,
	cpu_usage        REAL NOT NULL,
	memory_usage     INTEGER NOT NULL,
	error_count      INTEGER NOT NULL
);`

// SQLiteStore serves task metrics from a local SQLite file. It is the default
// store for single-node deployments and for seeded sample data.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the metrics database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure metrics schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, taskID string) (*contracts.MetricsRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, start_time, end_time, duration_seconds, status,
		       cpu_usage, memory_usage, error_count
		FROM task_metrics WHERE task_id = ?`, taskID)

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

// Insert upserts one metrics row; used by the sample data seeder.
func (s *SQLiteStore) Insert(ctx context.Context, rec contracts.MetricsRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_metrics
			(task_id, start_time, end_time, duration_seconds, status,
			 cpu_usage, memory_usage, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration_seconds = excluded.duration_seconds,
			status = excluded.status,
			cpu_usage = excluded.cpu_usage,
			memory_usage = excluded.memory_usage,
			error_count = excluded.error_count`,
		rec.TaskID, rec.StartTime, rec.EndTime, rec.DurationSeconds,
		rec.Status, rec.CPUUsagePct, rec.MemoryUsageMB, rec.ErrorCount)
	if err != nil {
		return fmt.Errorf("failed to insert metrics row: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
