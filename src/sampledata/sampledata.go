// Package sampledata provisions a demo environment: sample logs, a small
// codebase with known issues, a metrics database, and an incident ledger.
// Used by the seed command and by local evaluation.
package sampledata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"opstriage-agent/src/config"
	"opstriage-agent/src/contracts"
	"opstriage-agent/src/incidents"
	"opstriage-agent/src/logger"
	"opstriage-agent/src/metrics"
)

const applicationLog = `2024-01-15 14:30:45 INFO  [main] Application started successfully
2024-01-15 14:31:12 DEBUG [worker-1] Processing task TID-12345
2024-01-15 14:31:15 ERROR [worker-1] NullPointerException in TaskProcessor.process() for TID-12345
2024-01-15 14:31:16 WARN  [worker-1] Retrying task TID-12345 (attempt 1/3)
2024-01-15 14:31:30 ERROR [worker-1] NullPointerException in TaskProcessor.process() for TID-12345
2024-01-15 14:31:45 ERROR [worker-1] Task TID-12345 failed after 3 attempts
2024-01-15 14:32:00 INFO  [worker-2] Processing task TID-12346
2024-01-15 14:32:30 INFO  [worker-2] Task TID-12346 completed successfully
`

const databaseLog = `2024-01-15 14:33:00 INFO  [db-pool] Connection pool initialized with 10 connections
2024-01-15 14:33:10 DEBUG [db-pool] Executing query for task TID-12347
2024-01-15 14:33:45 ERROR [db-pool] Connection timeout for TID-12347 after 30000ms
2024-01-15 14:33:46 WARN  [db-pool] Connection pool exhausted, waiting for available connection
2024-01-15 14:34:00 ERROR [db-pool] SQL deadlock detected for task TID-12347
`

const systemLog = `2024-01-15 14:35:00 INFO  [system] Memory usage at 65%
2024-01-15 14:35:30 WARN  [system] Memory usage at 85% for task TID-12348
2024-01-15 14:36:00 FATAL [system] OutOfMemoryError detected for TID-12348
2024-01-15 14:36:01 CRITICAL [system] Task TID-12348 terminated, out of memory
`

const taskProcessorPy = `import time


class TaskProcessor:
    def process(self, task_id):
        # Fetch without a guard; TID-12345 crashes here when the record is absent.
        record = self.registry.get(task_id)
        return record.status

    def retry(self, task_id):
        for attempt in range(3):
            for backoff in range(attempt):
                time.sleep(1)
            result = self.process(task_id)
            if result:
                return result
`

const dataHandlerJava = `package ops;

import java.io.FileInputStream;

public class DataHandler {
    private static final String PASSWORD = "hunter2";

    public String load(String taskId) throws Exception {
        FileInputStream in = new FileInputStream("/data/" + taskId);
        Record record = repo.findRecord(taskId);
        return record.getPayload();
    }
}
`

func sampleMetrics() []contracts.MetricsRecord {
	return []contracts.MetricsRecord{
		{TaskID: "TID-12345", StartTime: "2024-01-15 14:31:12", EndTime: "2024-01-15 14:31:45",
			DurationSeconds: 33, Status: "failed", CPUUsagePct: 95.5, MemoryUsageMB: 2048, ErrorCount: 7},
		{TaskID: "TID-12346", StartTime: "2024-01-15 14:32:00", EndTime: "2024-01-15 14:32:30",
			DurationSeconds: 30, Status: "completed", CPUUsagePct: 45.2, MemoryUsageMB: 512, ErrorCount: 0},
		{TaskID: "TID-12347", StartTime: "2024-01-15 14:33:10", EndTime: "2024-01-15 14:39:20",
			DurationSeconds: 370, Status: "completed_with_warnings", CPUUsagePct: 78.9, MemoryUsageMB: 1024, ErrorCount: 3},
		{TaskID: "TID-12348", StartTime: "2024-01-15 14:35:00", EndTime: "2024-01-15 14:36:01",
			DurationSeconds: 61, Status: "failed", CPUUsagePct: 88.1, MemoryUsageMB: 4096, ErrorCount: 2},
	}
}

func sampleIncidents() []contracts.IncidentRecord {
	return []contracts.IncidentRecord{
		{Date: "2024-01-10", IncidentID: "INC-001", Severity: "HIGH",
			Description: "Task TID-12345 crashed with NullPointerException in TaskProcessor",
			Resolution:  "Added null check before record access"},
		{Date: "2024-01-11", IncidentID: "INC-002", Severity: "MEDIUM",
			Description: "Database connection timeout during nightly batch",
			Resolution:  "Increased connection pool size to 20"},
		{Date: "2024-01-12", IncidentID: "INC-003", Severity: "CRITICAL",
			Description: "Out of memory on worker nodes processing large payloads",
			Resolution:  "Raised heap limit and added payload size cap"},
		{Date: "2024-01-13", IncidentID: "INC-004", Severity: "LOW",
			Description: "Slow response times reported for status dashboard",
			Resolution:  "Added index on task_id column"},
	}
}

// Seed provisions every data source named in the configuration. Existing
// files are overwritten so the demo environment is reproducible.
func Seed(ctx context.Context, cfg config.Config, log logger.Logger) error {
	logs := map[string]string{
		"application.log": applicationLog,
		"database.log":    databaseLog,
		"system.log":      systemLog,
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	for name, content := range logs {
		if err := os.WriteFile(filepath.Join(cfg.LogDir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	log.Info("[Seed] Wrote %d log files to %s", len(logs), cfg.LogDir)

	code := map[string]string{
		"task_processor.py": taskProcessorPy,
		"DataHandler.java":  dataHandlerJava,
	}
	if err := os.MkdirAll(cfg.CodebaseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create codebase directory: %w", err)
	}
	for name, content := range code {
		if err := os.WriteFile(filepath.Join(cfg.CodebaseDir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	log.Info("[Seed] Wrote %d code files to %s", len(code), cfg.CodebaseDir)

	if err := os.MkdirAll(filepath.Dir(cfg.MetricsDB), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	store, err := metrics.NewSQLiteStore(cfg.MetricsDB)
	if err != nil {
		return err
	}
	defer store.Close()
	for _, rec := range sampleMetrics() {
		if err := store.Insert(ctx, rec); err != nil {
			return err
		}
	}
	log.Info("[Seed] Inserted %d metrics rows into %s", len(sampleMetrics()), cfg.MetricsDB)

	if err := os.MkdirAll(filepath.Dir(cfg.IncidentsCSV), 0o755); err != nil {
		return fmt.Errorf("failed to create incidents directory: %w", err)
	}
	if err := incidents.WriteCSV(cfg.IncidentsCSV, sampleIncidents()); err != nil {
		return err
	}
	log.Info("[Seed] Wrote %d incident records to %s", len(sampleIncidents()), cfg.IncidentsCSV)

	return nil
}
