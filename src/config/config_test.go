package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultKeywordSets(t *testing.T) {
	cfg := Default()

	if len(cfg.PerformanceKeywords) != 4 {
		t.Errorf("expected 4 performance keywords, got %d", len(cfg.PerformanceKeywords))
	}
	if len(cfg.ErrorQueryKeywords) != 4 {
		t.Errorf("expected 4 error query keywords, got %d", len(cfg.ErrorQueryKeywords))
	}
	if cfg.Thresholds.CriticalCPUPct != 90 {
		t.Errorf("expected critical CPU threshold 90, got %v", cfg.Thresholds.CriticalCPUPct)
	}
	if cfg.MaxIncidentResults != 5 {
		t.Errorf("expected max incident results 5, got %d", cfg.MaxIncidentResults)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should not error: %v", err)
	}
	if cfg.LogDir != "data/logs" {
		t.Errorf("expected default log dir, got %q", cfg.LogDir)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "log_dir: /var/log/tasks\nthresholds:\n  critical_error_count: 10\n  critical_cpu_pct: 95\n  high_error_count: 4\n  high_cpu_pct: 80\n  high_duration_seconds: 600\n  medium_cpu_pct: 60\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OPSTRIAGE_CODEBASE_DIR", "/srv/code")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogDir != "/var/log/tasks" {
		t.Errorf("file value not applied, got %q", cfg.LogDir)
	}
	if cfg.CodebaseDir != "/srv/code" {
		t.Errorf("env override not applied, got %q", cfg.CodebaseDir)
	}
	if cfg.Thresholds.CriticalErrorCount != 10 {
		t.Errorf("expected threshold from file, got %d", cfg.Thresholds.CriticalErrorCount)
	}
	// Fields absent from the file keep their defaults.
	if len(cfg.LogErrorKeywords) == 0 {
		t.Error("expected default log error keywords to survive file load")
	}
}

func TestLoadBrokersFromEnv(t *testing.T) {
	t.Setenv("REDPANDA_BROKERS", "localhost:19092, localhost:29092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.RedpandaBrokers) != 2 {
		t.Fatalf("expected 2 brokers, got %v", cfg.RedpandaBrokers)
	}
	if cfg.RedpandaBrokers[1] != "localhost:29092" {
		t.Errorf("unexpected broker: %q", cfg.RedpandaBrokers[1])
	}
}
