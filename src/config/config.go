// Package config provides configuration for the triage pipeline.
//
// All analysis knobs (keyword sets, thresholds, tracked extensions) live here
// with documented defaults so tests can substitute alternatives and so the
// severity thresholds stay tunable rather than hard-coded.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Thresholds drives priority derivation from raw metrics. The defaults mirror
// the values the incident ledger was tuned against; treat them as subject to
// domain review, not invariants.
type Thresholds struct {
	CriticalErrorCount  int     `yaml:"critical_error_count"`
	CriticalCPUPct      float64 `yaml:"critical_cpu_pct"`
	HighErrorCount      int     `yaml:"high_error_count"`
	HighCPUPct          float64 `yaml:"high_cpu_pct"`
	HighDurationSeconds int     `yaml:"high_duration_seconds"`
	MediumCPUPct        float64 `yaml:"medium_cpu_pct"`
}

// Provider configures the external analysis provider used for narrative text.
type Provider struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	Model           string `yaml:"model"`
	// TimeoutSeconds bounds each provider call; a timed-out call degrades the
	// ticket narrative instead of failing the pipeline.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Config holds every setting for the pipeline, its collaborators, and the
// distributed mode.
type Config struct {
	// Data sources.
	LogDir       string `yaml:"log_dir"`
	CodebaseDir  string `yaml:"codebase_dir"`
	MetricsDB    string `yaml:"metrics_db"`
	IncidentsCSV string `yaml:"incidents_csv"`

	// Distributed mode. Empty RedpandaBrokers means local-only operation.
	RedpandaBrokers []string `yaml:"redpanda_brokers"`
	PostgresDSN     string   `yaml:"postgres_dsn"`

	Provider Provider `yaml:"provider"`

	// Query classification keyword sets (case-insensitive substrings).
	PerformanceKeywords []string `yaml:"performance_keywords"`
	ErrorQueryKeywords  []string `yaml:"error_query_keywords"`

	// Log analysis.
	LogErrorKeywords []string `yaml:"log_error_keywords"`

	// Code analysis.
	CodeExtensions []string `yaml:"code_extensions"`
	LongLineLimit  int      `yaml:"long_line_limit"`

	// Incident matching.
	MaxIncidentResults int `yaml:"max_incident_results"`
	// MinTokenLength is the exclusive lower bound for summary tokens used in
	// keyword matching (tokens must be strictly longer).
	MinTokenLength int `yaml:"min_token_length"`

	// Synthesis.
	Thresholds         Thresholds `yaml:"thresholds"`
	MaxRecommendations int        `yaml:"max_recommendations"`
	TopErrorTypes      int        `yaml:"top_error_types"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		LogDir:       "data/logs",
		CodebaseDir:  "data/codebase",
		MetricsDB:    "data/metrics.db",
		IncidentsCSV: "data/incidents.csv",
		Provider: Provider{
			Model:          "claude-sonnet-4-5-20250929",
			TimeoutSeconds: 60,
		},
		PerformanceKeywords: []string{"slow", "latency", "performance", "timeout"},
		ErrorQueryKeywords:  []string{"fail", "error", "exception", "crash"},
		LogErrorKeywords: []string{
			"error", "exception", "failed", "failure", "timeout",
			"null pointer", "connection refused", "out of memory",
			"stack trace", "fatal", "critical", "alert",
		},
		CodeExtensions: []string{".py", ".java", ".js", ".go", ".cpp", ".c", ".rb", ".php"},
		LongLineLimit:  120,

		MaxIncidentResults: 5,
		MinTokenLength:     3,

		Thresholds: Thresholds{
			CriticalErrorCount:  5,
			CriticalCPUPct:      90,
			HighErrorCount:      2,
			HighCPUPct:          70,
			HighDurationSeconds: 300,
			MediumCPUPct:        50,
		},
		MaxRecommendations: 3,
		TopErrorTypes:      5,
	}
}

// ProviderTimeout returns the per-call provider budget as a duration.
func (c Config) ProviderTimeout() time.Duration {
	if c.Provider.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// Load reads the config file at path (if it exists), layers environment
// overrides on top, and fills any remaining zero values from Default.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("OPSTRIAGE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	envOverride(&cfg.LogDir, "OPSTRIAGE_LOG_DIR")
	envOverride(&cfg.CodebaseDir, "OPSTRIAGE_CODEBASE_DIR")
	envOverride(&cfg.MetricsDB, "OPSTRIAGE_METRICS_DB")
	envOverride(&cfg.IncidentsCSV, "OPSTRIAGE_INCIDENTS_CSV")
	envOverride(&cfg.PostgresDSN, "OPSTRIAGE_POSTGRES_DSN")
	envOverride(&cfg.Provider.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.Provider.Model, "OPSTRIAGE_MODEL")
	envOverrideInt(&cfg.Provider.TimeoutSeconds, "OPSTRIAGE_PROVIDER_TIMEOUT_SECONDS")

	if brokers := os.Getenv("REDPANDA_BROKERS"); brokers != "" {
		cfg.RedpandaBrokers = nil
		for _, b := range strings.Split(brokers, ",") {
			b = strings.TrimSpace(b)
			if b != "" {
				cfg.RedpandaBrokers = append(cfg.RedpandaBrokers, b)
			}
		}
	}

	applyFallbacks(&cfg)
	return cfg, nil
}

// applyFallbacks restores defaults for fields a config file may have zeroed.
func applyFallbacks(cfg *Config) {
	def := Default()
	if len(cfg.PerformanceKeywords) == 0 {
		cfg.PerformanceKeywords = def.PerformanceKeywords
	}
	if len(cfg.ErrorQueryKeywords) == 0 {
		cfg.ErrorQueryKeywords = def.ErrorQueryKeywords
	}
	if len(cfg.LogErrorKeywords) == 0 {
		cfg.LogErrorKeywords = def.LogErrorKeywords
	}
	if len(cfg.CodeExtensions) == 0 {
		cfg.CodeExtensions = def.CodeExtensions
	}
	if cfg.LongLineLimit <= 0 {
		cfg.LongLineLimit = def.LongLineLimit
	}
	if cfg.MaxIncidentResults <= 0 {
		cfg.MaxIncidentResults = def.MaxIncidentResults
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = def.MinTokenLength
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = def.MaxRecommendations
	}
	if cfg.TopErrorTypes <= 0 {
		cfg.TopErrorTypes = def.TopErrorTypes
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = def.Thresholds
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if cfg.Provider.TimeoutSeconds <= 0 {
		cfg.Provider.TimeoutSeconds = def.Provider.TimeoutSeconds
	}
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envOverrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}
