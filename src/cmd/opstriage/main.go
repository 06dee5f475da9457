// Package main is the opstriage CLI: local analysis, the distributed worker
// and requester, the MCP server, and sample data seeding.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"opstriage-agent/src/broker"
	"opstriage-agent/src/config"
	"opstriage-agent/src/logger"
	"opstriage-agent/src/mcp"
	"opstriage-agent/src/metrics"
	"opstriage-agent/src/pipeline"
	"opstriage-agent/src/provider"
	"opstriage-agent/src/sampledata"
	"opstriage-agent/src/store"
	"opstriage-agent/src/ticket"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "opstriage",
	Short: "opstriage - an incident triage pipeline for operational queries",
	Long: `opstriage answers free-text operations questions ("Why is task TID-12345
failing?") by running a deterministic triage pipeline over logs, code,
metrics, and incident history, then synthesizing a prioritized ticket.

It supports two modes:
- Local mode: analyze queries directly against the configured data sources
- Distributed mode: Redpanda + Postgres, requests processed by workers

Distributed mode is selected by setting REDPANDA_BROKERS.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd, submitCmd, statusCmd, workerCmd, mcpCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the layered configuration shared by every subcommand.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// openMetricsStore picks the metrics backend: Postgres when a DSN is
// configured, the local SQLite file otherwise.
func openMetricsStore(ctx context.Context, cfg config.Config, log logger.Logger) metrics.Store {
	if cfg.PostgresDSN != "" {
		st, err := metrics.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("Metrics database unavailable, lookups will be degraded: %v", err)
			return nil
		}
		return st
	}
	if _, err := os.Stat(cfg.MetricsDB); err != nil {
		log.Debug("No metrics database at %s; run 'opstriage seed' to provision one", cfg.MetricsDB)
		return nil
	}
	st, err := metrics.NewSQLiteStore(cfg.MetricsDB)
	if err != nil {
		log.Error("Metrics database unavailable, lookups will be degraded: %v", err)
		return nil
	}
	return st
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [query...]",
	Short: "Run the triage pipeline locally and print the ticket",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.NewConsoleLogger(verbose)
		ctx := cmd.Context()

		metricsStore := openMetricsStore(ctx, cfg, log)
		if metricsStore != nil {
			defer metricsStore.Close()
		}

		client := provider.FromConfig(cfg.Provider.AnthropicAPIKey, cfg.Provider.Model, cfg.ProviderTimeout())
		executor := pipeline.FromConfig(cfg, client, metricsStore, log)

		tk, _ := executor.Analyze(ctx, strings.Join(args, " "))
		fmt.Println(ticket.Render(tk))
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [query...]",
	Short: "Submit a triage request to the distributed pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.RedpandaBrokers) == 0 {
			return errors.New("distributed mode requires REDPANDA_BROKERS")
		}
		if cfg.PostgresDSN == "" {
			return errors.New("distributed mode requires a Postgres DSN (OPSTRIAGE_POSTGRES_DSN)")
		}
		log := logger.NewConsoleLogger(verbose)
		ctx := cmd.Context()

		brk, err := broker.NewRedpandaBroker(cfg.RedpandaBrokers, log)
		if err != nil {
			return err
		}
		defer brk.Close()
		st, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer st.Close()

		requestID, err := pipeline.NewSubmitter(brk, st).Submit(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("Request submitted: %s\n", requestID)
		fmt.Println("Check progress with: opstriage status", requestID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "Show the status of a submitted request and its ticket when done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.PostgresDSN == "" {
			return errors.New("distributed mode requires a Postgres DSN (OPSTRIAGE_POSTGRES_DSN)")
		}
		ctx := cmd.Context()

		st, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer st.Close()

		status, err := st.GetRequestStatus(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("request not found: %s", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Printf("Request %s: %s\n", status.RequestID, status.Status)

		if status.Status == "completed" {
			tk, err := st.GetTicketByRequest(ctx, status.RequestID)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Println(ticket.Render(tk))
		}
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a triage worker consuming requests from Redpanda",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.RedpandaBrokers) == 0 {
			return errors.New("worker mode requires REDPANDA_BROKERS")
		}
		if cfg.PostgresDSN == "" {
			return errors.New("worker mode requires a Postgres DSN (OPSTRIAGE_POSTGRES_DSN)")
		}
		log := logger.NewConsoleLogger(verbose)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		brk, err := broker.NewRedpandaBroker(cfg.RedpandaBrokers, log)
		if err != nil {
			return err
		}
		defer brk.Close()
		st, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer st.Close()

		metricsStore := openMetricsStore(ctx, cfg, log)
		if metricsStore != nil {
			defer metricsStore.Close()
		}

		client := provider.FromConfig(cfg.Provider.AnthropicAPIKey, cfg.Provider.Model, cfg.ProviderTimeout())
		executor := pipeline.FromConfig(cfg, client, metricsStore, log)

		err = pipeline.NewWorker(executor, brk, st, log).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Stdio carries the protocol; all logging must stay silent.
		log := logger.NewSilentLogger()

		metricsStore := openMetricsStore(cmd.Context(), cfg, log)
		if metricsStore != nil {
			defer metricsStore.Close()
		}

		client := provider.FromConfig(cfg.Provider.AnthropicAPIKey, cfg.Provider.Model, cfg.ProviderTimeout())
		executor := pipeline.FromConfig(cfg, client, metricsStore, log)

		return mcp.NewServer(executor, store.NewInMemoryStore(), log).Run()
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Provision sample logs, code, metrics, and incident history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.NewConsoleLogger(verbose)

		if err := sampledata.Seed(cmd.Context(), cfg, log); err != nil {
			return err
		}
		fmt.Println("Sample environment ready. Try: opstriage analyze \"Why is task TID-12345 failing?\"")
		return nil
	},
}
