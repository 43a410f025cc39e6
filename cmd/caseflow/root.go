package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/config"
	"github.com/caseflow/caseflow/internal/graph"
	"github.com/caseflow/caseflow/internal/graph/txn"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "caseflow",
	Short: "Caseflow - process instance persistence over a property graph",
	Long: `Caseflow stores process instances, their tasks, and assignments in a
graph database and exposes typed repository operations over them.

Configuration is read from the file given with --config; values of the
form ${VAR} are interpolated from the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader(config.NewValidator())

	path := configFile
	if path == "" {
		path = os.Getenv("CASEFLOW_CONFIG")
	}
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return loader.LoadWithDefaults(path)
}

// newGraphClient builds a client from the loaded configuration.
func newGraphClient(cfg *config.Config, logger *slog.Logger) (*graph.Neo4jClient, error) {
	return graph.NewNeo4jClient(graph.Config{
		URI:                   cfg.Graph.URI,
		Username:              cfg.Graph.Username,
		Password:              cfg.Graph.Password,
		Database:              cfg.Graph.Database,
		MaxSessions:           cfg.Graph.MaxSessions,
		SessionAcquireTimeout: cfg.Graph.SessionAcquireTimeout,
		ConnectionTimeout:     cfg.Graph.ConnectionTimeout,
	}, graph.WithLogger(logger))
}

// retryPolicy maps the configured retry settings onto the transaction
// manager's policy.
func retryPolicy(cfg *config.Config) txn.Policy {
	return txn.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
}

// newLogger builds the process-wide structured logger.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("caseflow v0.1.0")
	},
}
