package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evalforge/coverplan/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "coverplan",
	Short: "coverplan - coverage planning engine for evaluation suites",
	Long: `coverplan turns a concept taxonomy, facet definitions, and a
constraint set into a versioned coverage plan: per-stratum item quotas with
fairness enforcement, policy quarantine, and audit diagnostics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// newLogger builds the slog logger from the logging config, honoring the
// --verbose override.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and stack traces")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(versionCmd)
}
