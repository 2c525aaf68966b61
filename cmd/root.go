package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	cfgpkg "github.com/KaramelBytes/dataloom-cli/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	// HTTP and retry knobs; zero means keep the config value.
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// cfg is populated by loadConfig before any subcommand runs.
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "dataloom",
	Short: "DataLoom CLI: automated EDA reports for tabular datasets",
	Long: `DataLoom is a CLI tool that loads a CSV or JSON dataset, runs a fixed
exploratory-data-analysis pipeline (validation, summary statistics,
visualizations, anomaly detection), and emits a single JSON report with an
optional AI-generated narrative.`,
}

// Execute runs the root command; main defers here immediately.
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.dataloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// A broken config file must not block commands that never read it.
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	override := func(name string, dst *int, v int) {
		if f.Changed(name) && v > 0 {
			*dst = v
		}
	}
	override("http-timeout", &cfg.HTTPTimeoutSec, flagHTTPTimeoutSec)
	override("retry-max", &cfg.RetryMaxAttempts, flagRetryMaxAttempts)
	override("retry-base-ms", &cfg.RetryBaseDelayMs, flagRetryBaseDelayMs)
	override("retry-max-ms", &cfg.RetryMaxDelayMs, flagRetryMaxDelayMs)
}

// appLogger returns the process logger. Stdout is reserved for report JSON,
// so debug output always goes to stderr.
func appLogger() *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
