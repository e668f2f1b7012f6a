package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brensch/midiset/internal/app"
	"github.com/brensch/midiset/internal/config"
	"github.com/brensch/midiset/internal/db"
	"github.com/brensch/midiset/internal/display"
	"github.com/brensch/midiset/internal/orchestrator"
	"github.com/brensch/midiset/internal/processor"
)

var (
	cfgFile string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	logCloser  io.Closer
	appConfig  config.Config
)

var errOutputRequired = errors.New("an output directory is required (-o/--output)")

// rootCmd extracts MIDI files from the archives under <input_dir> into a
// group-partitioned Parquet dataset.
var rootCmd = &cobra.Command{
	Use:   "midiset <input_dir>",
	Short: "Pack MIDI files found in archives into a partitioned Parquet dataset.",
	Long: `midiset searches <input_dir> recursively for .tar.gz and .zip archives,
extracts every .mid/.midi entry on a worker pool and writes the files to a
zstd-compressed Parquet dataset partitioned by archive group (the archive's
file name without its .zip or .tar.gz suffix). A size distribution of the
extracted files is printed before the dataset is written.

Unreadable archives and entries are logged and skipped; the run fails only when
nothing could be extracted or the dataset cannot be written.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		logger, closer, err := newLogger(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		rootLogger = logger
		logCloser = closer
		slog.SetDefault(rootLogger)

		appConfig = *cfg
		rootLogger.Debug("Configuration loaded", slog.Any("config", appConfig))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			err := logCloser.Close()
			logCloser = nil
			return err
		}
		return nil
	},
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	logger := getLogger()
	cfg := getConfig()
	ctx := cmd.Context()

	if len(args) == 1 {
		cfg.InputDir = args[0]
	}
	if cfg.InputDir == "" {
		return errors.New("missing <input_dir> argument")
	}
	if cfg.OutputDir == "" {
		return errOutputRequired
	}
	for _, p := range []*string{&cfg.InputDir, &cfg.OutputDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}

	opts := orchestrator.Options{}
	if cfg.DbPath != "" {
		ledger, err := db.OpenLedger(ctx, cfg.DbPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				logger.Error("Failed to close run ledger cleanly", "error", err)
			}
		}()
		opts.Recorder = ledger
	}

	logger.Info("Starting MIDI extraction",
		slog.String("input_dir", cfg.InputDir),
		slog.String("output", cfg.OutputDir),
		slog.Int("workers", cfg.NumWorkers),
		slog.Int("compression_level", cfg.CompressionLevel))

	var report orchestrator.Report
	err := app.RunWithProgress(cfg.Progress, cmd.ErrOrStderr(), func(progress chan<- processor.ProcessProgress) error {
		opts.Progress = progress
		var runErr error
		report, runErr = orchestrator.RunPipeline(ctx, cfg, logger, opts)
		return runErr
	})

	out := cmd.OutOrStdout()
	if report.Stats.Count > 0 {
		display.Report(out, report.Stats, cfg.NoPlot)
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	fmt.Fprintf(out, "\nSaved %s MIDI files from %s archives to %s",
		display.FormatCount(report.Written), display.FormatCount(report.Archives), cfg.OutputDir)
	if report.FailedArchives > 0 || report.SkippedEntries > 0 {
		fmt.Fprintf(out, " (%d archives skipped, %d entries unreadable)", report.FailedArchives, report.SkippedEntries)
	}
	fmt.Fprintln(out)
	return nil
}

// newLogger builds the slog handler described by c. The returned closer is
// non-nil only when logs go to a file.
func newLogger(c config.LogConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	// Config.Validate has already rejected unknown levels.
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var logWriter io.Writer = stderr
	var closer io.Closer
	switch strings.ToLower(c.Output) {
	case "", "stderr":
	case "stdout":
		logWriter = os.Stdout
	default:
		f, err := os.OpenFile(c.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", c.Output, err)
		}
		logWriter = f
		closer = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(logWriter, opts)
	} else {
		handler = slog.NewTextHandler(logWriter, opts)
	}
	return slog.New(handler), closer, nil
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .midiset.yaml in the current directory or $HOME)")
	rootCmd.PersistentFlags().String("db-path", "", "DuckDB run ledger path (:memory: for in-memory, empty disables the ledger)")
	rootCmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "Log output format (text or json)")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-output", config.DefaultLogOutput, "Log output destination (stderr, stdout, or file path)")

	rootCmd.Flags().StringP("output", "o", "", "Output directory for the Parquet dataset (required)")
	rootCmd.Flags().IntP("jobs", "j", config.DefaultNumWorkers, "Number of extraction workers (0 = number of CPUs)")
	rootCmd.Flags().Bool("no-plot", false, "Skip the size distribution chart")
	rootCmd.Flags().Int("compression-level", config.DefaultCompressionLevel, "zstd compression level (1-22)")
	rootCmd.Flags().String("progress", config.DefaultProgress, "Progress display (bar, tui or none)")

	rootCmd.Version = "0.1.0"
}

// Helper to get logger (could use context propagation instead)
func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getConfig() config.Config {
	return appConfig
}
