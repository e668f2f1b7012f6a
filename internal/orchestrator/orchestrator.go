package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brensch/midiset/internal/analyser"
	"github.com/brensch/midiset/internal/archive"
	"github.com/brensch/midiset/internal/config"
	"github.com/brensch/midiset/internal/extractor"
	"github.com/brensch/midiset/internal/processor"
	"github.com/brensch/midiset/internal/saver"
)

var (
	// ErrNoArchives means the input tree held no .tar.gz or .zip files.
	ErrNoArchives = errors.New("no archives found")
	// ErrNoPayloads means no MIDI entry could be extracted from any archive.
	ErrNoPayloads = errors.New("no MIDI payloads extracted")
)

// RunRecorder receives an audit trail of a run. Implementations must not
// block for long; they are called on the coordinating goroutine.
type RunRecorder interface {
	StartRun(ctx context.Context, inputDir, outputDir string, workers, archives int) (string, error)
	RecordArchive(ctx context.Context, runID string, res extractor.Result) error
	FinishRun(ctx context.Context, runID string, records int64, runErr error) error
}

// Report describes a completed pipeline run.
type Report struct {
	RunID          string
	Archives       int
	FailedArchives int
	SkippedEntries int
	Workers        int
	Written        int64
	Stats          analyser.Stats
	Duration       time.Duration
}

// Options tunes a pipeline run. Every field is optional.
type Options struct {
	// Progress receives one update per archive and is always closed by RunPipeline.
	Progress chan<- processor.ProcessProgress
	// Recorder, if set, receives the run audit trail. Its failures are logged only.
	Recorder RunRecorder
	// Extract replaces extractor.Extract.
	Extract processor.ExtractFunc
}

// RunPipeline discovers archives under cfg.InputDir, extracts them on a worker
// pool, aggregates the records, computes statistics and writes the dataset to
// cfg.OutputDir. A run that finds no archives or no payloads fails without
// creating any output. Report.Stats is filled in as soon as aggregation
// succeeds, even if writing the dataset then fails.
func RunPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (report Report, err error) {
	start := time.Now()
	progressOwned := opts.Progress != nil
	defer func() {
		if progressOwned {
			close(opts.Progress)
		}
	}()

	archives, err := archive.Locate(cfg.InputDir, logger)
	if err != nil {
		return report, fmt.Errorf("locate archives: %w", err)
	}
	report.Archives = len(archives)
	if len(archives) == 0 {
		logger.Error("No archives found.", slog.String("input_dir", cfg.InputDir))
		return report, fmt.Errorf("%w in %s", ErrNoArchives, cfg.InputDir)
	}

	scheduler := processor.NewScheduler(cfg.NumWorkers, opts.Extract, logger)
	report.Workers = scheduler.Workers(len(archives))
	logger.Info("Processing archives.", slog.Int("archives", len(archives)), slog.Int("workers", report.Workers))

	rec := recorder{inner: opts.Recorder, logger: logger}
	rec.start(ctx, cfg, report.Workers, len(archives))
	report.RunID = rec.runID
	defer func() {
		rec.finish(ctx, report.Written, err)
	}()

	agg := NewAggregator(logger, len(archives)*8)
	progressOwned = false
	scheduler.Run(archives, opts.Progress, func(res extractor.Result) {
		agg.Add(res)
		rec.archive(ctx, res)
	})
	report.FailedArchives = agg.FailedArchives()
	report.SkippedEntries = agg.SkippedEntries()

	tbl, err := agg.Finish()
	if err != nil {
		logger.Error("No payloads to save.", slog.Int("archives", len(archives)), slog.Int("failed_archives", report.FailedArchives))
		return report, err
	}

	report.Stats = analyser.Compute(tbl)
	analyser.Log(logger, report.Stats)

	written, err := saver.SaveTable(ctx, cfg, tbl, logger)
	if err != nil {
		return report, err
	}
	report.Written = written
	report.Duration = time.Since(start)

	logger.Info("Pipeline finished.",
		slog.Int64("records_written", written),
		slog.Int("failed_archives", report.FailedArchives),
		slog.Int("skipped_entries", report.SkippedEntries),
		slog.Duration("duration", report.Duration.Round(time.Millisecond)))
	return report, nil
}

// recorder wraps an optional RunRecorder, downgrading its errors to warnings.
type recorder struct {
	inner  RunRecorder
	logger *slog.Logger
	runID  string
}

func (r *recorder) start(ctx context.Context, cfg config.Config, workers, archives int) {
	if r.inner == nil {
		return
	}
	id, err := r.inner.StartRun(ctx, cfg.InputDir, cfg.OutputDir, workers, archives)
	if err != nil {
		r.logger.Warn("Failed to record run start, continuing without ledger.", "error", err)
		r.inner = nil
		return
	}
	r.runID = id
}

func (r *recorder) archive(ctx context.Context, res extractor.Result) {
	if r.inner == nil {
		return
	}
	if err := r.inner.RecordArchive(ctx, r.runID, res); err != nil {
		r.logger.Warn("Failed to record archive outcome.", slog.String("archive", res.Archive.Path), "error", err)
	}
}

func (r *recorder) finish(ctx context.Context, written int64, runErr error) {
	if r.inner == nil {
		return
	}
	if err := r.inner.FinishRun(ctx, r.runID, written, runErr); err != nil {
		r.logger.Warn("Failed to record run end.", "error", err)
	}
}
