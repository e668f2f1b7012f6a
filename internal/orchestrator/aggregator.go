package orchestrator

import (
	"log/slog"

	"github.com/brensch/midiset/internal/extractor"
	"github.com/brensch/midiset/internal/table"
)

// Aggregator merges per-archive results into one table. It has a single
// owner and is not safe for concurrent use.
type Aggregator struct {
	logger *slog.Logger
	tbl    *table.Table

	archives       int
	failedArchives int
	skippedEntries int
}

// NewAggregator returns an empty Aggregator.
func NewAggregator(logger *slog.Logger, sizeHint int) *Aggregator {
	return &Aggregator{logger: logger, tbl: table.New(sizeHint)}
}

// Add folds one archive's result into the table.
func (a *Aggregator) Add(res extractor.Result) {
	a.archives++
	a.skippedEntries += len(res.EntryErrs)
	if res.Failed() {
		a.failedArchives++
		return
	}
	a.tbl.Append(res.Records...)
}

// Archives returns how many results were added.
func (a *Aggregator) Archives() int { return a.archives }

// FailedArchives returns how many archives could not be opened.
func (a *Aggregator) FailedArchives() int { return a.failedArchives }

// SkippedEntries returns how many entries could not be read.
func (a *Aggregator) SkippedEntries() int { return a.skippedEntries }

// Finish hands off the table. It returns ErrNoPayloads if no record was
// collected. The Aggregator must not be used afterwards.
func (a *Aggregator) Finish() (*table.Table, error) {
	a.logger.Info("Aggregation finished.",
		slog.Int("archives", a.archives),
		slog.Int("failed_archives", a.failedArchives),
		slog.Int("skipped_entries", a.skippedEntries),
		slog.Int("records", a.tbl.Len()))
	if a.tbl.Len() == 0 {
		return nil, ErrNoPayloads
	}
	tbl := a.tbl
	a.tbl = nil
	return tbl, nil
}
