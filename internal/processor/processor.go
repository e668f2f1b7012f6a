package processor

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/brensch/midiset/internal/archive"
	"github.com/brensch/midiset/internal/extractor"
)

// ProcessProgress reports one finished archive.
type ProcessProgress struct {
	TotalArchives     int           // Archives scheduled in this run
	ArchivesProcessed int           // Archives finished so far, including this one
	CurrentArchive    string        // Path of the archive that just finished
	Records           int           // Records extracted from it
	EntryErrors       int           // Entries skipped inside it
	Err               error         // Set when the archive was skipped entirely
	ElapsedTime       time.Duration // Time spent on this archive
}

// ExtractFunc processes one archive. It must not share mutable state with
// other invocations.
type ExtractFunc func(logger *slog.Logger, a archive.Archive) extractor.Result

// DefaultWorkers returns min(NumCPU, archiveCount), never less than one.
func DefaultWorkers(archiveCount int) int {
	return clampWorkers(runtime.NumCPU(), archiveCount)
}

func clampWorkers(workers, archiveCount int) int {
	if workers < 1 {
		workers = 1
	}
	if archiveCount > 0 && workers > archiveCount {
		workers = archiveCount
	}
	return workers
}

// Scheduler runs one extraction task per archive on a fixed pool of workers.
type Scheduler struct {
	workers int
	extract ExtractFunc
	logger  *slog.Logger
}

// NewScheduler builds a Scheduler. workers <= 0 selects DefaultWorkers at Run
// time; a nil extract uses extractor.Extract.
func NewScheduler(workers int, extract ExtractFunc, logger *slog.Logger) *Scheduler {
	if extract == nil {
		extract = extractor.Extract
	}
	return &Scheduler{workers: workers, extract: extract, logger: logger}
}

// Workers returns the pool size that Run would use for archiveCount archives.
func (s *Scheduler) Workers(archiveCount int) int {
	if s.workers <= 0 {
		return DefaultWorkers(archiveCount)
	}
	return clampWorkers(s.workers, archiveCount)
}

// Run processes every archive exactly once. collect receives each Result in
// completion order and is only ever called on the goroutine that called Run.
// If progressChan is non-nil, one ProcessProgress is sent per archive and the
// channel is closed before Run returns.
func (s *Scheduler) Run(archives []archive.Archive, progressChan chan<- ProcessProgress, collect func(extractor.Result)) {
	if progressChan != nil {
		defer close(progressChan)
	}
	if len(archives) == 0 {
		return
	}

	numWorkers := s.Workers(len(archives))
	jobs := make(chan archive.Archive, len(archives))
	results := make(chan extractor.Result, numWorkers)

	var wg sync.WaitGroup
	s.logger.Info("Starting extraction workers.", slog.Int("workers", numWorkers), slog.Int("archives", len(archives)))
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			l := s.logger.With(slog.Int("worker", workerID))
			l.Debug("Worker started.")
			for a := range jobs {
				results <- s.runTask(l, a)
			}
			l.Debug("Worker finished.")
		}(i)
	}

	for _, a := range archives {
		jobs <- a
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	processed := 0
	for res := range results {
		processed++
		collect(res)
		if progressChan != nil {
			progressChan <- ProcessProgress{
				TotalArchives:     len(archives),
				ArchivesProcessed: processed,
				CurrentArchive:    res.Archive.Path,
				Records:           len(res.Records),
				EntryErrors:       len(res.EntryErrs),
				Err:               res.OpenErr,
				ElapsedTime:       res.Elapsed,
			}
		}
	}
	s.logger.Info("All extraction workers finished.", slog.Int("archives_processed", processed))
}

// runTask isolates a panicking task so it counts as an empty result for its
// archive only.
func (s *Scheduler) runTask(l *slog.Logger, a archive.Archive) (res extractor.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			l.Error("Extraction task panicked, treating archive as empty.",
				slog.String("archive", a.Path), "panic", r, slog.String("stack", string(debug.Stack())))
			res = extractor.Result{
				Archive: a,
				OpenErr: fmt.Errorf("%w %s: task panicked: %v", extractor.ErrArchiveOpen, a.Path, r),
				Elapsed: time.Since(start),
			}
		}
	}()
	res = s.extract(l, a)
	res.Archive = a
	return res
}
