package app

import (
	"io"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/brensch/midiset/internal/processor"
)

// NewArchiveBar returns the per-archive progress bar.
func NewArchiveBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Extracting archives"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
	)
}

// ConsumeWithBar drains progress into a bar on w until the channel closes.
// It returns the number of updates seen.
func ConsumeWithBar(progress <-chan processor.ProcessProgress, w io.Writer) int {
	var bar *progressbar.ProgressBar
	seen := 0
	for p := range progress {
		if bar == nil {
			bar = NewArchiveBar(p.TotalArchives, w)
		}
		seen++
		bar.Describe(filepath.Base(p.CurrentArchive))
		_ = bar.Add(1)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return seen
}
