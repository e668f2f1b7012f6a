package app

import (
	"fmt"
	"time"

	"github.com/brensch/midiset/internal/processor"
)

// ArchiveProgressMsg reports one finished archive to the TUI.
type ArchiveProgressMsg processor.ProcessProgress

// TaskFinishedMsg signals that the pipeline returned.
type TaskFinishedMsg struct {
	Err       error
	StartTime time.Time
	EndTime   time.Time
}

func NewTaskFinished(start time.Time, err error) TaskFinishedMsg {
	return TaskFinishedMsg{StartTime: start, EndTime: time.Now(), Err: err}
}

func (t TaskFinishedMsg) Error() string {
	if t.Err != nil {
		return t.Err.Error()
	}
	return ""
}

func (p ArchiveProgressMsg) String() string {
	return fmt.Sprintf("ArchiveProgress %d/%d: %s", p.ArchivesProcessed, p.TotalArchives, p.CurrentArchive)
}
func (t TaskFinishedMsg) String() string { return fmt.Sprintf("TaskFinished after %s", t.EndTime.Sub(t.StartTime)) }
