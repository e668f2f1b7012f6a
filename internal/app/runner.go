package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/midiset/internal/config"
	"github.com/brensch/midiset/internal/processor"
)

// Task runs the pipeline. It must close progress before returning.
type Task func(progress chan<- processor.ProcessProgress) error

// RunWithProgress runs task while showing its progress in the given mode
// (config.ProgressBar, config.ProgressTUI or config.ProgressNone) on w.
func RunWithProgress(mode string, w io.Writer, task Task, opts ...tea.ProgramOption) error {
	progress := make(chan processor.ProcessProgress, 16)

	switch mode {
	case config.ProgressTUI:
		return RunTUI(progress, func() error { return task(progress) }, append([]tea.ProgramOption{tea.WithOutput(w)}, opts...)...)
	case config.ProgressBar:
		done := make(chan struct{})
		go func() {
			defer close(done)
			ConsumeWithBar(progress, w)
		}()
		err := task(progress)
		<-done
		return err
	default:
		done := make(chan struct{})
		go func() {
			defer close(done)
			for range progress {
			}
		}()
		err := task(progress)
		<-done
		return err
	}
}

// RunTUI shows the bubbletea progress view while run executes. Quitting the
// view does not stop run; RunTUI always waits for it and returns its error.
func RunTUI(progress <-chan processor.ProcessProgress, run func() error, opts ...tea.ProgramOption) error {
	uiMsgChan := make(chan tea.Msg)
	var runErr error

	go func() {
		defer close(uiMsgChan)
		start := time.Now()
		errc := make(chan error, 1)
		go func() { errc <- run() }()
		for p := range progress {
			uiMsgChan <- ArchiveProgressMsg(p)
		}
		runErr = <-errc
		uiMsgChan <- NewTaskFinished(start, runErr)
	}()

	model := NewProgressModel(uiMsgChan)
	_, teaErr := tea.NewProgram(model, opts...).Run()

	// The view may have quit early; keep the pipeline unblocked until it ends.
	for range uiMsgChan {
	}
	if teaErr != nil {
		return errors.Join(runErr, fmt.Errorf("progress view: %w", teaErr))
	}
	return runErr
}
