package app

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/midiset/internal/config"
	"github.com/brensch/midiset/internal/processor"
)

func fakeTask(n int, err error) Task {
	return func(progress chan<- processor.ProcessProgress) error {
		defer close(progress)
		for i := 1; i <= n; i++ {
			progress <- processor.ProcessProgress{
				TotalArchives:     n,
				ArchivesProcessed: i,
				CurrentArchive:    "/in/set.zip",
				Records:           2,
				ElapsedTime:       time.Millisecond,
			}
		}
		return err
	}
}

func TestProgressModel_Update(t *testing.T) {
	t.Parallel()

	m := NewProgressModel(nil)
	m.Update(ArchiveProgressMsg{TotalArchives: 3, ArchivesProcessed: 1, CurrentArchive: "/x/a.zip", Records: 4})
	m.Update(ArchiveProgressMsg{TotalArchives: 3, ArchivesProcessed: 2, CurrentArchive: "/x/b.tar.gz", Err: errors.New("bad gzip")})
	m.Update(ArchiveProgressMsg{TotalArchives: 3, ArchivesProcessed: 3, CurrentArchive: "/x/c.zip", Records: 1, EntryErrors: 2})

	archives := m.Archives()
	require.Len(t, archives, 3)
	assert.Equal(t, StatusComplete, archives[0].Status)
	assert.Equal(t, StatusSkipped, archives[1].Status)
	assert.Equal(t, "bad gzip", archives[1].ErrMsg)
	assert.Equal(t, StatusPartial, archives[2].Status)

	view := m.View()
	assert.Contains(t, view, "(3/3, 5 MIDI files)")
	assert.Contains(t, view, "b.tar.gz")

	_, cmd := m.Update(TaskFinishedMsg{Err: errors.New("no MIDI payloads extracted")})
	require.NotNil(t, cmd)
	assert.Equal(t, ShowError, m.State)
	assert.Contains(t, m.View(), "no MIDI payloads extracted")
}

func TestProgressModel_QuitKey(t *testing.T) {
	t.Parallel()

	m := NewProgressModel(nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, Exiting, m.State)
}

func TestRunWithProgress_Bar(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := RunWithProgress(config.ProgressBar, &buf, fakeTask(3, nil))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "3/3")
}

func TestRunWithProgress_NoneReturnsTaskError(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	err := RunWithProgress(config.ProgressNone, io.Discard, fakeTask(2, want))
	assert.ErrorIs(t, err, want)
}

func TestRunWithProgress_TUI(t *testing.T) {
	t.Parallel()

	want := errors.New("persist failed")
	err := RunWithProgress(config.ProgressTUI, io.Discard, fakeTask(4, want), tea.WithInput(nil), tea.WithoutRenderer())
	assert.ErrorIs(t, err, want)

	err = RunWithProgress(config.ProgressTUI, io.Discard, fakeTask(1, nil), tea.WithInput(nil), tea.WithoutRenderer())
	assert.NoError(t, err)
}

func TestConsumeWithBar_Empty(t *testing.T) {
	t.Parallel()

	ch := make(chan processor.ProcessProgress)
	close(ch)
	var buf bytes.Buffer
	assert.Zero(t, ConsumeWithBar(ch, &buf))
	assert.Empty(t, buf.String())
}
