package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle              = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	errorStyle              = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle               = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	progressBarStyle        = lipgloss.NewStyle().Padding(0, 1)
	fileProgressHeaderStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	fileStatusStyle         = map[string]lipgloss.Style{
		StatusComplete: lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		StatusPartial:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		StatusSkipped:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Per-archive statuses shown in the TUI.
const (
	StatusComplete = "Complete"
	StatusPartial  = "Partial"
	StatusSkipped  = "Skipped"
)

// ArchiveStatus is one line of the archive list.
type ArchiveStatus struct {
	Name        string
	Status      string
	Records     int
	EntryErrors int
	ErrMsg      string
	Elapsed     time.Duration
}

// ProgressModel is a bubbletea model that follows a running pipeline.
type ProgressModel struct {
	State            AppState
	spinner          spinner.Model
	overallProgress  progress.Model
	progressBarWidth int

	archives       []ArchiveStatus
	overallTotal   int
	overallCurrent int
	records        int
	lastArchive    string
	taskStartTime  time.Time

	FatalErr error

	termWidth  int
	termHeight int

	uiMsgChan <-chan tea.Msg
}

// NewProgressModel returns a model that reads its updates from uiMsgChan.
func NewProgressModel(uiMsgChan <-chan tea.Msg) *ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &ProgressModel{
		State:           ProcessingArchives,
		spinner:         s,
		overallProgress: progress.New(progress.WithDefaultGradient()),
		taskStartTime:   time.Now(),
		termHeight:      24,
		termWidth:       80,
		uiMsgChan:       uiMsgChan,
	}
}

func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForActivityCmd(m.uiMsgChan))
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.State = Exiting
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.termHeight = msg.Height
		m.progressBarWidth = max(0, m.termWidth-4)
		m.overallProgress.Width = m.progressBarWidth
	case ArchiveProgressMsg:
		m.overallCurrent = msg.ArchivesProcessed
		m.overallTotal = msg.TotalArchives
		m.records += msg.Records
		m.lastArchive = filepath.Base(msg.CurrentArchive)
		m.archives = append(m.archives, archiveStatus(msg))

		var percent float64
		if msg.TotalArchives > 0 {
			percent = float64(msg.ArchivesProcessed) / float64(msg.TotalArchives)
		}
		cmds = append(cmds, m.overallProgress.SetPercent(percent), waitForActivityCmd(m.uiMsgChan))
	case TaskFinishedMsg:
		if msg.Err != nil {
			m.FatalErr = msg.Err
			m.State = ShowError
		} else {
			m.State = Finished
		}
		return m, tea.Quit
	case spinner.TickMsg:
		if m.State == ProcessingArchives {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	case progress.FrameMsg:
		progressModel, cmd := m.overallProgress.Update(msg)
		if pm, ok := progressModel.(progress.Model); ok {
			m.overallProgress = pm
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func archiveStatus(p ArchiveProgressMsg) ArchiveStatus {
	s := ArchiveStatus{
		Name:        filepath.Base(p.CurrentArchive),
		Status:      StatusComplete,
		Records:     p.Records,
		EntryErrors: p.EntryErrors,
		Elapsed:     p.ElapsedTime,
	}
	switch {
	case p.Err != nil:
		s.Status = StatusSkipped
		s.ErrMsg = p.Err.Error()
	case p.EntryErrors > 0:
		s.Status = StatusPartial
		s.ErrMsg = fmt.Sprintf("%d entries unreadable", p.EntryErrors)
	}
	return s
}

// waitForActivityCmd blocks for the next message from the pipeline.
func waitForActivityCmd(uiMsgChan <-chan tea.Msg) tea.Cmd {
	if uiMsgChan == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-uiMsgChan
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("--- MIDI Archive Extraction ---"))
	b.WriteString("\n\n")

	switch m.State {
	case ProcessingArchives:
		b.WriteString(m.viewProgress())
		b.WriteString("\n")
		b.WriteString(infoStyle.Render("Extracting... 'q' or Ctrl+C to hide this view."))
	case Finished:
		b.WriteString(m.viewProgress())
		b.WriteString(infoStyle.Render(fmt.Sprintf("Finished in %s.", time.Since(m.taskStartTime).Round(time.Millisecond))))
	case ShowError:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.FatalErr)))
	case Exiting:
		b.WriteString(infoStyle.Render("Exiting view, run continues..."))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *ProgressModel) viewProgress() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s Archives: %s\n", m.spinner.View(), m.lastArchive))
	b.WriteString(progressBarStyle.Render(m.overallProgress.View()))
	b.WriteString(fmt.Sprintf(" (%d/%d, %d MIDI files)\n\n", m.overallCurrent, m.overallTotal, m.records))

	maxLines := max(1, m.termHeight-10)
	startIdx := max(0, len(m.archives)-maxLines)

	if len(m.archives) > 0 {
		b.WriteString(fileProgressHeaderStyle.Render(fmt.Sprintf("%-40s | %-9s | %-7s | %s", "Archive", "Status", "Records", "Elapsed")))
		b.WriteString("\n")
		for _, a := range m.archives[startIdx:] {
			name := a.Name
			if len(name) > 40 {
				name = "..." + name[len(name)-37:]
			}
			status := a.Status
			if style, ok := fileStatusStyle[a.Status]; ok {
				status = style.Render(fmt.Sprintf("%-9s", a.Status))
			}
			line := fmt.Sprintf("%-40s | %s | %-7d | %s", name, status, a.Records, a.Elapsed.Round(time.Millisecond))
			if a.ErrMsg != "" {
				line += " " + errorStyle.Render(a.ErrMsg)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Archives returns the per-archive statuses seen so far.
func (m *ProgressModel) Archives() []ArchiveStatus { return m.archives }
