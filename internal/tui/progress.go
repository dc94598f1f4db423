package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

// Update is one progress report: bytes written so far and the expected
// total, or -1 when the server sent no length.
type Update struct {
	Done  int64
	Total int64
}

// Feed returns a progress callback that forwards reports to ch. Reports are
// dropped while the channel is full so the transfer never waits on the UI.
func Feed(ch chan<- Update) func(done, total int64) {
	return func(done, total int64) {
		select {
		case ch <- Update{Done: done, Total: total}:
		default:
		}
	}
}

// progressMsg is sent when progress updates
type progressMsg struct {
	Update
	closed bool
}

// tickMsg is sent periodically to refresh the UI
type tickMsg time.Time

type progressModel struct {
	progress   progress.Model
	current    Update
	label      string
	width      int
	done       bool
	cancelled  bool
	progressCh <-chan Update
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForProgress(m.progressCh),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForProgress(ch <-chan Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return progressMsg{closed: true}
		}
		return progressMsg{Update: u}
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.cancelled = true
			return m, tea.Quit
		}

	case tickMsg:
		if m.done {
			return m, tea.Quit
		}
		return m, tickCmd()

	case progressMsg:
		if msg.closed {
			m.done = true
			return m, tea.Quit
		}
		m.current = msg.Update
		return m, waitForProgress(m.progressCh)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		return m, nil
	}

	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}

	label := m.label
	if m.width > 0 {
		label = ansi.Truncate(label, m.width-1, "…")
	}

	if m.current.Total <= 0 {
		return fmt.Sprintf("%s\n%s received\n", label, humanize.IBytes(uint64(m.current.Done)))
	}

	percent := float64(m.current.Done) / float64(m.current.Total)
	if percent > 1 {
		percent = 1
	}
	return fmt.Sprintf(
		"%s\n%s\n%s / %s (%.0f%%)\n",
		label,
		m.progress.ViewAs(percent),
		humanize.IBytes(uint64(m.current.Done)),
		humanize.IBytes(uint64(m.current.Total)),
		percent*100,
	)
}

// ShowProgress displays a progress bar until progressCh is closed.
// Returns an error if cancelled by user (Ctrl+C).
func ShowProgress(label string, progressCh <-chan Update) error {
	m := progressModel{
		progress:   progress.New(progress.WithDefaultGradient()),
		label:      label,
		progressCh: progressCh,
	}

	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	if fm, ok := finalModel.(progressModel); ok && fm.cancelled {
		return fmt.Errorf("cancelled by user")
	}

	return nil
}
