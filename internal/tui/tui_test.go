package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/download"
)

func TestFeedDropsWhenFull(t *testing.T) {
	ch := make(chan Update, 1)
	feed := Feed(ch)
	feed(10, 100)
	feed(20, 100) // dropped, must not block

	got := <-ch
	if got != (Update{Done: 10, Total: 100}) {
		t.Errorf("got %+v", got)
	}
	select {
	case u := <-ch:
		t.Errorf("unexpected second update %+v", u)
	default:
	}
}

func TestProgressModel(t *testing.T) {
	ch := make(chan Update)
	m := progressModel{progress: progress.New(), label: "Downloading Tetris", progressCh: ch}

	next, _ := m.Update(progressMsg{Update: Update{Done: 512 * 1024, Total: 1024 * 1024}})
	m = next.(progressModel)
	view := m.View()
	if !strings.Contains(view, "Downloading Tetris") || !strings.Contains(view, "50%") {
		t.Errorf("view missing label or percent:\n%s", view)
	}

	next, _ = m.Update(progressMsg{Update: Update{Done: 3 << 20, Total: -1}})
	m = next.(progressModel)
	if view := m.View(); !strings.Contains(view, "3.0 MiB received") {
		t.Errorf("unknown-length view:\n%s", view)
	}

	next, cmd := m.Update(progressMsg{closed: true})
	m = next.(progressModel)
	if !m.done || cmd == nil {
		t.Error("closed channel should finish the model")
	}
	if m.View() != "" {
		t.Error("finished model should render nothing")
	}
}

func TestProgressModelCancel(t *testing.T) {
	m := progressModel{progress: progress.New()}
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !next.(progressModel).cancelled {
		t.Error("ctrl+c should cancel")
	}
}

func TestProgressModelTruncatesLabel(t *testing.T) {
	m := progressModel{progress: progress.New(), label: strings.Repeat("x", 200)}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 40})
	m = next.(progressModel)
	first := strings.SplitN(m.View(), "\n", 2)[0]
	if len([]rune(first)) > 40 {
		t.Errorf("label not truncated: %d runes", len([]rune(first)))
	}
}

func TestRenderSummary(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := download.Summary{
		RunID:     "0f8fad5b-d9cb-469f-a165-70867728950e",
		Total:     4,
		Succeeded: 1,
		Skipped:   1,
		Failed:    2,
		Started:   start,
		Finished:  start.Add(90 * time.Second),
		Results: []download.Result{
			{Entry: catalog.Entry{Title: "Tetris"}, Outcome: download.Success{Path: "t.zip"}},
			{Entry: catalog.Entry{Title: "Zelda"}, Outcome: download.Skipped{Reason: download.KindResolutionTimeout}},
			{Entry: catalog.Entry{Title: "Metroid"}, Outcome: download.Failed{Kind: download.KindLinkExpired}},
			{Entry: catalog.Entry{Title: "Kirby"}, Outcome: download.Failed{Kind: download.KindLinkExpired}},
		},
	}

	out := RenderSummary(s)
	for _, want := range []string{
		"Run 0f8fad5b complete",
		"4 of 4 processed",
		"25.0%",
		"1m30s",
		"failed: link_expired (2)",
		"skipped: resolution_timeout (1)",
		"Metroid",
		"Kirby",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Tetris") {
		t.Error("successful entries should not be listed")
	}
}
