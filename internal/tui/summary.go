package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/blackwell-systems/romctl/internal/download"
)

var (
	// StyleFailed is for failed entries
	StyleFailed = lipgloss.NewStyle().Foreground(ColorRed)

	// StyleSkipped is for skipped entries
	StyleSkipped = lipgloss.NewStyle().Foreground(ColorYellow)

	styleBox = StyleBorder.Padding(0, 1)
)

const maxTitle = 48

// RenderSummary formats a batch summary: totals, then failed and skipped
// entries grouped by kind.
func RenderSummary(s download.Summary) string {
	var b strings.Builder

	status := "complete"
	if s.Cancelled {
		status = "cancelled"
	}
	b.WriteString(StyleHeader.Render(fmt.Sprintf("Run %s %s", shortID(s.RunID), status)))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Entries", fmt.Sprintf("%d of %d processed", s.Processed(), s.Total)},
		{"Downloaded", StyleCached.Render(fmt.Sprint(s.Succeeded))},
		{"Skipped", StyleSkipped.Render(fmt.Sprint(s.Skipped))},
		{"Failed", StyleFailed.Render(fmt.Sprint(s.Failed))},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate())},
	}
	if !s.Finished.IsZero() && !s.Started.IsZero() {
		rows = append(rows, [2]string{"Elapsed", s.Finished.Sub(s.Started).Round(time.Second).String()})
	}
	for _, r := range rows {
		b.WriteString(StyleHelp.Render(fmt.Sprintf("%-13s", r[0])))
		b.WriteString(r[1])
		b.WriteString("\n")
	}

	groups := map[string][]string{}
	for _, r := range s.Results {
		var key string
		switch o := r.Outcome.(type) {
		case download.Failed:
			key = "failed: " + string(o.Kind)
		case download.Skipped:
			key = "skipped: " + string(o.Reason)
		default:
			continue
		}
		groups[key] = append(groups[key], ansi.Truncate(r.Entry.Title, maxTitle, "…"))
	}
	if len(groups) > 0 {
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var detail strings.Builder
		for i, k := range keys {
			if i > 0 {
				detail.WriteString("\n")
			}
			style := StyleSkipped
			if strings.HasPrefix(k, "failed") {
				style = StyleFailed
			}
			detail.WriteString(style.Render(fmt.Sprintf("%s (%d)", k, len(groups[k]))))
			for _, title := range groups[k] {
				detail.WriteString("\n  " + StyleNormal.Render(title))
			}
		}
		b.WriteString("\n")
		b.WriteString(styleBox.Render(detail.String()))
		b.WriteString("\n")
	}

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
