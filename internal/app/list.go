package app

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/tui"
)

func newListCmd() *cobra.Command {
	var (
		f      catalog.Filter
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		Long: `List catalog entries with their download status.

Examples:
  romctl list
  romctl list --category nes --status failed
  romctl list --search zelda`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				f.Status = catalog.Status(status)
				if !f.Status.Valid() {
					return fmt.Errorf("unknown status %q (pending, downloaded, skipped, failed)", status)
				}
			}

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := st.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				warn("No matching entries")
				return nil
			}

			for _, e := range entries {
				fmt.Println(entryLine(e))
			}
			fmt.Printf("\n%d entries\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&f.Category, "category", "", "Only entries in this category")
	cmd.Flags().StringVar(&f.Search, "search", "", "Match title, description or genre")
	cmd.Flags().StringVar(&status, "status", "", "Only entries with this download status")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Show at most this many entries")
	return cmd
}

func entryLine(e catalog.Entry) string {
	title := ansi.Truncate(e.Title, 60, "…")
	line := fmt.Sprintf("%s %-60s %s", statusMark(e.Download.Status), title, tui.StyleTag.Render(e.Category))
	if e.Download.Status == catalog.StatusDownloaded && e.Download.Bytes > 0 {
		line += color.HiBlackString("  %s", humanize.IBytes(uint64(e.Download.Bytes)))
	}
	if e.Download.Error != "" {
		line += color.HiBlackString("  %s", e.Download.Error)
	}
	return line
}

func statusMark(s catalog.Status) string {
	switch s {
	case catalog.StatusDownloaded:
		return color.GreenString("✓")
	case catalog.StatusFailed:
		return color.RedString("✗")
	case catalog.StatusSkipped:
		return color.YellowString("!")
	default:
		return color.HiBlackString("·")
	}
}
