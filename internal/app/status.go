package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/catalog"
)

type categoryStatus struct {
	Category   string `json:"category"`
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Downloaded int    `json:"downloaded"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

type statusOutput struct {
	Categories []categoryStatus `json:"categories"`
	Total      categoryStatus   `json:"total"`
}

func newStatusCmd() *cobra.Command {
	var (
		category string
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog download statistics",
		Long: `Show how many entries are pending, downloaded, skipped and failed, per
category.

Examples:
  romctl status
  romctl status --category nes
  romctl status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}

			cats := []string{category}
			if category == "" {
				if cats, err = st.Categories(ctx); err != nil {
					return err
				}
			}

			var out statusOutput
			for _, c := range cats {
				s, err := st.Stats(ctx, c)
				if err != nil {
					return err
				}
				out.Categories = append(out.Categories, toCategoryStatus(c, s))
			}
			all, err := st.Stats(ctx, category)
			if err != nil {
				return err
			}
			out.Total = toCategoryStatus("all", all)

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printStatusText(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Show status for one category")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func toCategoryStatus(name string, s catalog.Stats) categoryStatus {
	return categoryStatus{
		Category:   name,
		Total:      s.Total,
		Pending:    s.Counts[catalog.StatusPending],
		Downloaded: s.Counts[catalog.StatusDownloaded],
		Skipped:    s.Counts[catalog.StatusSkipped],
		Failed:     s.Counts[catalog.StatusFailed],
	}
}

func printStatusText(out statusOutput) {
	if out.Total.Total == 0 {
		warn("Catalog is empty. Run: romctl scrape <listing-url>")
		return
	}
	for _, c := range out.Categories {
		header("%s", c.Category)
		fmt.Println(statusSummary(c))
	}
	if len(out.Categories) > 1 {
		fmt.Println()
		fmt.Println("Total:" + statusSummary(out.Total)[1:])
	}
}

func statusSummary(c categoryStatus) string {
	return fmt.Sprintf("  %d entries: %d downloaded, %d pending, %d skipped, %d failed",
		c.Total, c.Downloaded, c.Pending, c.Skipped, c.Failed)
}
