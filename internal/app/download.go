package app

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/download"
	"github.com/blackwell-systems/romctl/internal/tui"
)

func newDownloadCmd() *cobra.Command {
	var (
		f          catalog.Filter
		o          pipelineOverrides
		retryFails bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download every pending entry in the catalog",
		Long: `Process pending entries one at a time: resolve a fresh CDN link in the
browser, download it immediately, and record the outcome on the entry.

Every entry not yet downloaded is processed, including ones that failed or
were skipped before (use --retry-failed=false to take only new entries).
Entries without a download page are reported as skipped. A failing entry
never stops the batch. Ctrl+C stops after the current entry.

Examples:
  romctl download
  romctl download --category gba --limit 20
  romctl download --retries 5 --retry-delay 10s --delay 3s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !retryFails {
				f.Status = catalog.StatusPending
			}

			p, err := newPipeline(ctx, o)
			if err != nil {
				return err
			}
			defer p.Close()

			sum, err := p.orch.RunPending(ctx, f, func(i int, r download.Result) {
				printResult(i, r)
			})
			if err != nil {
				return err
			}
			if sum.Total == 0 {
				ok("Nothing to download")
				return nil
			}

			fmt.Println()
			fmt.Print(tui.RenderSummary(sum))
			if sum.Cancelled {
				return fmt.Errorf("interrupted after %d of %d entries", sum.Processed(), sum.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.Category, "category", "", "Only entries in this category")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Process at most this many entries (0 = all)")
	cmd.Flags().StringVar(&o.dir, "dir", "", "Download directory (overrides config)")
	cmd.Flags().IntVar(&o.retries, "retries", 0, "Transfer attempts per link (overrides config)")
	cmd.Flags().DurationVar(&o.retryDelay, "retry-delay", 0, "Pause between transfer attempts (overrides config)")
	cmd.Flags().DurationVar(&o.delay, "delay", 0, "Pause between entries (overrides config)")
	cmd.Flags().BoolVar(&o.noImmed, "no-immediate", false, "Reuse stored CDN links instead of resolving fresh ones")
	cmd.Flags().BoolVar(&retryFails, "retry-failed", true, "Include entries that failed or were skipped before")

	return cmd
}

func printResult(i int, r download.Result) {
	prefix := color.HiBlackString("[%d]", i+1)
	elapsed := color.HiBlackString("(%s)", r.Elapsed.Round(100*time.Millisecond))
	switch o := r.Outcome.(type) {
	case download.Success:
		fmt.Println(prefix, color.GreenString("✓"), r.Entry.Title, o, elapsed)
	case download.Skipped:
		fmt.Println(prefix, color.YellowString("!"), r.Entry.Title, o, elapsed)
	default:
		fmt.Println(prefix, color.RedString("✗"), r.Entry.Title, o, elapsed)
	}
}
