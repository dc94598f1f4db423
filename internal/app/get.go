package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/download"
	"github.com/blackwell-systems/romctl/internal/scrape"
	"github.com/blackwell-systems/romctl/internal/tui"
	"github.com/blackwell-systems/romctl/internal/util"
)

func newGetCmd() *cobra.Command {
	var (
		dir     string
		noImmed bool
	)

	cmd := &cobra.Command{
		Use:   "get <source-url>",
		Short: "Resolve and download a single entry",
		Long: `Download one entry. Entries not yet in the catalog are scraped first.

On a terminal a progress bar is shown; Ctrl+C cancels the transfer and
removes the partial file.

Examples:
  romctl get https://www.romsfun.com/roms/nes/super-mario-bros-3/
  romctl get https://www.romsfun.com/roms/nes/tetris/ --dir ~/roms`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}

			e, err := st.Get(ctx, args[0])
			if errors.Is(err, catalog.ErrNotFound) {
				e, err = scrapeOne(ctx, st, args[0])
			}
			if err != nil {
				return err
			}

			interactive := util.IsTTY()
			var progressCh chan tui.Update
			o := pipelineOverrides{dir: dir, noImmed: noImmed}
			if interactive {
				progressCh = make(chan tui.Update, 16)
				feed := tui.Feed(progressCh)
				o.progress = func(_ *catalog.Entry, done, total int64) { feed(done, total) }
			}

			p, err := newPipeline(ctx, o)
			if err != nil {
				return err
			}
			defer p.Close()

			var out download.Outcome
			if interactive {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				outCh := make(chan download.Outcome, 1)
				go func() {
					outCh <- p.orch.ResolveAndDownload(ctx, e)
					close(progressCh)
				}()
				if err := tui.ShowProgress(fmt.Sprintf("Downloading %s", e.Title), progressCh); err != nil {
					cancel()
					<-outCh
					return err
				}
				out = <-outCh
			} else {
				fmt.Printf("Downloading %s …\n", e.Title)
				out = p.orch.ResolveAndDownload(ctx, e)
			}

			return reportOutcome(e, out)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Download directory (overrides config)")
	cmd.Flags().BoolVar(&noImmed, "no-immediate", false, "Reuse a stored CDN link instead of resolving a fresh one")
	return cmd
}

// scrapeOne adds a detail page to the catalog so it can be downloaded.
func scrapeOne(ctx context.Context, st *catalog.Store, url string) (*catalog.Entry, error) {
	e, err := newScraper().Entry(ctx, url)
	if err != nil && !errors.Is(err, scrape.ErrNoOptions) {
		return nil, fmt.Errorf("%s is not in the catalog and could not be scraped: %w", url, err)
	}
	if _, err := st.Save(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// reportOutcome prints the outcome and turns failures into an error.
func reportOutcome(e *catalog.Entry, out download.Outcome) error {
	switch o := out.(type) {
	case download.Success:
		ok("%s: %s", e.Title, o)
		return nil
	case download.Skipped:
		warn("%s: %s", e.Title, o)
		return nil
	default:
		failed("%s: %s", e.Title, o)
		return fmt.Errorf("download failed")
	}
}
