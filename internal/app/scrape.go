package app

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/fetch"
	"github.com/blackwell-systems/romctl/internal/scrape"
)

func newScraper() *scrape.Scraper {
	return scrape.New(cfg.Scrape, cfg.Site,
		fetch.New(fetch.WithTimeout(cfg.Resolver.NavigationTimeout), fetch.WithLogger(logger.With("component", "fetch"))),
		nil, logger.With("component", "scrape"))
}

func newScrapeCmd() *cobra.Command {
	var maxPages int

	cmd := &cobra.Command{
		Use:   "scrape <list-url>",
		Short: "Add every entry of a listing to the catalog",
		Long: `Crawl a listing page and its pagination, read each entry's detail page and
save title, category, metadata and the chosen download page to the catalog.

Entries whose options are all excluded variants (demo, beta, ...) are saved
without a download link.

Examples:
  romctl scrape https://www.romsfun.com/roms/nes/
  romctl scrape https://www.romsfun.com/roms/snes/ --max-pages 3
  romctl scrape entry https://www.romsfun.com/roms/nes/super-mario-bros-3/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Scrape.MaxPages = maxPages
			}

			header("Scraping %s", args[0])
			rep, err := newScraper().Listing(cmd.Context(), args[0], st)
			if err != nil {
				return err
			}
			ok("%d pages, %d entries found, %d saved", rep.Pages, rep.Found, rep.Saved)
			if rep.NoOptions > 0 {
				warn("%d entries have no eligible download option", rep.NoOptions)
			}
			if rep.Failed > 0 {
				warn("%d entries could not be read (run with --verbose for details)", rep.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Stop after this many listing pages (0 = all)")
	cmd.AddCommand(newScrapeEntryCmd())
	return cmd
}

func newScrapeEntryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entry <url>",
		Short: "Add a single detail page to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}

			e, err := newScraper().Entry(cmd.Context(), args[0])
			noOption := errors.Is(err, scrape.ErrNoOptions)
			if err != nil && !noOption {
				return err
			}
			if _, err := st.Save(cmd.Context(), &e); err != nil {
				return fmt.Errorf("saving entry: %w", err)
			}

			ok("Saved %s", color.CyanString(e.Title))
			fmt.Printf("  category: %s\n", e.Category)
			if e.Region != "" {
				fmt.Printf("  region:   %s\n", e.Region)
			}
			if noOption {
				warn("No eligible download option on this page")
			} else {
				fmt.Printf("  download: %s\n", e.InterstitialLink)
			}
			return nil
		},
	}
}
