package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/catalog"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <source-url>",
		Short: "Resolve an entry's CDN link without downloading",
		Long: `Run the browser click sequence for one entry and print the CDN link and the
names of the cookies that came with it. The link is stored on the entry.

The argument is the entry's source URL. A download page URL that is not in
the catalog is resolved directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}

			interstitial := args[0]
			e, err := st.Get(ctx, args[0])
			switch {
			case err == nil:
				if e.InterstitialLink == "" {
					return fmt.Errorf("%s has no download page; re-scrape it", e.Title)
				}
				interstitial = e.InterstitialLink
			case !errors.Is(err, catalog.ErrNotFound):
				return err
			}

			p, err := newPipeline(ctx, pipelineOverrides{})
			if err != nil {
				return err
			}
			defer p.Close()

			header("Resolving %s", interstitial)
			link, err := p.resolver.Resolve(ctx, interstitial)
			if err != nil {
				return err
			}

			ok("Resolved")
			fmt.Printf("  url:     %s\n", link.URL)
			fmt.Printf("  cookies: %s\n", color.HiBlackString(strings.Join(cookieNames(link.Cookies), ", ")))

			if e != nil {
				if _, err := st.Update(ctx, e.SourceURL, func(stored *catalog.Entry) error {
					stored.ResolvedLink = link.URL
					stored.ResolvedAt = time.Now()
					return nil
				}); err != nil {
					warn("Could not store the link: %v", err)
				}
			}
			return nil
		},
	}
}

// cookieNames lists the names in a Cookie header value. Values are never
// printed.
func cookieNames(header string) []string {
	var names []string
	for _, part := range strings.Split(header, ";") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), "=")
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return []string{"(none)"}
	}
	return names
}
