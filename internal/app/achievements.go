package app

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/retroachievements"
)

func newAchievementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "Compare the catalog with RetroAchievements",
		Long: `Query the RetroAchievements web API. The API key is read from the
environment variable named by retroachievements.api_key_env (RA_API_KEY by
default).`,
	}
	cmd.AddCommand(newAchievementsConsolesCmd(), newAchievementsCompareCmd())
	return cmd
}

func raClient() (*retroachievements.Client, error) {
	if cfg.RetroAchievements.APIKey == "" {
		return nil, fmt.Errorf("%w: set %s", retroachievements.ErrNoAPIKey, cfg.RetroAchievements.APIKeyEnv)
	}
	return retroachievements.New(cfg.RetroAchievements, cfg.Site.UserAgent), nil
}

func newAchievementsConsolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consoles",
		Short: "List console IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := raClient()
			if err != nil {
				return err
			}
			consoles, err := client.Consoles(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range consoles {
				fmt.Printf("%4d  %s\n", c.ID, c.Name)
			}
			return nil
		},
	}
}

func newAchievementsCompareCmd() *cobra.Command {
	var (
		consoleID int
		category  string
		threshold float64
		details   bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Match catalog titles against a console's game list",
		Long: `Compare the titles of one catalog category with the games RetroAchievements
has achievements for. Titles are normalized (region tags dropped, articles
moved) and paired by exact match first, then by Jaro-Winkler similarity.

Examples:
  romctl achievements compare --console 7 --category nes
  romctl achievements compare --console 5 --category gba --threshold 0.95 -d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := raClient()
			if err != nil {
				return err
			}
			st, err := openStore(ctx)
			if err != nil {
				return err
			}

			entries, err := st.List(ctx, catalog.Filter{Category: category})
			if err != nil {
				return err
			}
			titles := make([]string, 0, len(entries))
			for _, e := range entries {
				titles = append(titles, e.Title)
			}

			games, err := client.GameList(ctx, consoleID)
			if err != nil {
				return err
			}

			res := retroachievements.Compare(titles, games, threshold)

			header("%s vs console %d", category, consoleID)
			fmt.Printf("  %d catalog titles, %d games with achievements\n", len(titles), len(games))
			ok("%d matched", len(res.Matched))
			if details {
				for _, m := range res.Matched {
					score := ""
					if m.Score < 1 {
						score = color.HiBlackString(" (%.2f)", m.Score)
					}
					fmt.Printf("    %s → %s%s\n", m.Local, m.Game.Title, score)
				}
			}
			if n := len(res.MissingLocally); n > 0 {
				warn("%d games not in the catalog", n)
				for _, g := range res.MissingLocally {
					fmt.Printf("    %s %s\n", g.Title, color.HiBlackString("(%d achievements)", g.NumAchievements))
				}
			}
			if n := len(res.UnmatchedLocal); n > 0 {
				warn("%d catalog titles without achievements", n)
				if details {
					fmt.Println("    " + strings.Join(res.UnmatchedLocal, "\n    "))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&consoleID, "console", 0, "RetroAchievements console ID (see 'achievements consoles')")
	cmd.Flags().StringVar(&category, "category", "", "Catalog category to compare")
	cmd.Flags().Float64Var(&threshold, "threshold", retroachievements.DefaultThreshold, "Minimum similarity for a fuzzy match")
	cmd.Flags().BoolVarP(&details, "details", "d", false, "List matched and unmatched titles")
	_ = cmd.MarkFlagRequired("console")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
