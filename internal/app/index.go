package app

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/cache"
	"github.com/blackwell-systems/romctl/internal/catalog"
)

func newIndexCmd() *cobra.Command {
	var (
		dir    string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Write an HTML index of downloaded files",
		Long: `Generate index.html in the download directory listing every downloaded
entry, grouped by category, with links to the local files.

With --verify each file's size and SHA-256 are checked against the catalog
first; entries whose file is missing or changed are left out and reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Download.Dir
			}
			files := cache.New(absPath(dir), cfg.Download.PerCategory)

			entries, err := st.List(cmd.Context(), catalog.Filter{Status: catalog.StatusDownloaded})
			if err != nil {
				return err
			}

			var items []cache.IndexEntry
			for _, e := range entries {
				path := e.Download.Path
				if path == "" {
					continue
				}
				if verify {
					if err := cache.VerifyFile(path, e.Download.Bytes, e.Download.SHA256); err != nil {
						warn("%s: %v", e.Title, err)
						continue
					}
				} else if _, err := os.Stat(path); err != nil {
					warn("%s: file missing (%s)", e.Title, path)
					continue
				}
				items = append(items, cache.IndexEntry{
					Title:    e.Title,
					Category: e.Category,
					Region:   e.Region,
					FilePath: absPath(path),
					Bytes:    e.Download.Bytes,
				})
			}

			indexPath, err := files.GenerateHTMLIndex(items)
			if err != nil {
				return err
			}
			ok("Indexed %d files: %s", len(items), indexPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to write index.html into (default: download dir)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Check size and SHA-256 of every file")
	return cmd
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
