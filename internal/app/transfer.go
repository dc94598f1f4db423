package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/romctl/internal/catalog"
)

// formatFor picks yaml or csv from an explicit flag or the file extension.
func formatFor(flag, path string) (string, error) {
	f := strings.ToLower(flag)
	if f == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			f = "csv"
		default:
			f = "yaml"
		}
	}
	switch f {
	case "yaml", "yml":
		return "yaml", nil
	case "csv":
		return "csv", nil
	}
	return "", fmt.Errorf("unknown format %q (yaml or csv)", flag)
}

func newExportCmd() *cobra.Command {
	var (
		f      catalog.Filter
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write catalog entries as YAML or CSV",
		Long: `Export catalog entries. Output goes to stdout unless --out is given; the
format follows --format or the output file extension.

Examples:
  romctl export > catalog.yml
  romctl export --out nes.csv --category nes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmtName, err := formatFor(format, out)
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := st.List(cmd.Context(), f)
			if err != nil {
				return err
			}

			if out == "" {
				return encodeEntries(os.Stdout, fmtName, entries)
			}
			if err := saveEntries(out, fmtName, entries); err != nil {
				return err
			}
			ok("Exported %d entries to %s", len(entries), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.Category, "category", "", "Only entries in this category")
	cmd.Flags().StringVar(&format, "format", "", "yaml or csv (default from --out extension, else yaml)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file")
	return cmd
}

func encodeEntries(w io.Writer, format string, entries []catalog.Entry) error {
	if format == "csv" {
		return catalog.WriteCSV(w, entries)
	}
	data, err := catalog.MarshalYAML(entries)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// saveEntries writes entries to path in the given format.
func saveEntries(path, format string, entries []catalog.Entry) error {
	if format != "csv" {
		return catalog.SaveYAML(path, entries)
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := catalog.WriteCSV(fh, entries); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

// loadEntries reads an export file. Rows repeating a source URL collapse to
// the last one.
func loadEntries(path, format string) ([]catalog.Entry, error) {
	var rows []catalog.Entry
	if format == "csv" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = fh.Close() }()
		if rows, err = catalog.ReadCSV(fh); err != nil {
			return nil, err
		}
	} else {
		var err error
		if rows, err = catalog.LoadYAML(path); err != nil {
			return nil, err
		}
	}

	var entries []catalog.Entry
	for _, e := range rows {
		if e.SourceURL == "" {
			entries = append(entries, e)
			continue
		}
		entries = catalog.Merge(entries, e)
	}
	return entries, nil
}

func newImportCmd() *cobra.Command {
	var (
		f      catalog.Filter
		format string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add entries from a YAML or CSV export",
		Long: `Import entries exported by 'romctl export'. Entries are matched by source
URL; imported fields replace stored ones only when they are non-empty.
Rows repeating a source URL collapse to the last one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmtName, err := formatFor(format, args[0])
			if err != nil {
				return err
			}
			entries, err := loadEntries(args[0], fmtName)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			entries = f.Apply(entries)
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}

			var saved int
			for i := range entries {
				e := entries[i]
				e.ID = 0
				if e.SourceURL == "" {
					warn("Skipping entry %d: no source_url", i+1)
					continue
				}
				id, err := st.Save(cmd.Context(), &e)
				if err != nil {
					return fmt.Errorf("saving %s: %w", e.SourceURL, err)
				}
				if e.Download.Status.Valid() && e.Download.Status != catalog.StatusPending {
					if err := st.RecordDownloadStatus(cmd.Context(), id, e.Download); err != nil {
						return fmt.Errorf("saving status of %s: %w", e.SourceURL, err)
					}
				}
				saved++
			}
			ok("Imported %d of %d entries", saved, len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&f.Category, "category", "", "Only import entries in this category")
	cmd.Flags().StringVar(&format, "format", "", "yaml or csv (default from file extension)")
	return cmd
}
