package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"source_url", "title", "category", "description", "genre", "region",
	"interstitial_link", "download_status", "download_path", "download_bytes",
}

// WriteCSV writes entries as CSV with a header row.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.SourceURL, e.Title, e.Category, e.Description, e.Genre, e.Region,
			e.InterstitialLink, string(e.Download.Status), e.Download.Path,
			strconv.FormatInt(e.Download.Bytes, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses CSV produced by WriteCSV. Columns are matched by header
// name, so files with a subset of columns import too; source_url is required.
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(strings.ToLower(h))] = i
	}
	if _, ok := idx["source_url"]; !ok {
		return nil, fmt.Errorf("CSV has no source_url column")
	}

	entries := []Entry{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		e := Entry{
			SourceURL:        get("source_url"),
			Title:            get("title"),
			Category:         get("category"),
			Description:      get("description"),
			Genre:            get("genre"),
			Region:           get("region"),
			InterstitialLink: get("interstitial_link"),
		}
		if e.SourceURL == "" {
			return nil, fmt.Errorf("CSV line %d: empty source_url", line)
		}
		e.Download.Status = Status(get("download_status"))
		e.Download.Path = get("download_path")
		if b := get("download_bytes"); b != "" {
			n, err := strconv.ParseInt(b, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("CSV line %d: bad download_bytes %q", line, b)
			}
			e.Download.Bytes = n
		}
		entries = append(entries, e)
	}
	return entries, nil
}
