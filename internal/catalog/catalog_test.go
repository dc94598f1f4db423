package catalog_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/romctl/internal/catalog"
)

var sampleYAML = []byte(`
- source_url: https://site.test/roms/nes/super-mario-bros
  title: "Super Mario Bros."
  category: nes
  genre: Platformer
  region: USA
  interstitial_link: https://site.test/download/super-mario-bros
  download:
    status: downloaded
    path: downloads/Super-Mario-Bros.zip
    bytes: 40976

- source_url: https://site.test/roms/snes/chrono-trigger
  title: "Chrono Trigger"
  category: snes
  description: "Time-travel RPG"
  genre: RPG
  interstitial_link: https://site.test/download/chrono-trigger
`)

func TestParseYAML_Valid(t *testing.T) {
	entries, err := catalog.ParseYAML(sampleYAML)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Download.Status != catalog.StatusDownloaded {
		t.Errorf("entries[0] status = %q", entries[0].Download.Status)
	}
	if entries[1].InterstitialLink != "https://site.test/download/chrono-trigger" {
		t.Errorf("entries[1].InterstitialLink = %q", entries[1].InterstitialLink)
	}
}

func TestParseYAML_Empty(t *testing.T) {
	for _, in := range []string{"", "[]\n"} {
		entries, err := catalog.ParseYAML([]byte(in))
		if err != nil {
			t.Fatalf("ParseYAML(%q): %v", in, err)
		}
		if len(entries) != 0 {
			t.Errorf("ParseYAML(%q) = %d entries", in, len(entries))
		}
	}
}

func TestParseYAML_Invalid(t *testing.T) {
	if _, err := catalog.ParseYAML([]byte("source_url: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestSaveAndLoadYAML(t *testing.T) {
	entries, _ := catalog.ParseYAML(sampleYAML)
	path := filepath.Join(t.TempDir(), "catalog.yml")
	if err := catalog.SaveYAML(path, entries); err != nil {
		t.Fatalf("SaveYAML: %v", err)
	}
	got, err := catalog.LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(got) != 2 || got[1].Title != "Chrono Trigger" || got[0].Download.Bytes != 40976 {
		t.Errorf("LoadYAML = %+v", got)
	}

	if _, err := catalog.LoadYAML(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("LoadYAML of a missing file should fail")
	}
}

func TestMergeReplacesBySourceURL(t *testing.T) {
	entries, _ := catalog.ParseYAML(sampleYAML)
	entries = catalog.Merge(entries, catalog.Entry{
		SourceURL: "https://site.test/roms/snes/chrono-trigger",
		Title:     "Chrono Trigger (Rev 1)",
	})
	if len(entries) != 2 {
		t.Fatalf("expected 2 after replace, got %d", len(entries))
	}
	if entries[1].Title != "Chrono Trigger (Rev 1)" {
		t.Errorf("title not replaced: %q", entries[1].Title)
	}

	entries = catalog.Merge(entries, catalog.Entry{SourceURL: "https://site.test/roms/gba/metroid"})
	if len(entries) != 3 {
		t.Errorf("expected 3 after append, got %d", len(entries))
	}
}

func TestBySourceURL(t *testing.T) {
	entries, _ := catalog.ParseYAML(sampleYAML)
	if e := catalog.BySourceURL(entries, "https://site.test/roms/nes/super-mario-bros"); e == nil || e.Category != "nes" {
		t.Errorf("BySourceURL found %+v", e)
	}
	if e := catalog.BySourceURL(entries, "https://site.test/missing"); e != nil {
		t.Error("BySourceURL returned non-nil for missing entry")
	}
}

func TestFilter(t *testing.T) {
	entries, _ := catalog.ParseYAML(sampleYAML)

	tests := []struct {
		name   string
		filter catalog.Filter
		want   []string
	}{
		{"empty", catalog.Filter{}, []string{"Super Mario Bros.", "Chrono Trigger"}},
		{"category case-insensitive", catalog.Filter{Category: "SNES"}, []string{"Chrono Trigger"}},
		{"status", catalog.Filter{Status: catalog.StatusDownloaded}, []string{"Super Mario Bros."}},
		{"search description", catalog.Filter{Search: "time-travel"}, []string{"Chrono Trigger"}},
		{"search genre", catalog.Filter{Search: "platformer"}, []string{"Super Mario Bros."}},
		{"limit", catalog.Filter{Limit: 1}, []string{"Super Mario Bros."}},
		{"no match", catalog.Filter{Category: "n64"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(tt.filter.Apply(entries))
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCSV_WriteThenRead(t *testing.T) {
	entries, _ := catalog.ParseYAML(sampleYAML)
	entries[1].Description = "Time-travel RPG, with \"quotes\""

	var buf bytes.Buffer
	if err := catalog.WriteCSV(&buf, entries); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	got, err := catalog.ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[1].Description != entries[1].Description {
		t.Errorf("description = %q", got[1].Description)
	}
	if got[0].Download.Bytes != 40976 {
		t.Errorf("bytes = %d", got[0].Download.Bytes)
	}
}

func TestReadCSV_SubsetOfColumns(t *testing.T) {
	in := "title,source_url\nMetroid,https://site.test/roms/nes/metroid\n"
	got, err := catalog.ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Metroid" || got[0].SourceURL != "https://site.test/roms/nes/metroid" {
		t.Errorf("got %+v", got)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	cases := map[string]string{
		"no source_url column": "title\nMetroid\n",
		"empty source_url":     "source_url,title\n,Metroid\n",
		"bad bytes":            "source_url,download_bytes\nhttps://x.test/a,lots\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := catalog.ReadCSV(strings.NewReader(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func titles(entries []catalog.Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}
