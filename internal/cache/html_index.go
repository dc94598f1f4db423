package cache

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// IndexEntry is one downloaded file listed in the HTML index.
type IndexEntry struct {
	Title    string
	Category string
	Region   string
	FilePath string
	Bytes    int64
}

// GenerateHTMLIndex writes index.html into the base directory, listing the
// entries grouped by category. Returns the index path.
func (m *Manager) GenerateHTMLIndex(entries []IndexEntry) (string, error) {
	if err := os.MkdirAll(m.baseDir, 0750); err != nil {
		return "", err
	}
	indexPath := filepath.Join(m.baseDir, "index.html")
	if err := os.WriteFile(indexPath, []byte(m.generateHTML(entries)), 0644); err != nil {
		return "", fmt.Errorf("writing index.html: %w", err)
	}
	return indexPath, nil
}

func (m *Manager) generateHTML(entries []IndexEntry) string {
	groups := map[string][]IndexEntry{}
	var total int64
	for _, e := range entries {
		cat := e.Category
		if cat == "" {
			cat = "uncategorized"
		}
		groups[cat] = append(groups[cat], e)
		total += e.Bytes
	}
	cats := make([]string, 0, len(groups))
	for c := range groups {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var s strings.Builder
	s.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>romctl Library</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #1a1a1a; color: #e0e0e0; max-width: 1000px; margin: 0 auto; padding: 20px; }
        h1 .brand-rom { color: #fb6820; }
        h1 .brand-ctl { color: #2ecfd4; }
        h2 { color: #2ecfd4; border-bottom: 1px solid #1e3a3c; padding-bottom: 4px; }
        .subtitle { color: #888; font-size: 0.9rem; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 24px; }
        td { padding: 4px 8px; border-bottom: 1px solid #2a2a2a; }
        td.size { text-align: right; color: #888; white-space: nowrap; }
        a { color: #e0e0e0; text-decoration: none; }
        a:hover { color: #fb6820; }
    </style>
</head>
<body>
    <h1><span class="brand-rom">rom</span><span class="brand-ctl">ctl</span> Library</h1>
`)
	fmt.Fprintf(&s, "    <p class=\"subtitle\">%d files, %s</p>\n", len(entries), humanize.Bytes(uint64(total)))

	for _, cat := range cats {
		list := groups[cat]
		sort.Slice(list, func(i, j int) bool { return list[i].Title < list[j].Title })
		fmt.Fprintf(&s, "    <h2>%s</h2>\n    <table>\n", html.EscapeString(cat))
		for _, e := range list {
			m.renderRow(&s, e)
		}
		s.WriteString("    </table>\n")
	}

	s.WriteString("</body>\n</html>\n")
	return s.String()
}

func (m *Manager) renderRow(s *strings.Builder, e IndexEntry) {
	href := e.FilePath
	if rel, err := filepath.Rel(m.baseDir, e.FilePath); err == nil && !strings.HasPrefix(rel, "..") {
		href = filepath.ToSlash(rel)
	}
	title := e.Title
	if e.Region != "" {
		title += " (" + e.Region + ")"
	}
	fmt.Fprintf(s, "        <tr><td><a href=\"%s\">%s</a></td><td class=\"size\">%s</td></tr>\n",
		html.EscapeString(href), html.EscapeString(title), humanize.Bytes(uint64(e.Bytes)))
}
