// Package scrape collects catalog entries from the ROM listing site.
package scrape

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/blackwell-systems/romctl/internal/catalog"
)

// Option is one downloadable variant listed on a detail page.
type Option struct {
	Label string
	URL   string
}

// Detail is everything read from an entry's page.
type Detail struct {
	SourceURL   string
	Title       string
	Category    string
	Description string
	Genre       string
	Region      string
	Screenshots []string
	Options     []Option
}

// Entry converts d to a catalog entry using chosen as the interstitial link.
func (d Detail) Entry(chosen Option) catalog.Entry {
	return catalog.Entry{
		SourceURL:        d.SourceURL,
		Title:            d.Title,
		Category:         d.Category,
		Description:      d.Description,
		Genre:            d.Genre,
		Region:           firstNonEmpty(regionOf(chosen.Label), d.Region),
		Screenshots:      d.Screenshots,
		InterstitialLink: chosen.URL,
	}
}

// ParseDetail reads a detail page. Relative links are resolved against
// sourceURL.
func ParseDetail(sourceURL string, r io.Reader) (Detail, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return Detail{}, fmt.Errorf("parsing source URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Detail{}, fmt.Errorf("parsing page: %w", err)
	}

	d := Detail{SourceURL: sourceURL}
	d.Title = clean(doc.Find("h1").First().Text())
	if d.Title == "" {
		d.Title = clean(attr(doc, `meta[property="og:title"]`, "content"))
	}
	d.Description = clean(attr(doc, `meta[name="description"]`, "content"))
	if d.Description == "" {
		d.Description = clean(doc.Find(".game-description, .description, #description").First().Text())
	}

	d.Category = categoryFromPath(base.Path)
	if d.Category == "" {
		crumbs := doc.Find(".breadcrumb a, nav.breadcrumbs a")
		if crumbs.Length() >= 2 {
			d.Category = clean(crumbs.Eq(crumbs.Length() - 1).Text())
		}
	}

	d.Genre = labelled(doc, "genre")
	d.Region = labelled(doc, "region")

	seen := map[string]bool{}
	doc.Find(".screenshots img, .gallery img, .game-screenshots img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("data-src")
		if !ok {
			src, ok = s.Attr("src")
		}
		if !ok || src == "" {
			return
		}
		abs := resolve(base, src)
		if !seen[abs] {
			seen[abs] = true
			d.Screenshots = append(d.Screenshots, abs)
		}
	})

	doc.Find(`a[href*="/download/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolve(base, href)
		if seen[abs] {
			return
		}
		seen[abs] = true
		label := clean(s.Text())
		if t, ok := s.Attr("title"); ok && label == "" {
			label = clean(t)
		}
		d.Options = append(d.Options, Option{Label: label, URL: abs})
	})

	if d.Title == "" {
		return d, fmt.Errorf("no title found on %s", sourceURL)
	}
	return d, nil
}

// labelled finds a "Label: value" pair in tables, definition lists or list
// items, matching the label case-insensitively.
func labelled(doc *goquery.Document, label string) string {
	var value string
	doc.Find("tr, li, .info-item, dl > div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		key := s.Find("th, dt, strong, b, .label").First()
		if key.Length() == 0 {
			return true
		}
		k := strings.TrimSuffix(clean(key.Text()), ":")
		if !strings.EqualFold(k, label) {
			return true
		}
		v := s.Find("td, dd, .value").First()
		if v.Length() > 0 {
			value = clean(v.Text())
		} else {
			value = clean(strings.TrimPrefix(clean(s.Text()), clean(key.Text())))
		}
		return value == ""
	})
	return value
}

// categoryFromPath extracts "nes" from /roms/nes/some-game.
func categoryFromPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "roms" {
			return parts[i+1]
		}
	}
	return ""
}

func attr(doc *goquery.Document, sel, name string) string {
	v, _ := doc.Find(sel).First().Attr(name)
	return v
}

func resolve(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
