package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/config"
	"github.com/blackwell-systems/romctl/internal/fetch"
	"github.com/blackwell-systems/romctl/internal/logging"
)

// ErrNoOptions means a detail page listed nothing downloadable, or only
// excluded variants.
var ErrNoOptions = errors.New("no eligible download option")

// HTMLFetcher retrieves a page body.
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, rawURL string, h fetch.Headers) ([]byte, error)
}

// Scraper turns listing and detail pages into catalog entries.
type Scraper struct {
	crawler  *Crawler
	fetcher  HTMLFetcher
	headers  fetch.Headers
	selector OptionSelector
	log      *slog.Logger
}

// New builds a Scraper. A nil selector defaults to RegionPriority from cfg.
func New(cfg config.ScrapeConfig, site config.SiteConfig, f HTMLFetcher, sel OptionSelector, log *slog.Logger) *Scraper {
	if log == nil {
		log = logging.Discard()
	}
	if sel == nil {
		sel = RegionPriority{Priority: cfg.RegionPriority, Exclude: cfg.ExcludeVariants}
	}
	return &Scraper{
		crawler:  NewCrawler(cfg, site, log),
		fetcher:  f,
		headers:  fetch.HeadersFromSite(site),
		selector: sel,
		log:      log,
	}
}

// Entry fetches and parses one detail page. Entries with no eligible option
// are returned alongside ErrNoOptions so callers can still record them.
func (s *Scraper) Entry(ctx context.Context, sourceURL string) (catalog.Entry, error) {
	body, err := s.fetcher.FetchHTML(ctx, sourceURL, s.headers)
	if err != nil {
		return catalog.Entry{}, err
	}
	d, err := ParseDetail(sourceURL, bytes.NewReader(body))
	if err != nil {
		return catalog.Entry{}, err
	}
	opt, ok := s.selector.Select(d.Options)
	e := d.Entry(opt)
	if !ok {
		return e, fmt.Errorf("%s: %w", sourceURL, ErrNoOptions)
	}
	return e, nil
}

// Report counts what a listing scrape produced.
type Report struct {
	Pages     int
	Found     int
	Saved     int
	NoOptions int
	Failed    int
}

// Sink receives scraped entries.
type Sink interface {
	Save(ctx context.Context, e *catalog.Entry) (int64, error)
}

// Listing crawls listURL and scrapes every entry found, saving each to
// sink. Per-entry failures are logged and counted, not returned.
func (s *Scraper) Listing(ctx context.Context, listURL string, sink Sink) (Report, error) {
	var links []Listing
	pages, err := s.crawler.Crawl(ctx, listURL, func(l Listing) { links = append(links, l) })
	rep := Report{Pages: pages, Found: len(links)}
	if err != nil {
		return rep, err
	}

	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		e, err := s.Entry(ctx, l.URL)
		switch {
		case errors.Is(err, ErrNoOptions):
			rep.NoOptions++
			s.log.Info("no eligible option", "url", l.URL)
		case err != nil:
			rep.Failed++
			s.log.Warn("scrape failed", "url", l.URL, logging.Err(err))
			continue
		}
		if e.Title == "" {
			e.Title = l.Title
		}
		if _, err := sink.Save(ctx, &e); err != nil {
			return rep, fmt.Errorf("saving %s: %w", l.URL, err)
		}
		rep.Saved++
	}
	return rep, nil
}
