package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/blackwell-systems/romctl/internal/config"
	"github.com/blackwell-systems/romctl/internal/logging"
)

// Listing is one entry link found on a listing page.
type Listing struct {
	URL   string
	Title string
	Page  int
}

// Crawler walks paginated listing pages.
type Crawler struct {
	cfg  config.ScrapeConfig
	site config.SiteConfig
	log  *slog.Logger
}

// NewCrawler returns a crawler for the configured selectors.
func NewCrawler(cfg config.ScrapeConfig, site config.SiteConfig, log *slog.Logger) *Crawler {
	if log == nil {
		log = logging.Discard()
	}
	return &Crawler{cfg: cfg, site: site, log: log}
}

// Crawl visits listURL and follows next-page links, calling fn for each
// distinct entry link. It stops after MaxPages pages when that is positive.
// fn is never called concurrently.
func (c *Crawler) Crawl(ctx context.Context, listURL string, fn func(Listing)) (int, error) {
	u, err := url.Parse(listURL)
	if err != nil || u.Host == "" {
		return 0, fmt.Errorf("invalid listing URL %q", listURL)
	}

	col := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.UserAgent(c.site.UserAgent),
		colly.StdlibContext(ctx),
	)
	if err := col.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		RandomDelay: c.cfg.RandomDelay,
	}); err != nil {
		return 0, err
	}

	var (
		mu     sync.Mutex
		pages  int
		seen   = map[string]bool{}
		errs   []error
		pageOf = map[string]int{}
	)
	pageOf[u.String()] = 1

	col.OnRequest(func(r *colly.Request) {
		if c.site.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", c.site.AcceptLanguage)
		}
		c.log.Debug("listing page", "url", r.URL.String())
	})
	col.OnResponse(func(*colly.Response) {
		mu.Lock()
		pages++
		mu.Unlock()
	})
	col.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", r.Request.URL, err))
		mu.Unlock()
	})

	col.OnHTML(c.cfg.EntrySelector, func(e *colly.HTMLElement) {
		href := e.Request.AbsoluteURL(e.Attr("href"))
		if href == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if seen[href] {
			return
		}
		seen[href] = true
		title := clean(e.Attr("title"))
		if title == "" {
			title = clean(e.Text)
		}
		fn(Listing{URL: href, Title: title, Page: pageOf[e.Request.URL.String()]})
	})

	if c.cfg.NextSelector != "" {
		col.OnHTML(c.cfg.NextSelector, func(e *colly.HTMLElement) {
			next := e.Request.AbsoluteURL(e.Attr("href"))
			if next == "" {
				return
			}
			mu.Lock()
			n := pageOf[e.Request.URL.String()] + 1
			if c.cfg.MaxPages > 0 && n > c.cfg.MaxPages {
				mu.Unlock()
				return
			}
			if _, ok := pageOf[next]; !ok {
				pageOf[next] = n
			}
			mu.Unlock()
			if err := e.Request.Visit(next); err != nil {
				c.log.Debug("skipping next page", "url", next, logging.Err(err))
			}
		})
	}

	if err := col.Visit(u.String()); err != nil {
		return 0, fmt.Errorf("visiting %s: %w", listURL, err)
	}
	col.Wait()

	if err := ctx.Err(); err != nil {
		return pages, err
	}
	if pages == 0 && len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	for _, err := range errs {
		c.log.Warn("listing page failed", logging.Err(err))
	}
	return pages, nil
}
