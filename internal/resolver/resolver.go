// Package resolver turns an interstitial download page into a short-lived
// CDN link and the cookies that authorise it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackwell-systems/romctl/internal/browser"
	"github.com/blackwell-systems/romctl/internal/config"
	"github.com/blackwell-systems/romctl/internal/logging"
)

// ErrUnresolved means no download link was found within the time budget.
// It is a soft failure: the entry should be skipped, not retried now.
var ErrUnresolved = errors.New("no download link found")

// Resolved is a CDN link together with the cookie jar of the browsing
// context that produced it. It is only valid for a short time.
type Resolved struct {
	URL     string
	Cookies string
}

// Opener creates isolated browser pages.
type Opener interface {
	NewPage(ctx context.Context) (browser.Page, error)
}

// Options are the timings and patterns of the click sequence.
type Options struct {
	NavigationTimeout time.Duration
	CountdownSettle   time.Duration
	ButtonTimeout     time.Duration
	PostClickSettle   time.Duration
	PopupTimeout      time.Duration
	OverallTimeout    time.Duration
	ButtonSelector    string
	Matcher           LinkMatcher
}

// OptionsFromConfig maps the resolver config section to Options.
func OptionsFromConfig(cfg config.ResolverConfig) Options {
	return Options{
		NavigationTimeout: cfg.NavigationTimeout,
		CountdownSettle:   cfg.CountdownSettle,
		ButtonTimeout:     cfg.ButtonTimeout,
		PostClickSettle:   cfg.PostClickSettle,
		PopupTimeout:      cfg.PopupTimeout,
		OverallTimeout:    cfg.OverallTimeout,
		ButtonSelector:    cfg.ButtonSelector,
		Matcher:           NewLinkMatcher(cfg.CDNHosts, cfg.ArchiveExtensions),
	}
}

// Resolver drives a browser page through the download flow.
type Resolver struct {
	opener Opener
	opts   Options
	log    *slog.Logger
}

// New creates a Resolver.
func New(opener Opener, opts Options, log *slog.Logger) *Resolver {
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{opener: opener, opts: opts, log: log}
}

type state int

const (
	awaitingFirstPopup state = iota
	awaitingDownloadPage
	done
)

func (s state) String() string {
	switch s {
	case awaitingFirstPopup:
		return "awaiting-first-popup"
	case awaitingDownloadPage:
		return "awaiting-download-page"
	default:
		return "done"
	}
}

// Resolve opens interstitial in a fresh browsing context and returns the CDN
// link it leads to. It returns an error wrapping ErrUnresolved when the flow
// yields no link, and ctx.Err() when the caller cancels.
func (r *Resolver) Resolve(ctx context.Context, interstitial string) (Resolved, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, r.opts.OverallTimeout)
	defer cancel()

	res, err := r.resolve(ctx, interstitial)
	if err != nil && parent.Err() != nil {
		return Resolved{}, parent.Err()
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, interstitial string) (Resolved, error) {
	log := r.log.With("interstitial", interstitial)

	target, rel, err := ctaTargets(interstitial)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: bad interstitial URL: %w", ErrUnresolved, err)
	}
	cta := ctaSelector(target, rel)

	root, err := r.opener.NewPage(ctx)
	if err != nil {
		return Resolved{}, fmt.Errorf("opening browser page: %w", err)
	}
	defer func() { _ = root.Close() }()

	navCtx, navCancel := context.WithTimeout(ctx, r.opts.NavigationTimeout)
	err = root.Navigate(navCtx, interstitial)
	navCancel()
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: loading %s: %w", ErrUnresolved, interstitial, err)
	}

	dl, err := r.openDownloadPage(ctx, log, root, cta, target)
	if err != nil {
		return Resolved{}, err
	}
	defer func() { _ = dl.Close() }()

	// Subscribe before the countdown so an automatic redirect is not missed.
	found := make(chan string, 1)
	offer := func(u string) {
		select {
		case found <- u:
		default:
		}
	}
	if err := dl.OnRequest(ctx, func(u string) {
		if r.opts.Matcher.Match(u) {
			offer(u)
		}
	}); err != nil {
		log.Debug("network observation unavailable", logging.Err(err))
	}

	r.countdownWait(ctx, log, dl)

	link, err := r.extract(ctx, log, dl, found)
	if err != nil {
		return Resolved{}, err
	}

	cookies, err := dl.Cookies(ctx)
	if err != nil {
		log.Warn("could not read cookies, CDN may refuse the link", logging.Err(err))
	}
	log.Debug("link resolved", "url", link)
	return Resolved{URL: link, Cookies: cookies}, nil
}

// openDownloadPage runs the two activations of the call-to-action. The first
// new tab is an advertisement and is closed; the second, if it points at the
// download page, is returned.
func (r *Resolver) openDownloadPage(ctx context.Context, log *slog.Logger, root browser.Page, cta, target string) (browser.Page, error) {
	st := awaitingFirstPopup
	clickFailures := 0
	var dl browser.Page

	for st != done {
		var (
			match   func(string) bool
			timeout time.Duration
		)
		switch st {
		case awaitingFirstPopup:
			timeout = r.opts.PopupTimeout
		case awaitingDownloadPage:
			match = func(u string) bool { return isDownloadPage(target, u) }
			timeout = r.opts.NavigationTimeout
		}

		waitCtx, stopWaiting := context.WithCancel(ctx)
		pages := root.WaitNewPage(waitCtx, match)
		clickCtx, clickCancel := context.WithTimeout(ctx, r.opts.ButtonTimeout)
		err := root.Click(clickCtx, cta)
		clickCancel()
		if err != nil {
			clickFailures++
			log.Debug("activation failed", "state", st, logging.Err(err))
		}

		p, err := waitPage(ctx, pages, timeout)
		stopWaiting()
		if err != nil {
			return nil, err
		}

		switch st {
		case awaitingFirstPopup:
			if p != nil {
				log.Debug("closing ad popup")
				_ = p.Close()
			} else {
				log.Debug("no popup after first activation")
			}
			st = awaitingDownloadPage

		case awaitingDownloadPage:
			if p == nil {
				if clickFailures == 2 {
					return nil, fmt.Errorf("%w: call-to-action for %s not found", ErrUnresolved, target)
				}
				return nil, fmt.Errorf("%w: download page %s never opened", ErrUnresolved, target)
			}
			dl = p
			st = done
		}
	}
	return dl, nil
}

// waitPage waits up to timeout for a page; a nil page means none arrived.
func waitPage(ctx context.Context, pages <-chan browser.Page, timeout time.Duration) (browser.Page, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case p, ok := <-pages:
		if !ok {
			return nil, nil
		}
		return p, nil
	case <-t.C:
		return nil, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUnresolved, ctx.Err())
	}
}

// countdownWait lets the page timer elapse, then waits for the gated button.
// A missing button is not an error: some variants show a plain anchor.
func (r *Resolver) countdownWait(ctx context.Context, log *slog.Logger, dl browser.Page) {
	if err := sleep(ctx, r.opts.CountdownSettle); err != nil {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, r.opts.ButtonTimeout)
	defer cancel()
	if err := dl.WaitVisible(bctx, r.opts.ButtonSelector); err != nil {
		log.Debug("download button did not appear", logging.Err(err))
	}
}

// extract races network observation against DOM extraction and returns the
// first link either produces.
func (r *Resolver) extract(ctx context.Context, log *slog.Logger, dl browser.Page, network <-chan string) (string, error) {
	domCtx, cancelDOM := context.WithCancel(ctx)
	defer cancelDOM()

	dom := make(chan string, 1)
	go func() {
		defer close(dom)
		if u, ok := r.extractFromDOM(domCtx, log, dl); ok {
			dom <- u
		}
	}()

	var grace <-chan time.Time
	for {
		select {
		case u := <-network:
			log.Debug("link from network", "url", u)
			return u, nil
		case u, ok := <-dom:
			if ok {
				log.Debug("link from page", "url", u)
				return u, nil
			}
			// DOM gave up; give in-flight requests one more settle period.
			dom = nil
			t := time.NewTimer(r.opts.PostClickSettle)
			defer t.Stop()
			grace = t.C
		case <-grace:
			return "", fmt.Errorf("%w: nothing matched on the download page", ErrUnresolved)
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", ErrUnresolved, ctx.Err())
		}
	}
}

func (r *Resolver) extractFromDOM(ctx context.Context, log *slog.Logger, dl browser.Page) (string, bool) {
	base, err := dl.URL(ctx)
	if err != nil {
		log.Debug("reading page URL", logging.Err(err))
	}

	if href, ok, err := dl.Attribute(ctx, r.opts.ButtonSelector, "href"); err == nil && ok {
		if u := absolute(base, href); r.opts.Matcher.Match(u) {
			return u, true
		}
	}

	cctx, cancel := context.WithTimeout(ctx, r.opts.ButtonTimeout)
	err = dl.Click(cctx, r.opts.ButtonSelector)
	cancel()
	if err != nil {
		log.Debug("clicking download button", logging.Err(err))
	}
	if err := sleep(ctx, r.opts.PostClickSettle); err != nil {
		return "", false
	}

	links, err := dl.Links(ctx)
	if err != nil {
		log.Debug("scanning anchors", logging.Err(err))
		return "", false
	}
	for _, l := range links {
		if u := absolute(base, l); r.opts.Matcher.Match(u) {
			return u, true
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
