package resolver_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/blackwell-systems/romctl/internal/browser"
)

// fakeSite scripts what a browser would see during one resolution.
type fakeSite struct {
	mu sync.Mutex

	// openOnCTA returns the tab opened by the nth click (1-based) on the
	// call-to-action, or nil when nothing opens.
	openOnCTA  func(n int) *fakePage
	ctaMissing bool
	newPageErr error
	navErr     error

	roots []*fakePage
}

func (s *fakeSite) NewPage(ctx context.Context) (browser.Page, error) {
	if s.newPageErr != nil {
		return nil, s.newPageErr
	}
	p := &fakePage{site: s, root: true}
	s.mu.Lock()
	s.roots = append(s.roots, p)
	s.mu.Unlock()
	return p, nil
}

type sub struct {
	ctx   context.Context
	match func(string) bool
	ch    chan browser.Page
}

type fakePage struct {
	site *fakeSite
	root bool

	mu        sync.Mutex
	url       string
	ctaClicks int
	subs      []sub
	onRequest func(string)
	closed    bool

	// Download page behaviour.
	buttonSelector string
	buttonVisible  bool
	buttonHref     string
	links          []string
	cookies        string
	onButtonClick  func(p *fakePage)
	buttonClicks   int
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if p.site.navErr != nil {
		return p.site.navErr
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *fakePage) Click(ctx context.Context, sel string) error {
	if strings.Contains(sel, `/1"`) {
		return p.clickCTA()
	}
	p.mu.Lock()
	if p.buttonSelector == "" || sel != p.buttonSelector {
		p.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	p.buttonClicks++
	fn := p.onButtonClick
	p.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return nil
}

func (p *fakePage) clickCTA() error {
	if p.site.ctaMissing {
		return errors.New("no node matched")
	}
	p.mu.Lock()
	p.ctaClicks++
	n := p.ctaClicks
	p.mu.Unlock()

	var opened *fakePage
	if p.site.openOnCTA != nil {
		opened = p.site.openOnCTA(n)
	}
	if opened == nil {
		return nil
	}
	opened.site = p.site

	p.mu.Lock()
	defer p.mu.Unlock()
	live := p.subs[:0]
	for _, s := range p.subs {
		if s.ctx.Err() != nil {
			continue
		}
		if s.match == nil || s.match(opened.url) {
			s.ch <- opened
			continue
		}
		live = append(live, s)
	}
	p.subs = live
	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, sel string) error {
	p.mu.Lock()
	visible := p.buttonVisible && sel == p.buttonSelector
	p.mu.Unlock()
	if visible {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePage) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sel == p.buttonSelector && name == "href" && p.buttonHref != "" {
		return p.buttonHref, true, nil
	}
	return "", false, nil
}

func (p *fakePage) Links(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.links...), nil
}

func (p *fakePage) WaitNewPage(ctx context.Context, match func(string) bool) <-chan browser.Page {
	ch := make(chan browser.Page, 1)
	p.mu.Lock()
	p.subs = append(p.subs, sub{ctx: ctx, match: match, ch: ch})
	p.mu.Unlock()
	return ch
}

func (p *fakePage) OnRequest(ctx context.Context, fn func(string)) error {
	p.mu.Lock()
	p.onRequest = fn
	p.mu.Unlock()
	return nil
}

// request simulates the page issuing a network request.
func (p *fakePage) request(url string) {
	p.mu.Lock()
	fn := p.onRequest
	p.mu.Unlock()
	if fn != nil {
		fn(url)
	}
}

func (p *fakePage) Cookies(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cookies, nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePage) clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctaClicks
}
