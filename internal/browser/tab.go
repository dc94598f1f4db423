package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Tab is a chromedp-backed Page.
type Tab struct {
	ctx              context.Context
	cancel           context.CancelFunc
	root             bool
	browserContextID cdp.BrowserContextID
	log              *slog.Logger
}

// run executes actions on the tab, bounded by both the tab's lifetime and ctx.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	rctx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var c2 context.CancelFunc
		rctx, c2 = context.WithDeadline(rctx, dl)
		defer c2()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (t *Tab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, chromedp.Navigate(url))
}

func (t *Tab) Click(ctx context.Context, sel string) error {
	return t.run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}

func (t *Tab) WaitVisible(ctx context.Context, sel string) error {
	return t.run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (t *Tab) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	qs, _ := json.Marshal(sel)
	qn, _ := json.Marshal(name)
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || !el.hasAttribute(%s)) return {found: false, value: ""};
		return {found: true, value: el.getAttribute(%s)};
	})()`, qs, qn, qn)

	var res struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
	}
	if err := t.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return "", false, err
	}
	return res.Value, res.Found, nil
}

func (t *Tab) Links(ctx context.Context) ([]string, error) {
	var links []string
	err := t.run(ctx, chromedp.Evaluate(`Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`, &links))
	return links, err
}

func (t *Tab) URL(ctx context.Context) (string, error) {
	var u string
	err := t.run(ctx, chromedp.Location(&u))
	return u, err
}

func (t *Tab) WaitNewPage(ctx context.Context, match func(url string) bool) <-chan Page {
	out := make(chan Page, 1)
	c := chromedp.FromContext(t.ctx)
	if c == nil || c.Target == nil {
		close(out)
		return out
	}
	self := c.Target.TargetID

	// The listener is dropped when wctx ends.
	wctx, cancel := context.WithCancel(t.ctx)
	stop := context.AfterFunc(ctx, cancel)
	ids := chromedp.WaitNewTarget(wctx, func(info *target.Info) bool {
		if info.Type != "page" || info.OpenerID != self {
			return false
		}
		return match == nil || match(info.URL)
	})

	go func() {
		defer close(out)
		defer stop()
		defer cancel()
		select {
		case id, ok := <-ids:
			if !ok {
				return
			}
			p, err := t.attach(id)
			if err != nil {
				t.log.Debug("attaching to new tab failed", "target", id, "err", err)
				return
			}
			out <- p
		case <-wctx.Done():
		}
	}()
	return out
}

func (t *Tab) attach(id target.ID) (*Tab, error) {
	ctx, cancel := chromedp.NewContext(t.ctx, chromedp.WithTargetID(id))
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, err
	}
	return &Tab{ctx: ctx, cancel: cancel, browserContextID: t.browserContextID, log: t.log}, nil
}

func (t *Tab) OnRequest(ctx context.Context, fn func(url string)) error {
	chromedp.ListenTarget(t.ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			fn(e.Request.URL)
		case *network.EventResponseReceived:
			fn(e.Response.URL)
		}
	})
	return t.run(ctx, network.Enable())
}

func (t *Tab) Cookies(ctx context.Context) (string, error) {
	var cookies []*network.Cookie
	err := t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		var err error
		cookies, err = storage.GetCookies().
			WithBrowserContextID(t.browserContextID).
			Do(cdp.WithExecutor(ctx, c.Browser))
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("reading cookies: %w", err)
	}
	return FormatCookies(cookies), nil
}

// Close closes the tab. A root tab takes its browsing context with it.
func (t *Tab) Close() error {
	defer t.cancel()
	if t.root {
		return nil
	}
	err := chromedp.Run(t.ctx, page.Close())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
