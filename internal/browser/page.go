package browser

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/network"
)

// Page is one browser tab. Every blocking method honours ctx.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Click clicks the first element matching the CSS selector.
	Click(ctx context.Context, sel string) error
	// WaitVisible blocks until an element matching sel is visible.
	WaitVisible(ctx context.Context, sel string) error
	// Attribute reads an attribute of the first element matching sel.
	// ok is false when the element or attribute is absent.
	Attribute(ctx context.Context, sel, name string) (value string, ok bool, err error)
	// Links returns the absolute href of every anchor in the document.
	Links(ctx context.Context) ([]string, error)
	// WaitNewPage subscribes to tabs opened by this page until ctx is done.
	// The subscription is active when WaitNewPage returns, so it must be
	// called before the action that opens the tab. The channel yields at
	// most one page whose URL satisfies match (nil matches any) and is
	// closed without a value if the new tab cannot be attached.
	WaitNewPage(ctx context.Context, match func(url string) bool) <-chan Page
	// OnRequest calls fn with the URL of every request and response the page
	// makes from now on. fn runs on the event loop and must not block.
	OnRequest(ctx context.Context, fn func(url string)) error
	// Cookies returns the browsing context's full cookie jar as a Cookie
	// header value.
	Cookies(ctx context.Context) (string, error)
	// URL returns the current document URL.
	URL(ctx context.Context) (string, error)
	// Close closes the tab. Closing the page returned by NewPage also
	// disposes its browsing context.
	Close() error
}

// FormatCookies serializes cookies as "name=value; name2=value2".
func FormatCookies(cookies []*network.Cookie) string {
	parts := make([]string, 0, len(cookies))
	seen := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
