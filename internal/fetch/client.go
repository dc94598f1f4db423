package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/romctl/internal/config"
	"github.com/blackwell-systems/romctl/internal/logging"
	"github.com/blackwell-systems/romctl/internal/util"
)

// DefaultTimeout bounds a single download, including the redirect hop.
const DefaultTimeout = 10 * time.Minute

const partialSuffix = ".part"

// Headers are sent on every request of a fetch, including the redirect hop.
type Headers struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	Referer        string
	Origin         string
	Cookie         string // sent verbatim when non-empty
}

// HeadersFromSite returns headers matching the browser that resolved a link.
func HeadersFromSite(site config.SiteConfig) Headers {
	ua := site.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return Headers{
		UserAgent:      ua,
		Accept:         "*/*",
		AcceptLanguage: site.AcceptLanguage,
		Referer:        site.BaseURL + "/",
		Origin:         site.Origin(),
	}
}

func (h Headers) apply(req *http.Request) {
	set := func(k, v string) {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	set("User-Agent", h.UserAgent)
	set("Accept", h.Accept)
	set("Accept-Language", h.AcceptLanguage)
	set("Referer", h.Referer)
	set("Origin", h.Origin)
	set("Cookie", h.Cookie)
	req.Header.Set("Connection", "keep-alive")
}

// ProgressFunc receives the bytes written so far and the total, or -1 when
// the server sent no Content-Length.
type ProgressFunc func(done, total int64)

// Request describes one download.
type Request struct {
	URL      string
	Dest     string
	Headers  Headers
	Progress ProgressFunc
}

// Result describes a completed download.
type Result struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// Client streams HTTP responses to disk.
type Client struct {
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client. Redirects are never followed automatically; Download
// and FetchHTML follow a single hop themselves.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: DefaultTimeout,
		log:     logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// get issues a GET with h and follows at most one redirect. The caller owns
// the returned body.
func (c *Client) get(ctx context.Context, rawURL string, h Headers) (*http.Response, error) {
	resp, err := c.do(ctx, rawURL, h)
	if err != nil {
		return nil, err
	}
	if !isRedirect(resp.StatusCode) {
		return resp, nil
	}

	loc, err := location(resp)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	c.log.Debug("following redirect", "from", rawURL, "to", loc, "status", resp.StatusCode)

	resp, err = c.do(ctx, loc, h)
	if err != nil {
		return nil, err
	}
	if isRedirect(resp.StatusCode) {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s redirected again", ErrRedirectProtocolViolation, loc)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string, h Headers) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	h.apply(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transferErr("GET %s: %w", rawURL, err)
	}
	return resp, nil
}

func isRedirect(code int) bool {
	return code >= 300 && code < 400
}

func location(resp *http.Response) (string, error) {
	loc, err := resp.Location()
	if err != nil {
		if errors.Is(err, http.ErrNoLocation) {
			return "", transferErr("status %d without Location", resp.StatusCode)
		}
		return "", transferErr("bad Location: %w", err)
	}
	return loc.String(), nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return &StatusError{Code: resp.StatusCode, URL: resp.Request.URL.String()}
}

// FetchHTML returns the body of a page.
func (c *Client) FetchHTML(ctx context.Context, rawURL string, h Headers) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if h.Accept == "" || h.Accept == "*/*" {
		h.Accept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	}
	resp, err := c.get(ctx, rawURL, h)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transferErr("reading %s: %w", rawURL, err)
	}
	return body, nil
}

// Download streams the response for req.URL to req.Dest. The body is written
// to a partial file that is renamed into place on success and removed on any
// failure.
func (c *Client) Download(ctx context.Context, req Request) (Result, error) {
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		return Result{}, fmt.Errorf("%w %q: %w", ErrInvalidURL, req.URL, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.get(ctx, req.URL, req.Headers)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return Result{}, err
	}

	if err := util.EnsureDir(filepath.Dir(req.Dest)); err != nil {
		return Result{}, transferErr("creating %s: %w", filepath.Dir(req.Dest), err)
	}
	tmpPath := req.Dest + partialSuffix
	f, err := os.Create(tmpPath)
	if err != nil {
		return Result{}, transferErr("create partial file: %w", err)
	}

	total := resp.ContentLength
	pw := &progressWriter{total: total, fn: req.Progress}
	hw := newHashWriter()
	n, err := io.Copy(io.MultiWriter(f, hw, pw), resp.Body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return Result{}, transferErr("writing %s after %d bytes: %w", req.Dest, n, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, transferErr("closing partial file: %w", err)
	}
	if total >= 0 && n != total {
		_ = os.Remove(tmpPath)
		return Result{}, transferErr("short body: got %d of %d bytes", n, total)
	}
	if err := os.Rename(tmpPath, req.Dest); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, transferErr("moving into place: %w", err)
	}

	c.log.Debug("download complete", "path", req.Dest, "bytes", n)
	return Result{Path: req.Dest, Bytes: n, SHA256: hw.sum()}, nil
}
