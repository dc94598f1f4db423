package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/blackwell-systems/romctl/internal/config"
	"github.com/blackwell-systems/romctl/internal/logging"
)

// ErrClosed is returned by NewPage when the session is not open.
var ErrClosed = errors.New("browser session is closed")

// Session owns one headless browser process shared by every page. The
// process starts on the first Open and stops when the last holder calls
// Close.
type Session struct {
	cfg            config.BrowserConfig
	userAgent      string
	acceptLanguage string
	log            *slog.Logger

	mu          sync.Mutex
	refs        int
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelBrows context.CancelFunc
}

// NewSession prepares a session. No process is started until Open.
func NewSession(cfg config.BrowserConfig, site config.SiteConfig, log *slog.Logger) *Session {
	if log == nil {
		log = logging.Discard()
	}
	ua := site.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &Session{cfg: cfg, userAgent: ua, acceptLanguage: site.AcceptLanguage, log: log}
}

// Open takes a reference on the browser, launching it if needed.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs > 0 {
		s.refs++
		return nil
	}

	execPath, err := Find(s.cfg.Path)
	if err != nil {
		return err
	}
	windowSize := s.cfg.WindowSize
	if windowSize == "" {
		windowSize = "1920,1080"
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", s.cfg.NoSandbox),
		chromedp.Flag("window-size", windowSize),
		chromedp.UserAgent(s.userAgent),
		chromedp.ExecPath(execPath),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrows := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		s.log.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}))

	// The first Run launches the process.
	startCtx, cancelStart := context.WithCancel(browserCtx)
	stop := context.AfterFunc(ctx, cancelStart)
	err = chromedp.Run(startCtx)
	stop()
	cancelStart()
	if err != nil {
		cancelBrows()
		cancelAlloc()
		return fmt.Errorf("starting browser %s: %w", execPath, err)
	}

	s.log.Debug("browser started", "path", execPath, "headless", s.cfg.Headless)
	s.browserCtx = browserCtx
	s.cancelAlloc = cancelAlloc
	s.cancelBrows = cancelBrows
	s.refs = 1
	return nil
}

// Close drops a reference, stopping the browser when none remain.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}

	err := chromedp.Cancel(s.browserCtx)
	s.cancelBrows()
	s.cancelAlloc()
	s.browserCtx = nil
	s.log.Debug("browser stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stopping browser: %w", err)
	}
	return nil
}

// NewPage opens a tab in a fresh browsing context with its own cookie jar.
func (s *Session) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	parent := s.browserCtx
	s.mu.Unlock()
	if parent == nil {
		return nil, ErrClosed
	}

	tabCtx, cancel := chromedp.NewContext(parent, chromedp.WithNewBrowserContext())
	t := &Tab{ctx: tabCtx, cancel: cancel, root: true, log: s.log}

	// The first Run creates the browser context and its target.
	err := t.run(ctx,
		emulation.SetUserAgentOverride(s.userAgent).WithAcceptLanguage(s.acceptLanguage),
		chromedp.ActionFunc(func(ctx context.Context) error {
			c := chromedp.FromContext(ctx)
			t.browserContextID = c.BrowserContextID
			// Downloads started by clicks are observed, never saved by the browser.
			return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorDeny).
				WithBrowserContextID(c.BrowserContextID).
				Do(cdp.WithExecutor(ctx, c.Browser))
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return t, nil
}
