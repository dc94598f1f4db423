// Package download resolves catalog entries to CDN links and transfers the
// files, recording each outcome in the catalog.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/blackwell-systems/romctl/internal/cache"
	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/fetch"
	"github.com/blackwell-systems/romctl/internal/logging"
	"github.com/blackwell-systems/romctl/internal/resolver"
	"github.com/blackwell-systems/romctl/internal/util"
)

// DefaultExt is used when the resolved URL has no file extension.
const DefaultExt = ".zip"

// Resolver turns an interstitial URL into a fresh CDN link.
type Resolver interface {
	Resolve(ctx context.Context, interstitial string) (resolver.Resolved, error)
}

// Fetcher streams a URL to disk.
type Fetcher interface {
	Download(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

// Store is the part of the catalog the orchestrator reads and writes.
type Store interface {
	Pending(ctx context.Context, f catalog.Filter) ([]catalog.Entry, error)
	Save(ctx context.Context, e *catalog.Entry) (int64, error)
	RecordDownloadStatus(ctx context.Context, id int64, st catalog.DownloadState) error
}

// ProgressFunc reports transfer progress for an entry; total is -1 when
// unknown.
type ProgressFunc func(e *catalog.Entry, done, total int64)

// Options configure an Orchestrator.
type Options struct {
	Headers     fetch.Headers
	Retry       RetryPolicy
	EntryDelay  time.Duration
	Immediate   bool // always resolve a fresh link, ignoring a cached one
	MaxFilename int
	// Extensions lists the archive extensions a download may be saved with.
	// Empty accepts any.
	Extensions []string
	Progress   ProgressFunc
}

// Orchestrator downloads catalog entries one at a time.
type Orchestrator struct {
	resolver Resolver
	fetcher  Fetcher
	store    Store
	files    *cache.Manager
	opts     Options
	log      *slog.Logger
	now      func() time.Time
}

// New creates an Orchestrator.
func New(r Resolver, f Fetcher, s Store, files *cache.Manager, opts Options, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = logging.Discard()
	}
	if opts.MaxFilename <= 0 {
		opts.MaxFilename = 100
	}
	opts.Extensions = util.NormalizeExts(opts.Extensions)
	return &Orchestrator{resolver: r, fetcher: f, store: s, files: files, opts: opts, log: log, now: time.Now}
}

// ResolveAndDownload produces the file for e. It resolves a link unless a
// cached one may be used, transfers it immediately, and records the outcome.
// The entry is updated in place.
func (o *Orchestrator) ResolveAndDownload(ctx context.Context, e *catalog.Entry) Outcome {
	return o.resolveAndDownload(ctx, e, "")
}

func (o *Orchestrator) resolveAndDownload(ctx context.Context, e *catalog.Entry, runID string) Outcome {
	log := o.log.With("source", e.SourceURL)
	out := o.attempt(ctx, log, e)
	o.record(ctx, log, e, out, runID)
	return out
}

func (o *Orchestrator) attempt(ctx context.Context, log *slog.Logger, e *catalog.Entry) Outcome {
	if e.InterstitialLink == "" {
		return Skipped{Reason: KindNoInterstitialLink, Detail: ErrNoInterstitialLink.Error()}
	}

	base := o.baseName(e)
	if p, ok := o.files.Find(e.Category, base, o.opts.Extensions); ok {
		n, _ := util.FileSize(p)
		log.Debug("file already present", "path", p)
		return Success{Path: p, Bytes: n, Cached: true}
	}

	var link resolver.Resolved
	if !o.opts.Immediate && e.HasResolvedLink() {
		log.Debug("using cached link", "url", e.ResolvedLink, "resolved_at", e.ResolvedAt)
		link = resolver.Resolved{URL: e.ResolvedLink}
	} else {
		var out Outcome
		if link, out = o.resolve(ctx, log, e); out != nil {
			return out
		}
	}

	res, err := o.transfer(ctx, log, e, base, link)
	if errors.Is(err, ErrLinkExpired) {
		log.Info("link expired, resolving again", logging.Err(err))
		var out Outcome
		if link, out = o.resolve(ctx, log, e); out != nil {
			return out
		}
		res, err = o.transfer(ctx, log, e, base, link)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Failed{Kind: KindCancelled, Detail: ctx.Err().Error()}
		}
		return Failed{Kind: KindOf(err), Detail: err.Error()}
	}
	return Success{Path: res.Path, Bytes: res.Bytes, SHA256: res.SHA256}
}

// resolve obtains a fresh link and stores it on the entry. A non-nil Outcome
// ends the attempt.
func (o *Orchestrator) resolve(ctx context.Context, log *slog.Logger, e *catalog.Entry) (resolver.Resolved, Outcome) {
	link, err := o.resolver.Resolve(ctx, e.InterstitialLink)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return link, Failed{Kind: KindCancelled, Detail: ctx.Err().Error()}
	case errors.Is(err, ErrResolutionTimeout):
		return link, Skipped{Reason: KindResolutionTimeout, Detail: err.Error()}
	default:
		return link, Failed{Kind: KindBrowser, Detail: err.Error()}
	}

	e.ResolvedLink = link.URL
	e.ResolvedAt = o.now()
	if _, err := o.store.Save(ctx, e); err != nil {
		log.Warn("saving resolved link", logging.Err(err))
	}
	return link, nil
}

// transfer downloads link with the retry policy. Every attempt reuses the
// same link and cookies.
func (o *Orchestrator) transfer(ctx context.Context, log *slog.Logger, e *catalog.Entry, base string, link resolver.Resolved) (fetch.Result, error) {
	dest := o.files.Path(e.Category, base+extFor(link.URL, o.opts.Extensions))
	if err := o.files.EnsureDir(e.Category); err != nil {
		return fetch.Result{}, fmt.Errorf("%w: %w", ErrTransfer, err)
	}

	h := o.opts.Headers
	h.Cookie = link.Cookies
	req := fetch.Request{URL: link.URL, Dest: dest, Headers: h}
	if o.opts.Progress != nil {
		req.Progress = func(done, total int64) { o.opts.Progress(e, done, total) }
	}

	var res fetch.Result
	attempts, err := o.opts.Retry.Do(ctx, func(attempt int) error {
		var err error
		res, err = o.fetcher.Download(ctx, req)
		if err != nil {
			log.Warn("transfer attempt failed", "attempt", attempt, "of", o.opts.Retry.MaxAttempts, logging.Err(err))
		}
		return err
	})
	if err != nil {
		return fetch.Result{}, err
	}
	log.Debug("transfer complete", "attempts", attempts, "bytes", res.Bytes)
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, log *slog.Logger, e *catalog.Entry, out Outcome, runID string) {
	// The outcome is recorded even when the run is being cancelled.
	ctx = context.WithoutCancel(ctx)
	st := state(out, runID)
	st.At = o.now()
	e.Download = st
	if e.ID == 0 {
		if _, err := o.store.Save(ctx, e); err != nil {
			log.Warn("saving entry", logging.Err(err))
			return
		}
	}
	if err := o.store.RecordDownloadStatus(ctx, e.ID, st); err != nil {
		log.Warn("recording download status", logging.Err(err))
	}
}

// baseName is the sanitized file name without extension.
func (o *Orchestrator) baseName(e *catalog.Entry) string {
	title := e.Title
	if strings.TrimSpace(title) == "" {
		title = path.Base(strings.TrimRight(e.SourceURL, "/"))
	}
	return util.SafeFilename(title, o.opts.MaxFilename)
}

// extFor returns the extension of the URL path when it is one of exts, or
// DefaultExt. Links matched by host often end in a script name.
func extFor(rawURL string, exts []string) string {
	ext := util.URLExt(rawURL)
	if ext == "" {
		return DefaultExt
	}
	if len(exts) == 0 || slices.Contains(exts, ext) {
		return ext
	}
	return DefaultExt
}
