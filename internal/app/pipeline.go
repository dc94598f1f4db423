package app

import (
	"context"
	"fmt"
	"time"

	"github.com/blackwell-systems/romctl/internal/browser"
	"github.com/blackwell-systems/romctl/internal/cache"
	"github.com/blackwell-systems/romctl/internal/download"
	"github.com/blackwell-systems/romctl/internal/fetch"
	"github.com/blackwell-systems/romctl/internal/logging"
	"github.com/blackwell-systems/romctl/internal/resolver"
)

// pipelineOverrides are command-line values that replace config settings
// for one run. Zero values keep the config.
type pipelineOverrides struct {
	dir        string
	retries    int
	retryDelay time.Duration
	delay      time.Duration
	noImmed    bool
	progress   download.ProgressFunc
}

// pipeline is the browser session plus everything built on it.
type pipeline struct {
	session  *browser.Session
	resolver *resolver.Resolver
	fetcher  *fetch.Client
	files    *cache.Manager
	orch     *download.Orchestrator
}

// newPipeline launches the browser and wires resolver, fetcher and
// orchestrator to the catalog. Close releases the browser.
func newPipeline(ctx context.Context, o pipelineOverrides) (*pipeline, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	dl := cfg.Download
	if o.dir != "" {
		dl.Dir = o.dir
	}
	if o.retries > 0 {
		dl.MaxRetries = o.retries
	}
	if o.retryDelay > 0 {
		dl.RetryDelay = o.retryDelay
	}
	if o.delay > 0 {
		dl.EntryDelay = o.delay
	}
	if o.noImmed {
		dl.Immediate = false
	}

	session := browser.NewSession(cfg.Browser, cfg.Site, logger.With("component", "browser"))
	if err := session.Open(ctx); err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	p := &pipeline{
		session:  session,
		resolver: resolver.New(session, resolver.OptionsFromConfig(cfg.Resolver), logger.With("component", "resolver")),
		fetcher:  fetch.New(fetch.WithTimeout(dl.Timeout), fetch.WithLogger(logger.With("component", "fetch"))),
		files:    cache.New(dl.Dir, dl.PerCategory),
	}
	if n, err := p.files.CleanPartials(); err != nil {
		logger.Debug("cleaning partial files", logging.Err(err))
	} else if n > 0 {
		logger.Info("removed stale partial files", "count", n)
	}

	p.orch = download.New(p.resolver, p.fetcher, st, p.files, download.Options{
		Headers:     fetch.HeadersFromSite(cfg.Site),
		Retry:       download.RetryPolicy{MaxAttempts: dl.MaxRetries, Delay: dl.RetryDelay},
		EntryDelay:  dl.EntryDelay,
		Immediate:   dl.Immediate,
		MaxFilename: dl.MaxFilename,
		Extensions:  cfg.Resolver.ArchiveExtensions,
		Progress:    o.progress,
	}, logger.With("component", "download"))
	return p, nil
}

func (p *pipeline) Close() error {
	return p.session.Close()
}
