package download_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/romctl/internal/cache"
	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/download"
	"github.com/blackwell-systems/romctl/internal/fetch"
	"github.com/blackwell-systems/romctl/internal/resolver"
)

func gameEntry() catalog.Entry {
	return catalog.Entry{
		SourceURL:        "https://site.test/roms/nes/game-123",
		Title:            "GameTitle",
		Category:         "nes",
		InterstitialLink: "https://site.test/download/game-123",
	}
}

func resolvedOK(call int) (resolver.Resolved, error) {
	return resolver.Resolved{URL: "https://cdn.test/GameTitle.zip", Cookies: "sess=abc123"}, nil
}

func okResult(req fetch.Request) (fetch.Result, error) {
	return fetch.Result{Path: req.Dest, Bytes: 42}, nil
}

func transferErr() error {
	return fmt.Errorf("%w: connection reset", fetch.ErrTransfer)
}

func newOrchestrator(t *testing.T, r download.Resolver, f download.Fetcher, s download.Store, opts download.Options) *download.Orchestrator {
	t.Helper()
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = download.RetryPolicy{MaxAttempts: 3}
	}
	files := cache.New(filepath.Join(t.TempDir(), "downloads"), false)
	return download.New(r, f, s, files, opts, nil)
}

func TestResolveAndDownload_HappyPath(t *testing.T) {
	const size = 1 << 20
	body := make([]byte, size)
	var hits atomic.Int32
	var cookie atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		cookie.Store(r.Header.Get("Cookie"))
		w.Header().Set("Content-Length", strconv.Itoa(size))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	res := &fakeResolver{fn: func(int) (resolver.Resolved, error) {
		return resolver.Resolved{URL: srv.URL + "/GameTitle.zip", Cookies: "sess=abc123"}, nil
	}}
	e := gameEntry()
	store := newMemStore(e)
	e = store.get(e.SourceURL)

	dir := filepath.Join(t.TempDir(), "downloads")
	o := download.New(res, fetch.New(), store, cache.New(dir, false),
		download.Options{Retry: download.RetryPolicy{MaxAttempts: 3}, Immediate: true}, nil)

	out := o.ResolveAndDownload(context.Background(), &e)
	succ, ok := out.(download.Success)
	require.True(t, ok, "outcome = %v", out)
	assert.Equal(t, filepath.Join(dir, "GameTitle.zip"), succ.Path)
	assert.Equal(t, int64(size), succ.Bytes)
	assert.False(t, succ.Cached)
	assert.Equal(t, "sess=abc123", cookie.Load())

	fi, err := os.Stat(filepath.Join(dir, "GameTitle.zip"))
	require.NoError(t, err)
	assert.Equal(t, int64(size), fi.Size())

	st := store.last(e.ID)
	assert.Equal(t, catalog.StatusDownloaded, st.Status)
	assert.Equal(t, int64(size), st.Bytes)
	assert.NotEmpty(t, st.SHA256)
	assert.Equal(t, srv.URL+"/GameTitle.zip", store.get(e.SourceURL).ResolvedLink)

	// Second call finds the file and performs no transfer.
	again := o.ResolveAndDownload(context.Background(), &e)
	succ, ok = again.(download.Success)
	require.True(t, ok, "outcome = %v", again)
	assert.True(t, succ.Cached)
	assert.Equal(t, int64(size), succ.Bytes)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, res.count())
}

func TestResolveAndDownload_RetryBound(t *testing.T) {
	const maxRetries = 3

	t.Run("succeeds on last attempt", func(t *testing.T) {
		f := &fakeFetcher{fn: func(call int, req fetch.Request) (fetch.Result, error) {
			if call < maxRetries {
				return fetch.Result{}, transferErr()
			}
			return okResult(req)
		}}
		e := gameEntry()
		o := newOrchestrator(t, &fakeResolver{fn: resolvedOK}, f, newMemStore(), download.Options{
			Retry: download.RetryPolicy{MaxAttempts: maxRetries, Delay: time.Millisecond},
		})

		out := o.ResolveAndDownload(context.Background(), &e)
		assert.IsType(t, download.Success{}, out)
		assert.Equal(t, maxRetries, f.count())
	})

	t.Run("always failing", func(t *testing.T) {
		f := &fakeFetcher{fn: func(int, fetch.Request) (fetch.Result, error) {
			return fetch.Result{}, transferErr()
		}}
		res := &fakeResolver{fn: resolvedOK}
		e := gameEntry()
		o := newOrchestrator(t, res, f, newMemStore(), download.Options{
			Retry: download.RetryPolicy{MaxAttempts: maxRetries, Delay: time.Millisecond},
		})

		out := o.ResolveAndDownload(context.Background(), &e)
		failed, ok := out.(download.Failed)
		require.True(t, ok, "outcome = %v", out)
		assert.Equal(t, download.KindTransfer, failed.Kind)
		assert.Equal(t, maxRetries, f.count())
		assert.Equal(t, 1, res.count(), "retries reuse the resolved link")
	})
}

func TestResolveAndDownload_RetriesReuseCookies(t *testing.T) {
	f := &fakeFetcher{fn: func(call int, req fetch.Request) (fetch.Result, error) {
		if call == 1 {
			return fetch.Result{}, transferErr()
		}
		return okResult(req)
	}}
	e := gameEntry()
	o := newOrchestrator(t, &fakeResolver{fn: resolvedOK}, f, newMemStore(), download.Options{
		Headers: fetch.Headers{UserAgent: "ua", Referer: "https://site.test/"},
	})
	_ = o.ResolveAndDownload(context.Background(), &e)

	require.Len(t, f.reqs, 2)
	for _, req := range f.reqs {
		assert.Equal(t, "https://cdn.test/GameTitle.zip", req.URL)
		assert.Equal(t, "sess=abc123", req.Headers.Cookie)
		assert.Equal(t, "ua", req.Headers.UserAgent)
		assert.Equal(t, "GameTitle.zip", filepath.Base(req.Dest))
	}
}

func TestResolveAndDownload_RedirectViolationNotRetried(t *testing.T) {
	f := &fakeFetcher{fn: func(int, fetch.Request) (fetch.Result, error) {
		return fetch.Result{}, fmt.Errorf("%w: /b redirected again", fetch.ErrRedirectProtocolViolation)
	}}
	e := gameEntry()
	o := newOrchestrator(t, &fakeResolver{fn: resolvedOK}, f, newMemStore(), download.Options{})

	out := o.ResolveAndDownload(context.Background(), &e)
	assert.Equal(t, download.KindRedirectProtocolViolation, out.(download.Failed).Kind)
	assert.Equal(t, 1, f.count())
}

func TestResolveAndDownload_LinkExpiredReresolves(t *testing.T) {
	res := &fakeResolver{fn: func(call int) (resolver.Resolved, error) {
		return resolver.Resolved{URL: "https://cdn.test/GameTitle.zip?t=" + strconv.Itoa(call)}, nil
	}}
	f := &fakeFetcher{fn: func(call int, req fetch.Request) (fetch.Result, error) {
		if call == 1 {
			return fetch.Result{}, &fetch.StatusError{Code: http.StatusGone, URL: req.URL}
		}
		return okResult(req)
	}}
	e := gameEntry()
	o := newOrchestrator(t, res, f, newMemStore(), download.Options{})

	out := o.ResolveAndDownload(context.Background(), &e)
	assert.IsType(t, download.Success{}, out)
	assert.Equal(t, 2, res.count())
	require.Equal(t, 2, f.count())
	assert.Equal(t, "https://cdn.test/GameTitle.zip?t=2", f.reqs[1].URL)
}

func TestResolveAndDownload_LinkExpiredTwiceFails(t *testing.T) {
	res := &fakeResolver{fn: resolvedOK}
	f := &fakeFetcher{fn: func(call int, req fetch.Request) (fetch.Result, error) {
		return fetch.Result{}, &fetch.StatusError{Code: http.StatusForbidden, URL: req.URL}
	}}
	e := gameEntry()
	o := newOrchestrator(t, res, f, newMemStore(), download.Options{})

	out := o.ResolveAndDownload(context.Background(), &e)
	assert.Equal(t, download.KindLinkExpired, out.(download.Failed).Kind)
	assert.Equal(t, 2, res.count())
	assert.Equal(t, 2, f.count())
}

func TestResolveAndDownload_UnresolvedIsSkipped(t *testing.T) {
	res := &fakeResolver{fn: func(int) (resolver.Resolved, error) {
		return resolver.Resolved{}, fmt.Errorf("%w: nothing matched", resolver.ErrUnresolved)
	}}
	f := &fakeFetcher{fn: func(int, fetch.Request) (fetch.Result, error) {
		t.Fatal("no transfer expected")
		return fetch.Result{}, nil
	}}
	e := gameEntry()
	store := newMemStore(e)
	e = store.get(e.SourceURL)
	o := newOrchestrator(t, res, f, store, download.Options{})

	out := o.ResolveAndDownload(context.Background(), &e)
	skipped, ok := out.(download.Skipped)
	require.True(t, ok, "outcome = %v", out)
	assert.Equal(t, download.KindResolutionTimeout, skipped.Reason)
	assert.Equal(t, catalog.StatusSkipped, store.last(e.ID).Status)
}

func TestResolveAndDownload_NoInterstitialLink(t *testing.T) {
	res := &fakeResolver{fn: resolvedOK}
	e := gameEntry()
	e.InterstitialLink = ""
	store := newMemStore()
	o := newOrchestrator(t, res, &fakeFetcher{fn: func(int, fetch.Request) (fetch.Result, error) { return fetch.Result{}, nil }}, store, download.Options{})

	out := o.ResolveAndDownload(context.Background(), &e)
	assert.Equal(t, download.Skipped{Reason: download.KindNoInterstitialLink, Detail: download.ErrNoInterstitialLink.Error()}, out)
	assert.Zero(t, res.count())
	assert.NotZero(t, e.ID, "entry is saved so its status can be recorded")
	assert.Equal(t, catalog.StatusSkipped, store.last(e.ID).Status)
}

func TestResolveAndDownload_BrowserError(t *testing.T) {
	res := &fakeResolver{fn: func(int) (resolver.Resolved, error) {
		return resolver.Resolved{}, errors.New("opening browser page: chrome crashed")
	}}
	e := gameEntry()
	o := newOrchestrator(t, res, &fakeFetcher{fn: func(int, fetch.Request) (fetch.Result, error) { return fetch.Result{}, nil }}, newMemStore(), download.Options{})

	out := o.ResolveAndDownload(context.Background(), &e)
	assert.Equal(t, download.KindBrowser, out.(download.Failed).Kind)
}

func TestResolveAndDownload_CachedLink(t *testing.T) {
	e := gameEntry()
	e.ResolvedLink = "https://cdn.test/cached/GameTitle.7z"

	t.Run("used when not immediate", func(t *testing.T) {
		res := &fakeResolver{fn: resolvedOK}
		f := &fakeFetcher{fn: func(_ int, req fetch.Request) (fetch.Result, error) { return okResult(req) }}
		o := newOrchestrator(t, res, f, newMemStore(), download.Options{Immediate: false})

		entry := e
		out := o.ResolveAndDownload(context.Background(), &entry)
		assert.IsType(t, download.Success{}, out)
		assert.Zero(t, res.count())
		assert.Equal(t, "https://cdn.test/cached/GameTitle.7z", f.reqs[0].URL)
		assert.Equal(t, "GameTitle.7z", filepath.Base(f.reqs[0].Dest))
	})

	t.Run("ignored in immediate mode", func(t *testing.T) {
		res := &fakeResolver{fn: resolvedOK}
		f := &fakeFetcher{fn: func(_ int, req fetch.Request) (fetch.Result, error) { return okResult(req) }}
		o := newOrchestrator(t, res, f, newMemStore(), download.Options{Immediate: true})

		entry := e
		_ = o.ResolveAndDownload(context.Background(), &entry)
		assert.Equal(t, 1, res.count())
		assert.Equal(t, "https://cdn.test/GameTitle.zip", f.reqs[0].URL)
	})
}

func TestResolveAndDownload_FilenamePolicy(t *testing.T) {
	res := &fakeResolver{fn: func(int) (resolver.Resolved, error) {
		return resolver.Resolved{URL: "https://cdn.test/get?id=9"}, nil
	}}
	f := &fakeFetcher{fn: func(_ int, req fetch.Request) (fetch.Result, error) { return okResult(req) }}
	e := gameEntry()
	e.Title = "Legend of Zelda: A Link to the Past (USA)"
	o := newOrchestrator(t, res, f, newMemStore(), download.Options{MaxFilename: 20})

	_ = o.ResolveAndDownload(context.Background(), &e)
	require.Equal(t, 1, f.count())
	assert.Equal(t, "LegendofZeldaALinkto.zip", filepath.Base(f.reqs[0].Dest))
}

func TestResolveAndDownload_SimilarTitleIsNotCached(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SuperMarioBros.3.zip"), []byte("smb3"), 0600))

	res := &fakeResolver{fn: func(int) (resolver.Resolved, error) {
		return resolver.Resolved{URL: "https://cdn.test/SuperMarioBros.zip"}, nil
	}}
	f := &fakeFetcher{fn: func(_ int, req fetch.Request) (fetch.Result, error) { return okResult(req) }}
	e := gameEntry()
	e.Title = "Super Mario Bros"
	store := newMemStore(e)
	e = store.get(e.SourceURL)

	o := download.New(res, f, store, cache.New(dir, false), download.Options{
		Retry:      download.RetryPolicy{MaxAttempts: 1},
		Immediate:  true,
		Extensions: []string{"zip", ".7Z"},
	}, nil)

	out := o.ResolveAndDownload(context.Background(), &e)
	succ, ok := out.(download.Success)
	require.True(t, ok, "outcome = %v", out)
	assert.False(t, succ.Cached)
	assert.Equal(t, filepath.Join(dir, "SuperMarioBros.zip"), succ.Path)
	assert.Equal(t, 1, res.count())
	require.Equal(t, 1, f.count())
	assert.Equal(t, succ.Path, store.last(e.ID).Path)
}

func TestResolveAndDownload_ExtensionFromArchiveList(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.test/get.php?id=1", "GameTitle.zip"},
		{"https://cdn.test/files/GameTitle.7z", "GameTitle.7z"},
		{"https://cdn.test/files/GameTitle.CHD?token=x", "GameTitle.chd"},
	}
	for _, c := range cases {
		t.Run(c.url, func(t *testing.T) {
			res := &fakeResolver{fn: func(int) (resolver.Resolved, error) {
				return resolver.Resolved{URL: c.url}, nil
			}}
			f := &fakeFetcher{fn: func(_ int, req fetch.Request) (fetch.Result, error) { return okResult(req) }}
			e := gameEntry()
			o := newOrchestrator(t, res, f, newMemStore(), download.Options{
				Extensions: []string{".zip", ".7z", ".chd"},
			})

			_ = o.ResolveAndDownload(context.Background(), &e)
			require.Equal(t, 1, f.count())
			assert.Equal(t, c.want, filepath.Base(f.reqs[0].Dest))
		})
	}
}

func TestResolveAndDownload_InvalidURLNotRetried(t *testing.T) {
	res := &fakeResolver{fn: func(int) (resolver.Resolved, error) {
		return resolver.Resolved{URL: "::nope"}, nil
	}}
	e := gameEntry()
	o := newOrchestrator(t, res, fetch.New(), newMemStore(), download.Options{
		Retry: download.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond},
	})

	out := o.ResolveAndDownload(context.Background(), &e)
	failed, ok := out.(download.Failed)
	require.True(t, ok, "outcome = %v", out)
	assert.Equal(t, download.KindInvalidURL, failed.Kind)
	assert.Equal(t, 1, res.count())
}

func TestResolveAndDownload_Progress(t *testing.T) {
	f := &fakeFetcher{fn: func(_ int, req fetch.Request) (fetch.Result, error) {
		req.Progress(50, 100)
		req.Progress(100, 100)
		return okResult(req)
	}}
	var got []int64
	e := gameEntry()
	o := newOrchestrator(t, &fakeResolver{fn: resolvedOK}, f, newMemStore(), download.Options{
		Progress: func(pe *catalog.Entry, done, total int64) {
			assert.Equal(t, e.SourceURL, pe.SourceURL)
			got = append(got, done)
		},
	})
	_ = o.ResolveAndDownload(context.Background(), &e)
	assert.Equal(t, []int64{50, 100}, got)
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want download.Kind
	}{
		{&fetch.StatusError{Code: 404}, download.KindLinkExpired},
		{&fetch.StatusError{Code: 500}, download.KindTransfer},
		{download.ErrRedirectProtocolViolation, download.KindRedirectProtocolViolation},
		{fmt.Errorf("x: %w", resolver.ErrUnresolved), download.KindResolutionTimeout},
		{download.ErrNoInterstitialLink, download.KindNoInterstitialLink},
		{fmt.Errorf("%w \"::nope\": missing scheme", fetch.ErrInvalidURL), download.KindInvalidURL},
		{errors.New("other"), download.KindTransfer},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, download.KindOf(c.err), "%v", c.err)
	}
}
