package download_test

import (
	"context"
	"sync"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/fetch"
	"github.com/blackwell-systems/romctl/internal/resolver"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (resolver.Resolved, error)
}

func (r *fakeResolver) Resolve(ctx context.Context, interstitial string) (resolver.Resolved, error) {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.mu.Unlock()
	return r.fn(n)
}

func (r *fakeResolver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeFetcher struct {
	mu   sync.Mutex
	reqs []fetch.Request
	fn   func(call int, req fetch.Request) (fetch.Result, error)
}

func (f *fakeFetcher) Download(ctx context.Context, req fetch.Request) (fetch.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	n := len(f.reqs)
	f.mu.Unlock()
	return f.fn(n, req)
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

// memStore is an in-memory Store keyed by source URL.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	entries  map[string]*catalog.Entry
	statuses map[int64][]catalog.DownloadState
}

func newMemStore(entries ...catalog.Entry) *memStore {
	s := &memStore{entries: map[string]*catalog.Entry{}, statuses: map[int64][]catalog.DownloadState{}}
	for i := range entries {
		_, _ = s.Save(context.Background(), &entries[i])
	}
	return s
}

func (s *memStore) Pending(ctx context.Context, f catalog.Filter) ([]catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []catalog.Entry
	for id := int64(1); id <= s.nextID; id++ {
		for _, e := range s.entries {
			if e.ID == id && e.Download.Status != catalog.StatusDownloaded {
				all = append(all, *e)
			}
		}
	}
	return f.Apply(all), nil
}

func (s *memStore) Save(ctx context.Context, e *catalog.Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[e.SourceURL]; ok {
		e.ID = existing.ID
	} else {
		s.nextID++
		e.ID = s.nextID
	}
	cp := *e
	s.entries[e.SourceURL] = &cp
	return e.ID, nil
}

func (s *memStore) RecordDownloadStatus(ctx context.Context, id int64, st catalog.DownloadState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = append(s.statuses[id], st)
	for _, e := range s.entries {
		if e.ID == id {
			e.Download = st
		}
	}
	return nil
}

func (s *memStore) last(id int64) catalog.DownloadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sts := s.statuses[id]
	if len(sts) == 0 {
		return catalog.DownloadState{}
	}
	return sts[len(sts)-1]
}

func (s *memStore) get(url string) catalog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.entries[url]
}
