package catalog

import "strings"

// Filter narrows List and Pending. Empty fields match everything.
type Filter struct {
	Category string
	Search   string // matches title, description or genre
	Status   Status
	Limit    int
}

// Apply returns the subset of entries matching all non-empty filter fields.
// The store pushes the same predicates into SQL; Apply serves imports.
func (f Filter) Apply(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
			continue
		}
		if f.Status != "" && e.Download.Status != f.Status {
			continue
		}
		if f.Search != "" && !matchesSearch(e, f.Search) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// BySourceURL returns the first entry with the given source URL, or nil.
func BySourceURL(entries []Entry, url string) *Entry {
	for i := range entries {
		if entries[i].SourceURL == url {
			return &entries[i]
		}
	}
	return nil
}

func matchesSearch(e Entry, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(e.Title), q) ||
		strings.Contains(strings.ToLower(e.Description), q) ||
		strings.Contains(strings.ToLower(e.Genre), q)
}
