package scrape

import (
	"regexp"
	"strings"
)

// OptionSelector picks the variant to download from a detail page.
type OptionSelector interface {
	Select(opts []Option) (Option, bool)
}

// RegionPriority prefers options whose label names an earlier region in
// Priority and never picks labels containing an Exclude word.
type RegionPriority struct {
	Priority []string
	Exclude  []string
}

// Select returns the best option, or false when every option is excluded.
func (p RegionPriority) Select(opts []Option) (Option, bool) {
	var allowed []Option
	for _, o := range opts {
		if !p.excluded(o.Label) {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		return Option{}, false
	}
	for _, region := range p.Priority {
		for _, o := range allowed {
			if containsWord(o.Label, region) {
				return o, true
			}
		}
	}
	return allowed[0], true
}

func (p RegionPriority) excluded(label string) bool {
	for _, w := range p.Exclude {
		if containsWord(label, w) {
			return true
		}
	}
	return false
}

// FirstOption always picks the first listed option.
type FirstOption struct{}

func (FirstOption) Select(opts []Option) (Option, bool) {
	if len(opts) == 0 {
		return Option{}, false
	}
	return opts[0], true
}

var wordSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// containsWord reports whether word occurs in s as a whole word,
// case-insensitively. "USA" matches "Game (USA, Europe)" but not "Busan".
func containsWord(s, word string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false
	}
	for _, w := range wordSplit.Split(strings.ToLower(s), -1) {
		if w == word {
			return true
		}
	}
	return false
}

var knownRegions = []string{"USA", "Europe", "Japan", "World", "Korea", "China", "Germany", "France", "Spain", "Italy", "Brazil", "Australia"}

// regionOf returns the first known region named in a label.
func regionOf(label string) string {
	for _, r := range knownRegions {
		if containsWord(label, r) {
			return r
		}
	}
	return ""
}
