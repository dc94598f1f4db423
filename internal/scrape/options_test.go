package scrape

import "testing"

func TestRegionPrioritySelect(t *testing.T) {
	opts := []Option{
		{Label: "Game (Japan)", URL: "j"},
		{Label: "Game (Europe)", URL: "e"},
		{Label: "Game (USA) (Demo)", URL: "ud"},
		{Label: "Game (USA, Europe) (Beta)", URL: "ub"},
	}

	tests := []struct {
		name   string
		sel    RegionPriority
		opts   []Option
		want   string
		wantOK bool
	}{
		{
			name:   "excluded variants skipped",
			sel:    RegionPriority{Priority: []string{"USA", "Europe"}, Exclude: []string{"demo", "beta"}},
			opts:   opts,
			want:   "e",
			wantOK: true,
		},
		{
			name:   "no exclusion picks highest priority",
			sel:    RegionPriority{Priority: []string{"USA", "Europe"}},
			opts:   opts,
			want:   "ud",
			wantOK: true,
		},
		{
			name:   "no priority match falls back to first allowed",
			sel:    RegionPriority{Priority: []string{"Korea"}, Exclude: []string{"demo"}},
			opts:   opts,
			want:   "j",
			wantOK: true,
		},
		{
			name: "all excluded",
			sel:  RegionPriority{Exclude: []string{"game"}},
			opts: opts,
		},
		{
			name: "empty",
			sel:  RegionPriority{Priority: []string{"USA"}},
		},
		{
			name:   "whole words only",
			sel:    RegionPriority{Priority: []string{"USA"}, Exclude: []string{"proto"}},
			opts:   []Option{{Label: "Protocol Busan", URL: "a"}, {Label: "Game (USA)", URL: "b"}},
			want:   "b",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.sel.Select(tt.opts)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got.URL != tt.want {
				t.Errorf("URL = %q, want %q", got.URL, tt.want)
			}
		})
	}
}

func TestFirstOption(t *testing.T) {
	if _, ok := (FirstOption{}).Select(nil); ok {
		t.Error("expected no selection from empty list")
	}
	got, ok := (FirstOption{}).Select([]Option{{URL: "a"}, {URL: "b"}})
	if !ok || got.URL != "a" {
		t.Errorf("got %v %v", got, ok)
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		s, word string
		want    bool
	}{
		{"Game (USA, Europe)", "usa", true},
		{"Game (USA, Europe)", "Europe", true},
		{"Busan Racing", "usa", false},
		{"Prototype", "proto", false},
		{"Game (Proto)", "proto", true},
		{"anything", " ", false},
	}
	for _, tt := range tests {
		if got := containsWord(tt.s, tt.word); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.s, tt.word, got, tt.want)
		}
	}
}
