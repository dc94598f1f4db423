package retroachievements

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the minimum Jaro-Winkler similarity for two titles
// to be considered the same game.
const DefaultThreshold = 0.92

// Match pairs a local title with a RetroAchievements game.
type Match struct {
	Local string
	Game  Game
	Score float64
}

// Comparison is the result of matching local titles against a game list.
type Comparison struct {
	Matched        []Match
	MissingLocally []Game
	UnmatchedLocal []string
}

var (
	tagPattern   = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	tildePattern = regexp.MustCompile(`~[^~]*~`)
	nonWord      = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// Normalize reduces a title to a comparable form: lower case, region and
// dump tags removed, "&" spelled out, a trailing ", The" moved to the front
// and punctuation collapsed to single spaces.
func Normalize(title string) string {
	t := tagPattern.ReplaceAllString(title, " ")
	t = tildePattern.ReplaceAllString(t, " ")
	t = strings.ReplaceAll(t, "&", " and ")
	t = strings.TrimSpace(t)
	if head, ok := strings.CutSuffix(t, ", The"); ok {
		t = "The " + head
	}
	t = strings.ToLower(t)
	t = nonWord.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// isRetail reports whether an RA title is a retail release. Hacks, homebrew,
// prototypes, and subsets carry a ~Tag~ or [Subset] marker.
func isRetail(title string) bool {
	return !strings.HasPrefix(strings.TrimSpace(title), "~") && !strings.Contains(title, "[Subset")
}

// Compare matches local titles to games. Exact normalized matches are taken
// first; remaining titles pair with their most similar unmatched game when
// the similarity reaches threshold. Each game matches at most one title.
// Non-retail games are ignored.
func Compare(local []string, games []Game, threshold float64) Comparison {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	type candidate struct {
		game Game
		norm string
	}
	var cands []candidate
	for _, g := range games {
		if isRetail(g.Title) {
			cands = append(cands, candidate{game: g, norm: Normalize(g.Title)})
		}
	}

	var out Comparison
	usedGame := make([]bool, len(cands))
	var pending []string

	for _, title := range local {
		n := Normalize(title)
		matched := false
		for i, c := range cands {
			if !usedGame[i] && c.norm == n {
				usedGame[i] = true
				out.Matched = append(out.Matched, Match{Local: title, Game: c.game, Score: 1})
				matched = true
				break
			}
		}
		if !matched {
			pending = append(pending, title)
		}
	}

	for _, title := range pending {
		n := Normalize(title)
		best, bestScore := -1, 0.0
		for i, c := range cands {
			if usedGame[i] {
				continue
			}
			if s := matchr.JaroWinkler(n, c.norm, false); s > bestScore {
				best, bestScore = i, s
			}
		}
		if best >= 0 && bestScore >= threshold {
			usedGame[best] = true
			out.Matched = append(out.Matched, Match{Local: title, Game: cands[best].game, Score: bestScore})
			continue
		}
		out.UnmatchedLocal = append(out.UnmatchedLocal, title)
	}

	for i, c := range cands {
		if !usedGame[i] {
			out.MissingLocally = append(out.MissingLocally, c.game)
		}
	}

	sort.Slice(out.Matched, func(i, j int) bool { return out.Matched[i].Local < out.Matched[j].Local })
	sort.Slice(out.MissingLocally, func(i, j int) bool { return out.MissingLocally[i].Title < out.MissingLocally[j].Title })
	sort.Strings(out.UnmatchedLocal)
	return out
}
