package ui

import (
	"sort"
	"strings"
)

// MaxSuggestions bounds the result of Suggest
const MaxSuggestions = 3

// Suggest returns up to MaxSuggestions candidates close to target, nearest
// first. A candidate qualifies when its edit distance is at most a third of
// its length, or when target is a prefix of it.
func Suggest(target string, candidates []string) []string {
	type scored struct {
		value string
		dist  int
	}
	t := strings.ToLower(target)

	var found []scored
	for _, c := range candidates {
		lc := strings.ToLower(c)
		d := Levenshtein(t, lc)
		if d <= max(1, len([]rune(lc))/3) || (t != "" && strings.HasPrefix(lc, t)) {
			found = append(found, scored{c, d})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })

	out := make([]string, 0, MaxSuggestions)
	for i := 0; i < len(found) && i < MaxSuggestions; i++ {
		out = append(out, found[i].value)
	}
	return out
}

// Levenshtein is the number of single-rune edits turning a into b
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
