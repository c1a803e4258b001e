// Package suggest finds likely intended configuration keys for a mistyped one.
package suggest

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

const maxSuggestions = 3

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Keys returns up to three known keys close to unknown, best first.
// Subsequence matches ("zoom" for "uiZoomFactor") rank before keys that are
// only a few edits away ("stationld" for "stationId"). Matching ignores case.
func Keys(unknown string, known []string) []string {
	if unknown == "" || len(known) == 0 {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(k string) {
		if !seen[k] && k != unknown && len(out) < maxSuggestions {
			seen[k] = true
			out = append(out, k)
		}
	}

	lowered := make([]string, len(known))
	for i, k := range known {
		lowered[i] = strings.ToLower(k)
	}
	matches := fuzzy.Find(strings.ToLower(unknown), lowered)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	for _, m := range matches {
		add(known[m.Index])
	}

	type scored struct {
		key  string
		dist int
	}
	var near []scored
	target := strings.ToLower(unknown)
	maxDist := max(2, len(unknown)/3)
	for i, k := range lowered {
		if d := levenshtein(target, k); d <= maxDist {
			near = append(near, scored{known[i], d})
		}
	}
	sort.SliceStable(near, func(i, j int) bool { return near[i].dist < near[j].dist })
	for _, n := range near {
		add(n.key)
	}
	return out
}
