package registry

import (
	"sort"

	"github.com/agext/levenshtein"
)

// SuggestThreshold is the minimum similarity (0..1) for a suggestion.
const SuggestThreshold = 0.6

// Suggest returns the candidate most similar to name, or "" when none
// reaches SuggestThreshold. Ties go to the lexicographically smaller
// candidate.
func Suggest(name string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	best, bestScore := "", 0.0
	for _, c := range sorted {
		if c == name {
			return c
		}
		s := levenshtein.Similarity(name, c, nil)
		if s >= SuggestThreshold && s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}
