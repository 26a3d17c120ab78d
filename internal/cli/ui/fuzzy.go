package ui

import (
	"slices"
	"strings"
)

// MaxDistance is the largest edit distance still offered as a suggestion
const MaxDistance = 3

// MaxSuggestions caps the suggestions returned by FindSimilar
const MaxSuggestions = 3

// FindSimilar returns the candidates closest to target, case-insensitively,
// nearest first. Ties keep candidate order. A candidate whose local name
// (after the last '.') is close enough also matches, so "Bok" suggests
// "library.Book".
func FindSimilar(target string, candidates []string) []string {
	type match struct {
		value    string
		distance int
	}

	target = strings.ToLower(target)
	var matches []match
	for _, candidate := range candidates {
		lower := strings.ToLower(candidate)
		dist := LevenshteinDistance(target, lower)
		if i := strings.LastIndexByte(lower, '.'); i >= 0 {
			dist = min(dist, LevenshteinDistance(target, lower[i+1:]))
		}
		if dist <= MaxDistance {
			matches = append(matches, match{candidate, dist})
		}
	}

	slices.SortStableFunc(matches, func(a, b match) int { return a.distance - b.distance })

	out := make([]string, 0, min(len(matches), MaxSuggestions))
	for _, m := range matches[:min(len(matches), MaxSuggestions)] {
		out = append(out, m.value)
	}
	return out
}

// LevenshteinDistance is the number of single-rune insertions, deletions
// or substitutions turning a into b
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
