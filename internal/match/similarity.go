package match

import (
	"math"
	"strings"
)

// Similarity returns 1 - levenshtein distance / longer length over the
// normalized inputs, in [0, 1].
func Similarity(a, b string) float64 {
	return similarity(Normalize(a), Normalize(b))
}

// Score ranks how well text answers query. Substring hits score highest,
// then token overlap, then edit-distance similarity.
func Score(query, text string) float64 {
	q := Normalize(query)
	t := Normalize(text)
	if q == "" || t == "" {
		return 0
	}
	if q == t {
		return 1
	}
	if strings.Contains(t, q) {
		return 0.9
	}
	overlap := tokenOverlap(Tokens(q), Tokens(t))
	sim := similarity(q, t)
	if overlap > 0 {
		return math.Max(0.5+0.35*overlap, sim)
	}
	return sim * 0.8
}

// Best returns the index of the candidate most similar to target, or -1 when
// nothing reaches threshold.
func Best(target string, candidates []string, threshold float64) (int, float64) {
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		s := Score(target, c)
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if bestScore < threshold {
		return -1, bestScore
	}
	return best, bestScore
}

func tokenOverlap(query, text []string) float64 {
	if len(query) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(text))
	for _, t := range text {
		set[t] = struct{}{}
	}
	hits := 0
	for _, q := range query {
		if _, ok := set[q]; ok {
			hits++
			continue
		}
		for t := range set {
			if strings.HasPrefix(t, q) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(query))
}

func similarity(a, b string) float64 {
	aRunes := []rune(a)
	bRunes := []rune(b)
	if len(aRunes) == 0 && len(bRunes) == 0 {
		return 1
	}
	if len(aRunes) == 0 || len(bRunes) == 0 {
		return 0
	}

	dist := levenshtein(aRunes, bRunes)
	maxLen := math.Max(float64(len(aRunes)), float64(len(bRunes)))
	score := 1 - float64(dist)/maxLen
	if score < 0 {
		return 0
	}
	return score
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for c := range prev {
		prev[c] = c
	}
	for r := 1; r <= len(a); r++ {
		curr[0] = r
		for c := 1; c <= len(b); c++ {
			cost := 0
			if a[r-1] != b[c-1] {
				cost = 1
			}
			curr[c] = min(prev[c]+1, curr[c-1]+1, prev[c-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
