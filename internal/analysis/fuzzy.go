package analysis

import (
	"strings"
)

// SimilarityThreshold is the minimum similarity for a spelling correction.
const SimilarityThreshold = 0.6

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
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

// Similarity scores two words in [0,1]: 1 for equal, 0.85 when one contains
// the other, otherwise one minus the edit distance over the longer length.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.85
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// Correct returns the vocabulary word most similar to token when it clears
// SimilarityThreshold. Ties keep the earlier vocabulary entry.
func Correct(token string, vocabulary []string) (string, bool) {
	best, bestScore := "", 0.0
	for _, w := range vocabulary {
		if s := Similarity(token, w); s > bestScore {
			best, bestScore = w, s
		}
	}
	if bestScore < SimilarityThreshold {
		return "", false
	}
	return best, true
}

// DidYouMean corrects each token against vocabulary and returns the
// corrected phrase. It returns "" when no token changes.
func DidYouMean(tokens []string, vocabulary []string) string {
	if len(tokens) == 0 {
		return ""
	}
	out := make([]string, len(tokens))
	changed := false
	for i, t := range tokens {
		out[i] = t
		if c, ok := Correct(t, vocabulary); ok && c != t {
			out[i] = c
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(out, " ")
}
