// Package analytics keeps per-keyword search counters and derives the
// popularity and trending scores that drive suggestions.
package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/utafrali/shopsearch/internal/domain"
)

const (
	// TrendingWindow is how far back a search still counts towards trending.
	TrendingWindow = 7 * 24 * time.Hour
	// TrendingThreshold is the score a keyword must exceed to be trending.
	TrendingThreshold = 10.0
	// StaleAfter is the silence after which Cleanup resets weekly counters.
	StaleAfter = 30 * 24 * time.Hour
)

const day = 24 * time.Hour

// NormalizeKeyword trims and lower-cases a keyword.
func NormalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// PopularityScore is ((2*searches + 5*clicks) / ageDays) * (1 + clickRate),
// where ageDays is at least one.
func PopularityScore(k *domain.KeywordAnalytics, now time.Time) float64 {
	ageDays := max(1, now.Sub(k.CreatedAt).Hours()/day.Hours())
	var clickRate float64
	if k.SearchCount > 0 {
		clickRate = float64(k.ClickCount) / float64(k.SearchCount)
	}
	return (float64(k.SearchCount*2+k.ClickCount*5) / ageDays) * (1 + clickRate)
}

// TrendingScore decays weekly searches linearly over TrendingWindow. Past
// the window the score is zero.
func TrendingScore(k *domain.KeywordAnalytics, now time.Time) (float64, bool) {
	elapsed := now.Sub(k.LastSearched)
	if elapsed > TrendingWindow {
		return 0, false
	}
	recency := 1 - float64(max(elapsed, 0))/float64(TrendingWindow)
	score := float64(k.WeeklySearches) * recency
	return score, score > TrendingThreshold
}

// ApplySearch recomputes every derived field after a search.
func ApplySearch(k *domain.KeywordAnalytics, now time.Time) {
	k.PopularityScore = PopularityScore(k, now)
	k.TrendingScore, k.Trending = TrendingScore(k, now)
}

// ApplyClick recomputes popularity only. Trending follows search volume.
func ApplyClick(k *domain.KeywordAnalytics, now time.Time) {
	k.PopularityScore = PopularityScore(k, now)
}

// IsStale reports whether Cleanup should reset k.
func IsStale(k *domain.KeywordAnalytics, now time.Time) bool {
	return now.Sub(k.LastSearched) > StaleAfter
}

// Reset clears the weekly window of k and reports whether anything changed.
func Reset(k *domain.KeywordAnalytics) bool {
	changed := k.WeeklySearches != 0 || k.Trending || k.TrendingScore != 0
	k.WeeklySearches = 0
	k.Trending = false
	k.TrendingScore = 0
	return changed
}

// SortTrending orders by weekly searches, then trending score, then keyword.
func SortTrending(ks []domain.KeywordAnalytics) {
	slices.SortFunc(ks, func(a, b domain.KeywordAnalytics) int {
		if c := cmp.Compare(b.WeeklySearches, a.WeeklySearches); c != 0 {
			return c
		}
		if c := cmp.Compare(b.TrendingScore, a.TrendingScore); c != 0 {
			return c
		}
		return cmp.Compare(a.Keyword, b.Keyword)
	})
}

// SortPopular orders by popularity score, then search count, then keyword.
func SortPopular(ks []domain.KeywordAnalytics) {
	slices.SortFunc(ks, func(a, b domain.KeywordAnalytics) int {
		if c := cmp.Compare(b.PopularityScore, a.PopularityScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.SearchCount, a.SearchCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Keyword, b.Keyword)
	})
}

// Union appends the non-empty ids of add missing from ids.
func Union(ids []string, add ...string) []string {
	for _, id := range add {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Truncate cuts ks to limit when limit is positive.
func Truncate(ks []domain.KeywordAnalytics, limit int) []domain.KeywordAnalytics {
	if limit > 0 && len(ks) > limit {
		return ks[:limit]
	}
	return ks
}
