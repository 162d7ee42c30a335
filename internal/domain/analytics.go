package domain

import "time"

// KeywordAnalytics holds the counters and derived scores for one normalized
// search keyword.
type KeywordAnalytics struct {
	Keyword         string    `json:"keyword"`
	OriginalKeyword string    `json:"originalKeyword"`
	SearchCount     int64     `json:"searchCount"`
	ClickCount      int64     `json:"clickCount"`
	ResultCount     int       `json:"resultCount"`
	WeeklySearches  int64     `json:"weeklySearches"`
	LastSearched    time.Time `json:"lastSearched"`
	PopularityScore float64   `json:"popularityScore"`
	TrendingScore   float64   `json:"trendingScore"`
	Trending        bool      `json:"trending"`
	RelatedProducts []string  `json:"relatedProducts"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Suggestion kinds.
const (
	SuggestionTrending    = "trending"
	SuggestionProduct     = "product"
	SuggestionBrand       = "brand"
	SuggestionTag         = "tag"
	SuggestionCategory    = "category"
	SuggestionSubcategory = "subcategory"
)

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Text      string `json:"text"`
	Type      string `json:"type"`
	ProductID string `json:"productId,omitempty"`
	Category  string `json:"category,omitempty"`
	Parent    string `json:"parent,omitempty"`
}

// History entry kinds.
const (
	HistorySearch      = "search"
	HistoryProductView = "product_view"
)

// HistoryEntry is one item of a user's search history.
type HistoryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Query     string    `json:"query,omitempty"`
	ProductID string    `json:"productId,omitempty"`
	Filters   string    `json:"filters,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Popular keyword kinds.
const (
	PopularTrending = "trending"
	PopularPopular  = "popular"
	PopularAll      = "all"
)

// PopularKeyword is one entry of the popular searches list. Count is the
// weekly search count for trending entries and the total for popular ones.
type PopularKeyword struct {
	Keyword string `json:"keyword"`
	Type    string `json:"type"`
	Count   int64  `json:"count"`
}
