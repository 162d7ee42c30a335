package domain

// Sort modes.
const (
	SortRelevance  = "relevance"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortRating     = "rating"
	SortPopularity = "popularity"
	SortNewest     = "newest"
)

// ValidSortOptions lists the canonical sort modes.
func ValidSortOptions() []string {
	return []string{SortRelevance, SortPriceAsc, SortPriceDesc, SortRating, SortPopularity, SortNewest}
}

// NormalizeSort maps aliases onto canonical sort modes. An empty value means
// relevance; the second result is false for unknown values.
func NormalizeSort(s string) (string, bool) {
	switch s {
	case "":
		return SortRelevance, true
	case "price-low", "price_low":
		return SortPriceAsc, true
	case "price-high", "price_high":
		return SortPriceDesc, true
	}
	for _, v := range ValidSortOptions() {
		if v == s {
			return s, true
		}
	}
	return "", false
}

// Search modes.
const (
	ModeSmart  = "smart"
	ModeLegacy = "legacy"
)

// SearchFilters are explicit constraints ANDed onto the text predicate.
// Nil pointers and empty strings mean "not set".
type SearchFilters struct {
	Brand        string   `json:"brand,omitempty"`
	Category     string   `json:"category,omitempty"`
	MainCategory string   `json:"mainCategory,omitempty"`
	SubCategory  string   `json:"subCategory,omitempty"`
	MinPrice     *float64 `json:"minPrice,omitempty"`
	MaxPrice     *float64 `json:"maxPrice,omitempty"`
	MinRating    *float64 `json:"minRating,omitempty"`
	InStock      bool     `json:"inStock,omitempty"`
}

// IsEmpty reports whether no filter is set.
func (f SearchFilters) IsEmpty() bool {
	return f.Brand == "" && f.Category == "" && f.MainCategory == "" && f.SubCategory == "" &&
		f.MinPrice == nil && f.MaxPrice == nil && f.MinRating == nil && !f.InStock
}

// SearchQuery is a validated search request.
type SearchQuery struct {
	Query   string        `json:"query"`
	Filters SearchFilters `json:"filters"`
	SortBy  string        `json:"sortBy"`
	Mode    string        `json:"mode"`
	Page    int           `json:"page"`
	PerPage int           `json:"perPage"`
	UserID  string        `json:"-"`
}

// SearchMeta explains how the query was interpreted.
type SearchMeta struct {
	SearchTerms             []string      `json:"searchTerms"`
	DetectedPrimaryCategory string        `json:"detectedPrimaryCategory,omitempty"`
	MatchedCategoryKeyword  string        `json:"matchedCategoryKeyword,omitempty"`
	DetectedProductType     string        `json:"detectedProductType,omitempty"`
	HasFilters              bool          `json:"hasFilters"`
	Filters                 SearchFilters `json:"appliedFilters"`
	SortBy                  string        `json:"sortBy"`
	Mode                    string        `json:"mode"`
	IsFallbackSearch        bool          `json:"isFallbackSearch"`
	DidYouMean              string        `json:"didYouMean,omitempty"`
}

// FacetCount is a value with the number of matching products.
type FacetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PriceRange is the min and max price over the matching products.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Facets summarise the matching products for filter UIs.
type Facets struct {
	Brands     []string     `json:"brands"`
	Categories []FacetCount `json:"categories"`
	PriceRange PriceRange   `json:"priceRange"`
	Ratings    []FacetCount `json:"ratings"`
}

// SearchResult is the response of a product search.
type SearchResult struct {
	Success     bool                `json:"success"`
	Query       string              `json:"query"`
	Products    []SearchableProduct `json:"products"`
	Total       int                 `json:"total"`
	Page        int                 `json:"page"`
	PerPage     int                 `json:"perPage"`
	Pages       int                 `json:"pages"`
	Filters     *Facets             `json:"filters,omitempty"`
	Suggestions []string            `json:"suggestions,omitempty"`
	Meta        SearchMeta          `json:"searchMeta"`
	TookMs      int64               `json:"tookMs"`
}

// EmptyResult is the successful response for a query without searchable
// terms.
func EmptyResult(q SearchQuery) *SearchResult {
	return &SearchResult{
		Success:  true,
		Query:    q.Query,
		Products: []SearchableProduct{},
		Page:     q.Page,
		PerPage:  q.PerPage,
		Meta: SearchMeta{
			SearchTerms: []string{},
			SortBy:      q.SortBy,
			Mode:        q.Mode,
			Filters:     q.Filters,
			HasFilters:  !q.Filters.IsEmpty(),
		},
	}
}
