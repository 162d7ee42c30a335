// Package engine defines the product query collaborator that search runs
// against.
package engine

import (
	"context"
	"sort"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/filter"
)

// Facet limits.
const (
	MaxBrandFacets    = 10
	MaxCategoryFacets = 8
)

// FindOptions control ordering and paging of Find. SortBy relevance (or
// empty) leaves candidates unordered for the caller to score.
type FindOptions struct {
	SortBy string
	Offset int
	Limit  int
}

// FindResult is one page of matches plus the total match count.
type FindResult struct {
	Products []domain.SearchableProduct
	Total    int
}

// ProductIndex stores searchable products and evaluates predicates over
// them. Implementations may use Elasticsearch, in-memory storage, or other
// backends.
type ProductIndex interface {
	// Index adds or updates a single product.
	Index(ctx context.Context, product *domain.SearchableProduct) error

	// BulkIndex adds or updates multiple products.
	BulkIndex(ctx context.Context, products []domain.SearchableProduct) error

	// Delete removes a product. A missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Get returns one product or an error wrapping apperrors.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.SearchableProduct, error)

	// Find returns the products matching pred.
	Find(ctx context.Context, pred filter.Predicate, opts FindOptions) (*FindResult, error)

	// Facets summarises every product matching pred.
	Facets(ctx context.Context, pred filter.Predicate) (*domain.Facets, error)
}

// Pinger is implemented by indexes backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FacetsOf computes facets over an in-memory product set. Brands and
// categories are ordered by count then name; rating buckets count products
// with an average of at least 1..5.
func FacetsOf(products []domain.SearchableProduct) *domain.Facets {
	f := &domain.Facets{Brands: []string{}, Categories: []domain.FacetCount{}, Ratings: []domain.FacetCount{}}
	if len(products) == 0 {
		return f
	}

	brands := map[string]int{}
	categories := map[string]int{}
	var buckets [5]int
	f.PriceRange = domain.PriceRange{Min: products[0].Price, Max: products[0].Price}

	for i := range products {
		p := &products[i]
		if p.Brand != "" {
			brands[p.Brand]++
		}
		if p.Category.Main != "" {
			categories[p.Category.Main]++
		}
		f.PriceRange.Min = min(f.PriceRange.Min, p.Price)
		f.PriceRange.Max = max(f.PriceRange.Max, p.Price)
		for b := 1; b <= 5; b++ {
			if p.Rating.Average >= float64(b) {
				buckets[b-1]++
			}
		}
	}

	for _, c := range topCounts(brands, MaxBrandFacets) {
		f.Brands = append(f.Brands, c.Name)
	}
	f.Categories = topCounts(categories, MaxCategoryFacets)
	f.Ratings = RatingBuckets(buckets)
	return f
}

// RatingBuckets converts per-threshold counts into facet entries named
// "1".."5", skipping empty buckets.
func RatingBuckets(counts [5]int) []domain.FacetCount {
	out := []domain.FacetCount{}
	for i, c := range counts {
		if c > 0 {
			out = append(out, domain.FacetCount{Name: string(rune('1' + i)), Count: c})
		}
	}
	return out
}

func topCounts(m map[string]int, limit int) []domain.FacetCount {
	out := make([]domain.FacetCount, 0, len(m))
	for name, n := range m {
		out = append(out, domain.FacetCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
