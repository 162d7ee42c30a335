package relevance

import (
	"cmp"
	"slices"

	"github.com/utafrali/shopsearch/internal/domain"
)

// Rank orders products by descending score. Ties fall back to rating, then
// newest first, then id, so the order is total.
func Rank(products []domain.SearchableProduct, tokens []string) {
	s := NewScorer(tokens)
	scores := make(map[string]float64, len(products))
	for i := range products {
		scores[products[i].ID] = s.Score(&products[i])
	}
	slices.SortStableFunc(products, func(a, b domain.SearchableProduct) int {
		if c := cmp.Compare(scores[b.ID], scores[a.ID]); c != 0 {
			return c
		}
		return tieBreak(a, b)
	})
}

// Sort orders products by an explicit sort mode. Relevance and unknown
// modes leave the slice in id order.
func Sort(products []domain.SearchableProduct, sortBy string) {
	var primary func(a, b domain.SearchableProduct) int
	switch sortBy {
	case domain.SortPriceAsc:
		primary = func(a, b domain.SearchableProduct) int { return cmp.Compare(a.Price, b.Price) }
	case domain.SortPriceDesc:
		primary = func(a, b domain.SearchableProduct) int { return cmp.Compare(b.Price, a.Price) }
	case domain.SortRating:
		primary = func(a, b domain.SearchableProduct) int {
			if c := cmp.Compare(b.Rating.Average, a.Rating.Average); c != 0 {
				return c
			}
			return cmp.Compare(b.Rating.Count, a.Rating.Count)
		}
	case domain.SortPopularity:
		primary = func(a, b domain.SearchableProduct) int {
			if c := cmp.Compare(b.SalesCount, a.SalesCount); c != 0 {
				return c
			}
			return cmp.Compare(b.ViewCount, a.ViewCount)
		}
	case domain.SortNewest:
		primary = func(a, b domain.SearchableProduct) int { return b.CreatedAt.Compare(a.CreatedAt) }
	default:
		primary = func(domain.SearchableProduct, domain.SearchableProduct) int { return 0 }
	}
	slices.SortStableFunc(products, func(a, b domain.SearchableProduct) int {
		if c := primary(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func tieBreak(a, b domain.SearchableProduct) int {
	if c := cmp.Compare(b.Rating.Average, a.Rating.Average); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
