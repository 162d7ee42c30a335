package catalog

import (
	"context"
	"fmt"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/filter"
	"github.com/utafrali/shopsearch/pkg/slug"
)

// indexScanLimit caps how many products IndexLookup inspects.
const indexScanLimit = 500

// IndexLookup derives categories from the main and sub levels of indexed
// products. It stands in for the product service when that is unavailable.
type IndexLookup struct {
	index engine.ProductIndex
}

var _ CategoryLookup = (*IndexLookup)(nil)

// NewIndexLookup creates a lookup over index.
func NewIndexLookup(index engine.ProductIndex) *IndexLookup {
	return &IndexLookup{index: index}
}

func (l *IndexLookup) FindCategories(ctx context.Context, terms []string, limit int) ([]Category, error) {
	res, err := l.index.Find(ctx, filter.Categories(expand(terms)), engine.FindOptions{
		SortBy: domain.SortPopularity,
		Limit:  indexScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("find index categories: %w", err)
	}

	var order []string
	byName := make(map[string]*Category)
	for _, p := range res.Products {
		main, sub := p.Category.Main, p.Category.Sub
		if main == "" {
			continue
		}
		c, ok := byName[main]
		if !ok {
			c = &Category{Name: main, Slug: slug.Generate(main), Subcategories: []Subcategory{}}
			byName[main] = c
			order = append(order, main)
		}
		c.ProductCount++
		if sub == "" {
			continue
		}
		found := false
		for i := range c.Subcategories {
			if c.Subcategories[i].Name == sub {
				c.Subcategories[i].ProductCount++
				found = true
				break
			}
		}
		if !found {
			c.Subcategories = append(c.Subcategories, Subcategory{Name: sub, Slug: slug.Generate(sub), ProductCount: 1})
		}
	}

	out := make([]Category, 0, len(order))
	for _, name := range order {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, *byName[name])
	}
	return out, nil
}
