// Package catalog talks to the product catalog: category lookups for
// suggestions and the paged product feed used by reindex.
package catalog

import (
	"context"
	"log/slog"
	"regexp"
	"slices"

	"github.com/utafrali/shopsearch/internal/analysis"
)

// Subcategory is an immediate child of a Category.
type Subcategory struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ProductCount int    `json:"productCount"`
}

// Category is a top-level category with its immediate children.
type Category struct {
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	ProductCount  int           `json:"productCount"`
	Subcategories []Subcategory `json:"subcategories"`
}

// CategoryLookup finds categories whose name, or the name of one of their
// subcategories, matches any of terms as a whole word.
type CategoryLookup interface {
	FindCategories(ctx context.Context, terms []string, limit int) ([]Category, error)
}

// Fallback queries Primary and answers from Secondary when Primary fails.
type Fallback struct {
	Primary   CategoryLookup
	Secondary CategoryLookup
	Logger    *slog.Logger
}

func (f Fallback) FindCategories(ctx context.Context, terms []string, limit int) ([]Category, error) {
	cats, err := f.Primary.FindCategories(ctx, terms, limit)
	if err == nil {
		return cats, nil
	}
	f.Logger.WarnContext(ctx, "category lookup failed, using index categories",
		slog.String("error", err.Error()),
	)
	return f.Secondary.FindCategories(ctx, terms, limit)
}

// expand returns every token with its category and product synonyms, so
// singular queries reach plural category names.
func expand(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		for _, table := range []analysis.Table{analysis.CategoryTable, analysis.ProductTable} {
			for _, s := range analysis.Synonyms(t, table) {
				if !slices.Contains(out, s) {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// Matches reports whether name contains any of terms, or one of their
// synonyms, as a whole word.
func Matches(name string, terms []string) bool {
	for _, t := range expand(terms) {
		re := regexp.MustCompile(analysis.WordBoundaryPattern(t))
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
