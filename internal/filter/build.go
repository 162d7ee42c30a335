package filter

import (
	"strings"

	"github.com/utafrali/shopsearch/internal/analysis"
	"github.com/utafrali/shopsearch/internal/domain"
)

// Facets are the query interpretations detected by the analysis package.
type Facets struct {
	Category    *analysis.CategoryMatch
	ProductType string
}

// Detect runs category and product-type detection over tokens.
func Detect(tokens []string) Facets {
	var f Facets
	if m, ok := analysis.DetectPrimaryCategory(tokens); ok {
		f.Category = &m
	}
	if pt, ok := analysis.DetectProductType(tokens); ok {
		f.ProductType = pt
	}
	return f
}

// Active is the visibility predicate every search starts from.
var Active = Equals{Field: FieldStatus, Value: domain.ProductStatusActive}

// Build returns the smart-mode predicate for tokens:
//
//   - a category and a product type detected: the category group AND the
//     type group;
//   - the query consists only of keywords of the detected category: the
//     category group alone;
//   - a product type detected without a category: the open predicate over
//     the type token alone, other tokens only rank;
//   - otherwise the open predicate, every token matching some field.
//
// Explicit filters are ANDed on top. With no tokens the result selects every
// active product that passes the explicit filters.
func Build(tokens []string, facets Facets, explicit domain.SearchFilters) Predicate {
	out := And{Active}

	switch {
	case len(tokens) == 0:
	case facets.Category != nil && facets.ProductType != "":
		out = append(out, categoryGroup(facets.Category.Category), typeGroup(facets.ProductType))
	case facets.Category != nil && onlyCategoryKeywords(tokens, facets.Category.Category):
		out = append(out, categoryGroup(facets.Category.Category))
	case facets.Category == nil && facets.ProductType != "":
		out = append(out, open([]string{facets.ProductType})...)
	default:
		out = append(out, open(tokens)...)
	}

	return append(out, Explicit(explicit)...)
}

// BuildLegacy returns the permissive predicate: any token on any field.
func BuildLegacy(tokens []string, explicit domain.SearchFilters) Predicate {
	out := And{Active}
	if len(tokens) > 0 {
		terms := append(analysis.ExpandTerms(tokens, analysis.ProductTable),
			analysis.ExpandTerms(tokens, analysis.CategoryTable)...)
		out = append(out, anyField(allTextFields(), dedupe(terms), WordBoundary))
	}
	return append(out, Explicit(explicit)...)
}

// BuildFallback returns the relaxed predicate used when the primary search
// found nothing: any token as a substring of any text field. Explicit
// filters still apply.
func BuildFallback(tokens []string, explicit domain.SearchFilters) Predicate {
	out := And{Active}
	if len(tokens) > 0 {
		out = append(out, anyField(allTextFields(), tokens, Substring))
	}
	return append(out, Explicit(explicit)...)
}

// CategorySubstring selects active products where any category level
// contains any token. It feeds related-category suggestions.
func CategorySubstring(tokens []string) Predicate {
	return And{Active, anyField(CategoryFields, tokens, Substring)}
}

// Suggestion selects active products where any token matches one of fields
// on a word boundary. A detected primary category restricts category.main.
func Suggestion(tokens []string, category *analysis.CategoryMatch, fields ...Field) Predicate {
	out := And{Active, anyField(fields, analysis.ExpandTerms(tokens, analysis.ProductTable), WordBoundary)}
	if category != nil {
		out = append(out, categoryGroup(category.Category))
	}
	return out
}

// Categories selects active products whose main or sub category matches
// any of terms on a word boundary.
func Categories(terms []string) Predicate {
	return And{Active, anyField([]Field{FieldCategoryMain, FieldCategorySub}, terms, WordBoundary)}
}

// Explicit translates request filters into predicates. "all" and blank
// values are ignored.
func Explicit(f domain.SearchFilters) []Predicate {
	var out []Predicate
	if v := value(f.Brand); v != "" {
		out = append(out, Match{Field: FieldBrand, Terms: []string{v}, Mode: WordBoundary})
	}
	if v := value(f.MainCategory); v != "" {
		out = append(out, Match{Field: FieldCategoryMain, Terms: []string{v}, Mode: WordBoundary})
	}
	if v := value(f.SubCategory); v != "" {
		out = append(out, Match{Field: FieldCategorySub, Terms: []string{v}, Mode: WordBoundary})
	}
	if v := value(f.Category); v != "" {
		out = append(out, anyField(CategoryFields, []string{v}, WordBoundary))
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		out = append(out, Range{Field: FieldPrice, Gte: f.MinPrice, Lte: f.MaxPrice})
	}
	if f.MinRating != nil {
		out = append(out, Range{Field: FieldRating, Gte: f.MinRating})
	}
	if f.InStock {
		out = append(out, Range{Field: FieldStock, Gt: float(0)})
	}
	return out
}

// categoryGroup matches category.main against every synonym of category.
func categoryGroup(category string) Predicate {
	return Match{Field: FieldCategoryMain, Terms: analysis.CategoryKeywords(category), Mode: WordBoundary}
}

// typeGroup matches the product type on any category level.
func typeGroup(productType string) Predicate {
	return anyField(CategoryFields, analysis.Synonyms(productType, analysis.ProductTable), WordBoundary)
}

// open requires every token to match at least one field. Product fields use
// the token and its canonical product form; category fields use the
// synonym families of both tables.
func open(tokens []string) []Predicate {
	out := make([]Predicate, 0, len(tokens))
	for _, tok := range tokens {
		productTerms := analysis.ExpandTerms([]string{tok}, analysis.ProductTable)
		categoryTerms := dedupe(append(
			analysis.Synonyms(tok, analysis.CategoryTable),
			analysis.Synonyms(tok, analysis.ProductTable)...,
		))
		group := anyField(ProductFields, productTerms, WordBoundary)
		group = append(group, anyField(CategoryFields, categoryTerms, WordBoundary)...)
		out = append(out, group)
	}
	return out
}

func onlyCategoryKeywords(tokens []string, category string) bool {
	for _, t := range tokens {
		if !analysis.IsCategoryKeyword(category, t) {
			return false
		}
	}
	return true
}

func allTextFields() []Field {
	return append(append([]Field{}, ProductFields...), CategoryFields...)
}

func value(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return ""
	}
	return s
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
