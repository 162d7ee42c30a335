package elasticsearch

import (
	"fmt"
	"strings"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/filter"
)

// notWord is the complement of the \w class used by the in-memory matcher,
// over lower-cased input.
const notWord = `[^a-z0-9_]`

// translate converts a predicate into query DSL.
func translate(p filter.Predicate) (map[string]any, error) {
	switch n := p.(type) {
	case nil:
		return map[string]any{"match_all": map[string]any{}}, nil

	case filter.And:
		if len(n) == 0 {
			return map[string]any{"match_all": map[string]any{}}, nil
		}
		clauses, err := translateAll(n)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"filter": clauses}}, nil

	case filter.Or:
		if len(n) == 0 {
			return map[string]any{"match_none": map[string]any{}}, nil
		}
		clauses, err := translateAll(n)
		if err != nil {
			return nil, err
		}
		return map[string]any{"bool": map[string]any{"should": clauses, "minimum_should_match": 1}}, nil

	case filter.Match:
		should := make([]any, 0, len(n.Terms))
		for _, t := range n.Terms {
			should = append(should, matchClause(string(n.Field), t, n.Mode))
		}
		if len(should) == 1 {
			return should[0].(map[string]any), nil
		}
		return map[string]any{"bool": map[string]any{"should": should, "minimum_should_match": 1}}, nil

	case filter.Equals:
		return map[string]any{"term": map[string]any{string(n.Field): n.Value}}, nil

	case filter.Range:
		bounds := map[string]any{}
		if n.Gt != nil {
			bounds["gt"] = *n.Gt
		}
		if n.Gte != nil {
			bounds["gte"] = *n.Gte
		}
		if n.Lte != nil {
			bounds["lte"] = *n.Lte
		}
		return map[string]any{"range": map[string]any{string(n.Field): bounds}}, nil
	}
	return nil, fmt.Errorf("elasticsearch: unsupported predicate %T", p)
}

func translateAll(ps []filter.Predicate) ([]any, error) {
	out := make([]any, 0, len(ps))
	for _, p := range ps {
		c, err := translate(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func matchClause(field, term string, mode filter.MatchMode) map[string]any {
	term = strings.ToLower(term)
	if mode == filter.Substring {
		return map[string]any{"wildcard": map[string]any{field: map[string]any{
			"value":            "*" + escapeWildcard(term) + "*",
			"case_insensitive": true,
		}}}
	}
	return map[string]any{"regexp": map[string]any{field: map[string]any{
		"value":            WordBoundaryRegexp(term),
		"case_insensitive": true,
		"flags":            "NONE",
	}}}
}

// WordBoundaryRegexp builds a Lucene regexp matching term as a whole word
// inside a lower-cased keyword value. Lucene patterns are anchored to the
// whole value, so the optional prefix and suffix stand in for \b.
func WordBoundaryRegexp(term string) string {
	return "(.*" + notWord + ")?" + escapeRegexp(term) + "(" + notWord + ".*)?"
}

func escapeRegexp(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`.?+*|{}[]()"\#@&<>~^$`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escapeWildcard(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '*' || r == '?' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// buildSort returns the sort clause for an explicit mode. Every clause ends
// with id so paging is stable.
func buildSort(sortBy string) []any {
	id := map[string]any{"id": "asc"}
	switch sortBy {
	case domain.SortPriceAsc:
		return []any{map[string]any{"price": "asc"}, id}
	case domain.SortPriceDesc:
		return []any{map[string]any{"price": "desc"}, id}
	case domain.SortRating:
		return []any{map[string]any{"rating.average": "desc"}, map[string]any{"rating.count": "desc"}, id}
	case domain.SortPopularity:
		return []any{map[string]any{"salesCount": "desc"}, map[string]any{"viewCount": "desc"}, id}
	case domain.SortNewest:
		return []any{map[string]any{"createdAt": "desc"}, id}
	default:
		return []any{id}
	}
}

// facetAggs are the aggregations behind Facets.
func facetAggs() map[string]any {
	ranges := make([]any, 0, 5)
	for b := 1; b <= 5; b++ {
		ranges = append(ranges, map[string]any{"key": fmt.Sprint(b), "from": b})
	}
	return map[string]any{
		"brands":     map[string]any{"terms": map[string]any{"field": "brand.raw", "size": engine.MaxBrandFacets}},
		"categories": map[string]any{"terms": map[string]any{"field": "category.main.raw", "size": engine.MaxCategoryFacets}},
		"min_price":  map[string]any{"min": map[string]any{"field": "price"}},
		"max_price":  map[string]any{"max": map[string]any{"field": "price"}},
		"ratings":    map[string]any{"range": map[string]any{"field": "rating.average", "ranges": ranges}},
	}
}
