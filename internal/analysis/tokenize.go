package analysis

import (
	"slices"
	"strings"
)

// Tokenize lower-cases query, splits it on whitespace and drops stop words.
// A blank query yields an empty, non-nil slice.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IsStopWord reports whether w (already lower-case) is a stop word.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// CategoryMatch is a detected primary category and the query word that
// selected it.
type CategoryMatch struct {
	Category string
	Keyword  string
}

// DetectPrimaryCategory returns the first primary category, in table order,
// that has a keyword among tokens.
func DetectPrimaryCategory(tokens []string) (CategoryMatch, bool) {
	for _, c := range primaryCategories {
		for _, k := range c.keywords {
			if slices.Contains(tokens, k) {
				return CategoryMatch{Category: c.name, Keyword: k}, true
			}
		}
	}
	return CategoryMatch{}, false
}

// CategoryKeywords returns the synonyms of a primary category, or nil when
// the name is unknown.
func CategoryKeywords(category string) []string {
	return primaryCategoryByName[category]
}

// IsCategoryKeyword reports whether token selects the given category.
func IsCategoryKeyword(category, token string) bool {
	return slices.Contains(primaryCategoryByName[category], token)
}

// DetectProductType returns the first token, in query order, that names a
// product type.
func DetectProductType(tokens []string) (string, bool) {
	for _, t := range tokens {
		if _, ok := productTypes[t]; ok {
			return t, true
		}
	}
	return "", false
}
