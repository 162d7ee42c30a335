package analysis

import (
	"regexp"
	"slices"
	"sort"
	"strings"
)

// Table selects a normalization map.
type Table int

const (
	ProductTable Table = iota
	CategoryTable
)

func (t Table) lookup() map[string]string {
	if t == CategoryTable {
		return categoryNormalization
	}
	return productNormalization
}

func (t Table) reverse() map[string][]string {
	if t == CategoryTable {
		return categoryVariants
	}
	return productVariants
}

// categoryVariants and productVariants index every table key by its
// canonical form, keys sorted.
var (
	categoryVariants = invert(categoryNormalization)
	productVariants  = invert(productNormalization)
)

func invert(m map[string]string) map[string][]string {
	out := make(map[string][]string)
	for k, v := range m {
		out[v] = append(out[v], k)
	}
	for _, ks := range out {
		sort.Strings(ks)
	}
	return out
}

// Normalize maps term to its canonical form in table, or returns the trimmed
// lower-case term unchanged.
func Normalize(term string, table Table) string {
	t := strings.ToLower(strings.TrimSpace(term))
	if canonical, ok := table.lookup()[t]; ok {
		return canonical
	}
	return t
}

// ExpandTerms returns each token followed by its canonical form when that
// differs, with duplicates removed and first-seen order kept.
func ExpandTerms(tokens []string, table Table) []string {
	seen := make(map[string]struct{}, len(tokens)*2)
	out := make([]string, 0, len(tokens)*2)
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, t := range tokens {
		add(t)
	}
	for _, t := range tokens {
		add(Normalize(t, table))
	}
	return out
}

// Synonyms returns term, its canonical form and every other word the table
// maps to the same canonical form, without duplicates. Category names are
// often plural ("Shirts") while queries are singular, so whole-word matching
// against category levels needs the whole family.
func Synonyms(term string, table Table) []string {
	t := strings.ToLower(strings.TrimSpace(term))
	canonical := Normalize(t, table)
	out := ExpandTerms([]string{t}, table)
	for _, v := range table.reverse()[canonical] {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// WordBoundaryPattern returns a case-insensitive pattern matching term as a
// whole word. term is escaped, so user input never reaches the regexp
// parser as syntax.
func WordBoundaryPattern(term string) string {
	return `(?i)\b` + regexp.QuoteMeta(term) + `\b`
}

// SubstringPattern returns a case-insensitive pattern matching term anywhere.
func SubstringPattern(term string) string {
	return `(?i)` + regexp.QuoteMeta(term)
}

// BuildWordBoundaryPatterns compiles one whole-word matcher per expanded
// term.
func BuildWordBoundaryPatterns(tokens []string, table Table) []*regexp.Regexp {
	terms := ExpandTerms(tokens, table)
	out := make([]*regexp.Regexp, 0, len(terms))
	for _, t := range terms {
		out = append(out, regexp.MustCompile(WordBoundaryPattern(t)))
	}
	return out
}

func setOf(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
