// Package relevance scores candidate products against query tokens and
// orders result sets.
package relevance

import (
	"regexp"

	"github.com/utafrali/shopsearch/internal/analysis"
	"github.com/utafrali/shopsearch/internal/domain"
)

// Field weights.
const (
	WeightNameAny     = 50.0
	WeightNameAll     = 30.0
	WeightBrand       = 20.0
	WeightTag         = 25.0
	WeightColor       = 15.0
	WeightDescription = 8.0
	WeightInStock     = 5.0

	WeightRating = 5.0
	WeightSales  = 0.1
	WeightViews  = 0.02
)

// CategoryWeights are the bonuses for a match on each category level, main
// first.
var CategoryWeights = [domain.CategoryDepth]float64{15, 12, 10, 8, 6}

// WeightAllLevels is the bonus for a match on any flattened level name.
const WeightAllLevels = 5.0

// Scorer holds the compiled matchers for one token set. It is immutable and
// safe for concurrent use.
type Scorer struct {
	// product[i] matches token i or its canonical product form.
	product [][]*regexp.Regexp
	// category[i] additionally matches the synonym families of token i.
	category [][]*regexp.Regexp
}

// NewScorer compiles matchers for tokens.
func NewScorer(tokens []string) *Scorer {
	s := &Scorer{
		product:  make([][]*regexp.Regexp, 0, len(tokens)),
		category: make([][]*regexp.Regexp, 0, len(tokens)),
	}
	for _, tok := range tokens {
		s.product = append(s.product, compile(analysis.ExpandTerms([]string{tok}, analysis.ProductTable)))
		cat := append(analysis.Synonyms(tok, analysis.CategoryTable), analysis.Synonyms(tok, analysis.ProductTable)...)
		s.category = append(s.category, compile(cat))
	}
	return s
}

// Score is a convenience for NewScorer(tokens).Score(p).
func Score(p *domain.SearchableProduct, tokens []string) float64 {
	return NewScorer(tokens).Score(p)
}

// Score returns the additive relevance of p. It reads nothing but p and the
// compiled tokens, so equal inputs always give equal scores.
func (s *Scorer) Score(p *domain.SearchableProduct) float64 {
	var score float64

	if len(s.product) > 0 {
		hits := 0
		for _, res := range s.product {
			if matchAny(res, p.Name) {
				hits++
			}
		}
		if hits > 0 {
			score += WeightNameAny
		}
		if hits == len(s.product) {
			score += WeightNameAll
		}
	}

	if s.anyToken(s.product, p.Brand) {
		score += WeightBrand
	}
	if s.anyToken(s.product, p.Tags...) {
		score += WeightTag
	}

	for i, level := range p.Category.Levels() {
		if s.anyToken(s.category, level) {
			score += CategoryWeights[i]
		}
	}
	levels := make([]string, 0, len(p.Category.AllLevels))
	for _, l := range p.Category.AllLevels {
		levels = append(levels, l.Name)
	}
	if s.anyToken(s.category, levels...) {
		score += WeightAllLevels
	}

	colors := make([]string, 0, len(p.ColorVariants))
	for _, cv := range p.ColorVariants {
		colors = append(colors, cv.ColorName)
	}
	if s.anyToken(s.product, colors...) {
		score += WeightColor
	}
	if s.anyToken(s.product, p.Description) {
		score += WeightDescription
	}

	score += WeightRating*p.Rating.Average +
		WeightSales*float64(p.SalesCount) +
		WeightViews*float64(p.ViewCount)

	if p.Stock > 0 {
		score += WeightInStock
	}
	return score
}

func (s *Scorer) anyToken(groups [][]*regexp.Regexp, values ...string) bool {
	for _, res := range groups {
		for _, v := range values {
			if matchAny(res, v) {
				return true
			}
		}
	}
	return false
}

func matchAny(res []*regexp.Regexp, v string) bool {
	if v == "" {
		return false
	}
	for _, re := range res {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

func compile(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		// Terms are quoted, so the pattern always compiles.
		out = append(out, regexp.MustCompile(analysis.WordBoundaryPattern(t)))
	}
	return out
}
