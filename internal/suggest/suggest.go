// Package suggest builds search-box suggestions and autocomplete lists from
// trending keywords, indexed products and the category catalog.
package suggest

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/shopsearch/internal/analysis"
	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/catalog"
	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/filter"
)

// Limits.
const (
	DefaultLimit       = 10
	DefaultAutoLimit   = 8
	MinQueryLength     = 2
	emptyQueryTrending = 5
	trendingScan       = 10
	productSuggestions = 5
	categorySuggestion = 3
	subcategoryPerCat  = 2
	autoProducts       = 4
	autoBrands         = 2
	autoCategories     = 2
	autoScan           = 50
)

// Engine composes suggestion sources. Every source degrades on its own: a
// failing source is logged and contributes nothing.
type Engine struct {
	index      engine.ProductIndex
	keywords   analytics.Store
	categories catalog.CategoryLookup
	logger     *slog.Logger
}

// New creates a suggestion engine.
func New(index engine.ProductIndex, keywords analytics.Store, categories catalog.CategoryLookup, logger *slog.Logger) *Engine {
	return &Engine{index: index, keywords: keywords, categories: categories, logger: logger}
}

// Suggest returns up to limit suggestions for a partial query, de-duplicated
// by display text. Queries shorter than MinQueryLength get the top trending
// keywords instead.
func (e *Engine) Suggest(ctx context.Context, query string, limit int) []domain.Suggestion {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return truncate(e.trending(ctx, emptyQueryTrending, ""), limit)
	}

	tokens := analysis.Tokenize(query)
	facets := filter.Detect(tokens)

	var trending, products, categories []domain.Suggestion
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trending = e.trending(gctx, trendingScan, strings.ToLower(query))
		return nil
	})
	if len(tokens) > 0 {
		g.Go(func() error {
			products = e.products(gctx, tokens, facets.Category)
			return nil
		})
		g.Go(func() error {
			categories = e.categoryTree(gctx, tokens)
			return nil
		})
	}
	_ = g.Wait()

	all := make([]domain.Suggestion, 0, len(trending)+len(products)+len(categories))
	all = append(all, trending...)
	all = append(all, products...)
	all = append(all, categories...)
	return truncate(dedupe(all), limit)
}

// Autocomplete returns up to limit completions: product names, then brands,
// then category names.
func (e *Engine) Autocomplete(ctx context.Context, query string, limit int) []string {
	if limit <= 0 {
		limit = DefaultAutoLimit
	}
	query = strings.TrimSpace(query)
	tokens := analysis.Tokenize(query)
	if len([]rune(query)) < MinQueryLength || len(tokens) == 0 {
		return []string{}
	}
	facets := filter.Detect(tokens)

	var names, brands, cats []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		names = e.distinct(gctx, filter.Suggestion(tokens, facets.Category, filter.FieldName),
			func(p *domain.SearchableProduct) string { return p.Name }, autoProducts)
		return nil
	})
	g.Go(func() error {
		brands = e.distinct(gctx, filter.Suggestion(tokens, nil, filter.FieldBrand),
			func(p *domain.SearchableProduct) string { return p.Brand }, autoBrands)
		return nil
	})
	g.Go(func() error {
		found, err := e.categories.FindCategories(gctx, tokens, autoCategories)
		if err != nil {
			e.degraded(gctx, "categories", err)
			return nil
		}
		for _, c := range found {
			if catalog.Matches(c.Name, tokens) {
				cats = append(cats, c.Name)
			}
		}
		return nil
	})
	_ = g.Wait()

	out := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, group := range [][]string{names, brands, cats} {
		for _, s := range group {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out[:min(limit, len(out))]
}

// trending returns trending keywords whose display form contains the
// lower-case string contains. An empty string keeps every keyword.
func (e *Engine) trending(ctx context.Context, limit int, contains string) []domain.Suggestion {
	ks, err := e.keywords.Trending(ctx, limit)
	if err != nil {
		e.degraded(ctx, "trending", err)
		return nil
	}
	out := make([]domain.Suggestion, 0, len(ks))
	for _, k := range ks {
		text := k.OriginalKeyword
		if text == "" {
			text = k.Keyword
		}
		if contains != "" && !strings.Contains(strings.ToLower(text), contains) {
			continue
		}
		out = append(out, domain.Suggestion{Text: text, Type: domain.SuggestionTrending})
	}
	return out
}

// products suggests product names, then brands and tags of the same
// products that match a token.
func (e *Engine) products(ctx context.Context, tokens []string, category *analysis.CategoryMatch) []domain.Suggestion {
	pred := filter.Suggestion(tokens, category, filter.FieldName, filter.FieldBrand, filter.FieldTags)
	res, err := e.index.Find(ctx, pred, engine.FindOptions{SortBy: domain.SortPopularity, Limit: productSuggestions})
	if err != nil {
		e.degraded(ctx, "products", err)
		return nil
	}

	patterns := analysis.BuildWordBoundaryPatterns(tokens, analysis.ProductTable)
	matches := func(s string) bool {
		for _, re := range patterns {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}

	var names, extras []domain.Suggestion
	for _, p := range res.Products {
		names = append(names, domain.Suggestion{
			Text:      p.Name,
			Type:      domain.SuggestionProduct,
			ProductID: p.ID,
			Category:  categoryLabel(p.Category),
		})
		if p.Brand != "" && matches(p.Brand) {
			extras = append(extras, domain.Suggestion{Text: p.Brand, Type: domain.SuggestionBrand})
		}
		for _, tag := range p.Tags {
			if matches(tag) {
				extras = append(extras, domain.Suggestion{Text: tag, Type: domain.SuggestionTag})
			}
		}
	}
	return append(names, extras...)
}

// categoryTree suggests matching categories followed by up to two of their
// matching subcategories each.
func (e *Engine) categoryTree(ctx context.Context, tokens []string) []domain.Suggestion {
	cats, err := e.categories.FindCategories(ctx, tokens, categorySuggestion)
	if err != nil {
		e.degraded(ctx, "categories", err)
		return nil
	}
	var out []domain.Suggestion
	for _, c := range cats {
		out = append(out, domain.Suggestion{Text: c.Name, Type: domain.SuggestionCategory, Category: c.Slug})
		n := 0
		for _, sub := range c.Subcategories {
			if n == subcategoryPerCat {
				break
			}
			if !catalog.Matches(sub.Name, tokens) {
				continue
			}
			out = append(out, domain.Suggestion{
				Text:     sub.Name + " in " + c.Name,
				Type:     domain.SuggestionSubcategory,
				Category: sub.Slug,
				Parent:   c.Slug,
			})
			n++
		}
	}
	return out
}

// distinct returns up to limit distinct non-empty values of field over the
// most popular products matching pred.
func (e *Engine) distinct(ctx context.Context, pred filter.Predicate, field func(*domain.SearchableProduct) string, limit int) []string {
	res, err := e.index.Find(ctx, pred, engine.FindOptions{SortBy: domain.SortPopularity, Limit: autoScan})
	if err != nil {
		e.degraded(ctx, "autocomplete", err)
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for i := range res.Products {
		v := field(&res.Products[i])
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (e *Engine) degraded(ctx context.Context, source string, err error) {
	e.logger.WarnContext(ctx, "suggestion source failed",
		slog.String("source", source),
		slog.String("error", err.Error()),
	)
}

func categoryLabel(c domain.Category) string {
	if c.Sub == "" {
		return c.Main
	}
	return c.Main + " > " + c.Sub
}

func dedupe(in []domain.Suggestion) []domain.Suggestion {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s.Text]; ok {
			continue
		}
		seen[s.Text] = struct{}{}
		out = append(out, s)
	}
	return out
}

func truncate(in []domain.Suggestion, limit int) []domain.Suggestion {
	if in == nil {
		return []domain.Suggestion{}
	}
	return in[:min(limit, len(in))]
}
