package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/shopsearch/internal/analysis"
	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/filter"
	"github.com/utafrali/shopsearch/internal/history"
	"github.com/utafrali/shopsearch/internal/relevance"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
	"github.com/utafrali/shopsearch/pkg/pagination"
)

// Search defaults.
const (
	DefaultMaxCandidates  = 1000
	DefaultFallbackLimit  = 20
	relatedThreshold      = 5
	maxRelatedCategories  = 8
	relatedScan           = 100
	didYouMeanKeywordScan = 20
	historyWriteTimeout   = 5 * time.Second
)

// SearchService implements the business logic for search operations.
type SearchService struct {
	index         engine.ProductIndex
	keywords      analytics.Store
	sink          analytics.Sink
	history       history.Store
	feed          ProductFeed
	metrics       *Metrics
	logger        *slog.Logger
	maxCandidates int
	fallbackLimit int
	clock         func() time.Time

	reindexing atomic.Bool
	wg         sync.WaitGroup
}

// Option configures a SearchService.
type Option func(*SearchService)

// WithHistory appends searches by identified users to h.
func WithHistory(h history.Store) Option {
	return func(s *SearchService) { s.history = h }
}

// WithMetrics instruments searches.
func WithMetrics(m *Metrics) Option {
	return func(s *SearchService) { s.metrics = m }
}

// WithMaxCandidates bounds how many candidates relevance sorting scores.
func WithMaxCandidates(n int) Option {
	return func(s *SearchService) {
		if n > 0 {
			s.maxCandidates = n
		}
	}
}

// WithFallbackLimit caps the size of a fallback result.
func WithFallbackLimit(n int) Option {
	return func(s *SearchService) {
		if n > 0 {
			s.fallbackLimit = n
		}
	}
}

// WithProductFeed sets the source Reindex pages through.
func WithProductFeed(f ProductFeed) Option {
	return func(s *SearchService) { s.feed = f }
}

// WithClock overrides time.Now for indexing timestamps.
func WithClock(c func() time.Time) Option {
	return func(s *SearchService) { s.clock = c }
}

// NewSearchService creates a new search service. keywords feeds did-you-mean
// corrections; sink receives one search event per searchable query.
func NewSearchService(index engine.ProductIndex, keywords analytics.Store, sink analytics.Sink, logger *slog.Logger, opts ...Option) *SearchService {
	s := &SearchService{
		index:         index,
		keywords:      keywords,
		sink:          sink,
		logger:        logger,
		maxCandidates: DefaultMaxCandidates,
		fallbackLimit: DefaultFallbackLimit,
		clock:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close waits for pending history writes and background reindex runs.
func (s *SearchService) Close() {
	s.wg.Wait()
}

// Search executes a product search.
//
// Queries without searchable terms and without filters return an empty
// successful result. With filters only, every active product passing them
// is a candidate. A failing index is reported as apperrors.Unavailable; a
// failing facet aggregation only drops the facets.
func (s *SearchService) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	start := time.Now()

	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	tokens := analysis.Tokenize(q.Query)
	if len(tokens) == 0 && q.Filters.IsEmpty() {
		s.metrics.observe(q.Mode, outcomeEmpty, start)
		res := domain.EmptyResult(q)
		res.TookMs = time.Since(start).Milliseconds()
		return res, nil
	}

	var (
		facets filter.Facets
		pred   filter.Predicate
	)
	if q.Mode == domain.ModeLegacy {
		pred = filter.BuildLegacy(tokens, q.Filters)
	} else {
		facets = filter.Detect(tokens)
		pred = filter.Build(tokens, facets, q.Filters)
	}

	res := &domain.SearchResult{
		Success: true,
		Query:   q.Query,
		Page:    q.Page,
		PerPage: q.PerPage,
		Meta:    searchMeta(q, tokens, facets),
	}

	found, err := s.primary(ctx, pred, tokens, q)
	if err != nil {
		s.metrics.observe(q.Mode, outcomeError, start)
		s.logger.ErrorContext(ctx, "search failed",
			slog.String("query", q.Query),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Unavailable("search", err)
	}
	res.Products, res.Total, res.Filters = found.products, found.total, found.facets
	primaryTotal := found.total

	outcome := outcomeOK
	if res.Total == 0 && len(tokens) > 0 {
		fb, err := s.fallback(ctx, tokens, q)
		if err != nil {
			s.metrics.observe(q.Mode, outcomeError, start)
			return nil, apperrors.Unavailable("search", err)
		}
		if fb.total > 0 {
			res.Products, res.Total, res.Filters = fb.products, fb.total, fb.facets
			res.Meta.IsFallbackSearch = true
			outcome = outcomeFallback
		} else {
			res.Meta.DidYouMean = s.didYouMean(ctx, tokens)
			outcome = outcomeNoResults
		}
	}

	if res.Total < relatedThreshold && len(tokens) > 0 {
		res.Suggestions = s.relatedCategories(ctx, tokens)
	}
	if res.Products == nil {
		res.Products = []domain.SearchableProduct{}
	}
	res.Pages = pagination.Pages(res.Total, q.PerPage)

	if len(tokens) > 0 {
		ids := make([]string, len(res.Products))
		for i := range res.Products {
			ids[i] = res.Products[i].ID
		}
		s.sink.RecordSearch(ctx, strings.TrimSpace(q.Query), primaryTotal, ids)
		s.appendHistory(ctx, q)
	}

	s.metrics.observe(q.Mode, outcome, start)
	res.TookMs = time.Since(start).Milliseconds()

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", q.Query),
		slog.String("mode", q.Mode),
		slog.Int("total", res.Total),
		slog.Bool("fallback", res.Meta.IsFallbackSearch),
		slog.Int64("took_ms", res.TookMs),
	)
	return res, nil
}

type hits struct {
	products []domain.SearchableProduct
	total    int
	facets   *domain.Facets
}

// primary runs the candidate query and the facet aggregation concurrently.
// Relevance candidates are scored and paginated here; explicit sorts are
// paginated by the index.
func (s *SearchService) primary(ctx context.Context, pred filter.Predicate, tokens []string, q domain.SearchQuery) (hits, error) {
	var out hits
	offset := (q.Page - 1) * q.PerPage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if q.SortBy != domain.SortRelevance {
			r, err := s.index.Find(gctx, pred, engine.FindOptions{SortBy: q.SortBy, Offset: offset, Limit: q.PerPage})
			if err != nil {
				return fmt.Errorf("find products: %w", err)
			}
			out.products, out.total = r.Products, r.Total
			return nil
		}

		// The candidate cap keeps the best sellers; scoring reorders them.
		r, err := s.index.Find(gctx, pred, engine.FindOptions{SortBy: domain.SortPopularity, Limit: s.maxCandidates})
		if err != nil {
			return fmt.Errorf("find candidates: %w", err)
		}
		relevance.Rank(r.Products, tokens)
		out.products, out.total = paginate(r.Products, offset, q.PerPage), r.Total
		return nil
	})
	g.Go(func() error {
		f, err := s.index.Facets(gctx, pred)
		if err != nil {
			s.logger.WarnContext(ctx, "facet aggregation failed",
				slog.String("error", err.Error()),
			)
			return nil
		}
		out.facets = f
		return nil
	})

	if err := g.Wait(); err != nil {
		return hits{}, err
	}
	return out, nil
}

// fallback re-runs the query with substring matching, capped at
// fallbackLimit products.
func (s *SearchService) fallback(ctx context.Context, tokens []string, q domain.SearchQuery) (hits, error) {
	r, err := s.index.Find(ctx, filter.BuildFallback(tokens, q.Filters), engine.FindOptions{
		SortBy: q.SortBy,
		Limit:  s.fallbackLimit,
	})
	if err != nil {
		return hits{}, fmt.Errorf("fallback search: %w", err)
	}
	if q.SortBy == domain.SortRelevance {
		relevance.Rank(r.Products, tokens)
	}
	return hits{
		products: paginate(r.Products, (q.Page-1)*q.PerPage, q.PerPage),
		total:    len(r.Products),
		facets:   engine.FacetsOf(r.Products),
	}, nil
}

// didYouMean corrects tokens against the lexicon and the words of trending
// keywords.
func (s *SearchService) didYouMean(ctx context.Context, tokens []string) string {
	vocabulary := append([]string{}, analysis.Vocabulary()...)
	if s.keywords != nil {
		trending, err := s.keywords.Trending(ctx, didYouMeanKeywordScan)
		if err != nil {
			s.logger.WarnContext(ctx, "loading trending keywords failed",
				slog.String("error", err.Error()),
			)
		}
		for _, k := range trending {
			vocabulary = append(vocabulary, strings.Fields(k.Keyword)...)
		}
	}
	return analysis.DidYouMean(tokens, vocabulary)
}

// relatedCategories collects category names containing any token from
// products whose hierarchy substring-matches the query.
func (s *SearchService) relatedCategories(ctx context.Context, tokens []string) []string {
	r, err := s.index.Find(ctx, filter.CategorySubstring(tokens), engine.FindOptions{
		SortBy: domain.SortPopularity,
		Limit:  relatedScan,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "related categories lookup failed",
			slog.String("error", err.Error()),
		)
		return nil
	}

	seen := map[string]struct{}{}
	var out []string
	for i := range r.Products {
		for _, name := range r.Products[i].Category.Names() {
			lower := strings.ToLower(name)
			if _, ok := seen[lower]; ok || !containsAny(lower, tokens) {
				continue
			}
			seen[lower] = struct{}{}
			out = append(out, name)
			if len(out) == maxRelatedCategories {
				return out
			}
		}
	}
	return out
}

// appendHistory records the search for identified users without blocking
// the response.
func (s *SearchService) appendHistory(ctx context.Context, q domain.SearchQuery) {
	if s.history == nil || q.UserID == "" {
		return
	}
	var filters string
	if !q.Filters.IsEmpty() {
		if b, err := json.Marshal(q.Filters); err == nil {
			filters = string(b)
		}
	}

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, historyWriteTimeout)
		defer cancel()
		if _, err := s.history.AddSearch(ctx, q.UserID, strings.TrimSpace(q.Query), filters); err != nil {
			s.logger.WarnContext(ctx, "search history write failed",
				slog.String("user_id", q.UserID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func normalizeQuery(q domain.SearchQuery) (domain.SearchQuery, error) {
	if q.Page <= 0 {
		q.Page = pagination.DefaultPage
	}
	if q.PerPage <= 0 {
		q.PerPage = pagination.DefaultPerPage
	}
	if q.PerPage > pagination.MaxPerPage {
		q.PerPage = pagination.MaxPerPage
	}

	sortBy, ok := domain.NormalizeSort(strings.TrimSpace(q.SortBy))
	if !ok {
		return q, apperrors.InvalidInput(fmt.Sprintf("invalid sort %q, expected one of %s",
			q.SortBy, strings.Join(domain.ValidSortOptions(), ", ")))
	}
	q.SortBy = sortBy

	switch q.Mode = strings.TrimSpace(q.Mode); q.Mode {
	case "":
		q.Mode = domain.ModeSmart
	case domain.ModeSmart, domain.ModeLegacy:
	default:
		return q, apperrors.InvalidInput(fmt.Sprintf("invalid mode %q, expected smart or legacy", q.Mode))
	}
	return q, nil
}

func searchMeta(q domain.SearchQuery, tokens []string, facets filter.Facets) domain.SearchMeta {
	m := domain.SearchMeta{
		SearchTerms:         tokens,
		DetectedProductType: facets.ProductType,
		HasFilters:          !q.Filters.IsEmpty(),
		Filters:             q.Filters,
		SortBy:              q.SortBy,
		Mode:                q.Mode,
	}
	if facets.Category != nil {
		m.DetectedPrimaryCategory = facets.Category.Category
		m.MatchedCategoryKeyword = facets.Category.Keyword
	}
	return m
}

func paginate(products []domain.SearchableProduct, offset, limit int) []domain.SearchableProduct {
	if offset >= len(products) {
		return []domain.SearchableProduct{}
	}
	return products[offset:min(offset+limit, len(products))]
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
