package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/engine/memory"
	"github.com/utafrali/shopsearch/internal/filter"
	"github.com/utafrali/shopsearch/internal/history"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type searchEvent struct {
	keyword     string
	resultCount int
	productIDs  []string
}

type clickEvent struct {
	keyword, productID string
}

// fakeSink records analytics events synchronously.
type fakeSink struct {
	mu       sync.Mutex
	searches []searchEvent
	clicks   []clickEvent
}

func (f *fakeSink) RecordSearch(_ context.Context, keyword string, resultCount int, productIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, searchEvent{keyword, resultCount, productIDs})
}

func (f *fakeSink) RecordClick(_ context.Context, keyword, productID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, clickEvent{keyword, productID})
}

// brokenIndex fails Find or Facets and delegates everything else.
type brokenIndex struct {
	engine.ProductIndex
	findErr  error
	facetErr error
}

func (b brokenIndex) Find(ctx context.Context, pred filter.Predicate, opts engine.FindOptions) (*engine.FindResult, error) {
	if b.findErr != nil {
		return nil, b.findErr
	}
	return b.ProductIndex.Find(ctx, pred, opts)
}

func (b brokenIndex) Facets(ctx context.Context, pred filter.Predicate) (*domain.Facets, error) {
	if b.facetErr != nil {
		return nil, b.facetErr
	}
	return b.ProductIndex.Facets(ctx, pred)
}

func seedProducts(t *testing.T, idx engine.ProductIndex) {
	t.Helper()
	products := []domain.SearchableProduct{
		{
			ID: "p1", Name: "Oxford Shirt", Brand: "Arrow", Price: 40, Stock: 3,
			Category: domain.Category{Main: "Men", Sub: "Shirts", Type: "Formal"},
			Rating:   domain.Rating{Average: 4.5, Count: 20}, SalesCount: 10,
		},
		{
			ID: "p2", Name: "Silk Blouse", Description: "Lightweight silk shirt", Brand: "Zara", Price: 60, Stock: 1,
			Category: domain.Category{Main: "Women", Sub: "Shirts"},
			Rating:   domain.Rating{Average: 4.0, Count: 5},
		},
		{
			ID: "p3", Name: "Nike Runner", Brand: "Nike", Price: 90, Stock: 5, Tags: []string{"running"},
			Category: domain.Category{Main: "Unisex", Sub: "Shoes", Type: "Running"},
			Rating:   domain.Rating{Average: 4.8, Count: 50}, SalesCount: 50,
		},
		{
			ID: "p4", Name: "Slim Jeans", Brand: "Levis", Price: 50, Stock: 2,
			Category: domain.Category{Main: "Men", Sub: "Jeans"},
			Rating:   domain.Rating{Average: 3.0, Count: 2},
		},
		{
			ID: "p5", Name: "Old Shirt", Brand: "Arrow", Price: 10, Status: "archived",
			Category: domain.Category{Main: "Men", Sub: "Shirts"},
		},
	}
	for i := range products {
		if products[i].Status == "" {
			products[i].Status = domain.ProductStatusActive
		}
	}
	require.NoError(t, idx.BulkIndex(context.Background(), products))
}

func newTestService(t *testing.T, opts ...Option) (*SearchService, *fakeSink) {
	t.Helper()
	idx := memory.New()
	seedProducts(t, idx)
	sink := &fakeSink{}
	return NewSearchService(idx, analytics.NewMemoryStore(), sink, newTestLogger(), opts...), sink
}

func productIDs(ps []domain.SearchableProduct) []string {
	ids := make([]string, len(ps))
	for i := range ps {
		ids[i] = ps[i].ID
	}
	return ids
}

func TestSearch_CategoryAndTypeAreBothRequired(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "men shirt"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"p1"}, productIDs(res.Products))
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "men", res.Meta.DetectedPrimaryCategory)
	assert.Equal(t, "men", res.Meta.MatchedCategoryKeyword)
	assert.Equal(t, "shirt", res.Meta.DetectedProductType)
	assert.Equal(t, []string{"men", "shirt"}, res.Meta.SearchTerms)
	assert.Equal(t, domain.SortRelevance, res.Meta.SortBy)
	assert.Equal(t, domain.ModeSmart, res.Meta.Mode)
	assert.False(t, res.Meta.IsFallbackSearch)
	require.NotNil(t, res.Filters)
	assert.Equal(t, []string{"Arrow"}, res.Filters.Brands)
}

func TestSearch_LegacyModeMatchesAnyToken(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "men shirt", Mode: domain.ModeLegacy})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2", "p4"}, productIDs(res.Products))
	assert.Empty(t, res.Meta.DetectedPrimaryCategory)
	assert.Equal(t, domain.ModeLegacy, res.Meta.Mode)
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc, sink := newTestService(t)

	for _, q := range []string{"", "   ", "the and for"} {
		res, err := svc.Search(context.Background(), domain.SearchQuery{Query: q})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.NotNil(t, res.Products)
		assert.Empty(t, res.Products)
		assert.Zero(t, res.Total)
	}
	assert.Empty(t, sink.searches, "queries without terms are not recorded")
}

func TestSearch_FiltersOnlyBrowses(t *testing.T) {
	svc, sink := newTestService(t)

	res, err := svc.Search(context.Background(), domain.SearchQuery{
		Filters: domain.SearchFilters{Brand: "nike"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, productIDs(res.Products))
	assert.True(t, res.Meta.HasFilters)
	assert.Empty(t, sink.searches)
}

func TestSearch_ExplicitSort(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "shirt", SortBy: "price-high"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, productIDs(res.Products))
	assert.Equal(t, domain.SortPriceDesc, res.Meta.SortBy)
}

func TestSearch_RelevancePagination(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Search(context.Background(), domain.SearchQuery{Query: "men", PerPage: 1})
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), domain.SearchQuery{Query: "men", Page: 2, PerPage: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"p1"}, productIDs(first.Products))
	assert.Equal(t, []string{"p4"}, productIDs(second.Products))
	assert.Equal(t, 2, second.Total)
	assert.Equal(t, 2, second.Pages)

	beyond, err := svc.Search(context.Background(), domain.SearchQuery{Query: "men", Page: 5, PerPage: 1})
	require.NoError(t, err)
	assert.Empty(t, beyond.Products)
	assert.Equal(t, 2, beyond.Total)
}

func TestSearch_TypeWithoutCategoryMatchesOnType(t *testing.T) {
	svc, _ := newTestService(t)

	plain, err := svc.Search(context.Background(), domain.SearchQuery{Query: "shirt"})
	require.NoError(t, err)
	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "cotton shirt"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"p1", "p2"}, productIDs(plain.Products))
	assert.ElementsMatch(t, productIDs(plain.Products), productIDs(res.Products))
	assert.False(t, res.Meta.IsFallbackSearch)
	assert.Equal(t, "shirt", res.Meta.DetectedProductType)
	assert.Empty(t, res.Meta.DetectedPrimaryCategory)
}

func TestSearch_CandidateCapKeepsBestSellers(t *testing.T) {
	idx := memory.New()
	require.NoError(t, idx.BulkIndex(context.Background(), []domain.SearchableProduct{
		{ID: "a-shirt", Name: "Plain Shirt", Price: 20, Status: domain.ProductStatusActive},
		{ID: "z-shirt", Name: "Plain Shirt", Price: 20, Status: domain.ProductStatusActive, SalesCount: 500},
	}))
	svc := NewSearchService(idx, analytics.NewMemoryStore(), &fakeSink{}, newTestLogger(), WithMaxCandidates(1))

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "shirt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"z-shirt"}, productIDs(res.Products))
	assert.Equal(t, 2, res.Total)
}

func TestSearch_FallbackToSubstring(t *testing.T) {
	svc, sink := newTestService(t)

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "oxfo"})
	require.NoError(t, err)

	assert.True(t, res.Meta.IsFallbackSearch)
	assert.Equal(t, []string{"p1"}, productIDs(res.Products))
	assert.Equal(t, 1, res.Total)
	require.NotNil(t, res.Filters)
	assert.Equal(t, []string{"Arrow"}, res.Filters.Brands)

	require.Len(t, sink.searches, 1)
	assert.Zero(t, sink.searches[0].resultCount, "analytics records the primary result count")
}

func TestSearch_DidYouMean(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "shirtt"})
	require.NoError(t, err)

	assert.Zero(t, res.Total)
	assert.False(t, res.Meta.IsFallbackSearch)
	assert.Equal(t, "shirt", res.Meta.DidYouMean)
}

func TestSearch_RelatedCategorySuggestions(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "shirt"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"Shirts"}, res.Suggestions)
}

func TestSearch_RecordsAnalytics(t *testing.T) {
	svc, sink := newTestService(t)

	_, err := svc.Search(context.Background(), domain.SearchQuery{Query: "  Men Shirt "})
	require.NoError(t, err)

	require.Len(t, sink.searches, 1)
	assert.Equal(t, searchEvent{keyword: "Men Shirt", resultCount: 1, productIDs: []string{"p1"}}, sink.searches[0])
}

func TestSearch_AppendsHistoryForIdentifiedUsers(t *testing.T) {
	h := history.NewMemoryStore(nil)
	svc, _ := newTestService(t, WithHistory(h))

	_, err := svc.Search(context.Background(), domain.SearchQuery{
		Query:   "shirt",
		UserID:  "u1",
		Filters: domain.SearchFilters{InStock: true},
	})
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), domain.SearchQuery{Query: "jeans"})
	require.NoError(t, err)
	svc.Close()

	entries, err := h.List(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shirt", entries[0].Query)
	assert.JSONEq(t, `{"inStock":true}`, entries[0].Filters)
}

func TestSearch_InvalidSortAndMode(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Search(context.Background(), domain.SearchQuery{Query: "shirt", SortBy: "cheapest"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Search(context.Background(), domain.SearchQuery{Query: "shirt", Mode: "fuzzy"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSearch_NormalizesPaging(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "shirt", Page: -1, PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 100, res.PerPage)
}

func TestSearch_IndexFailureIsUnavailable(t *testing.T) {
	idx := memory.New()
	seedProducts(t, idx)
	sink := &fakeSink{}
	svc := NewSearchService(brokenIndex{ProductIndex: idx, findErr: errors.New("connection refused")},
		analytics.NewMemoryStore(), sink, newTestLogger())

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "shirt"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, 503, apperrors.HTTPStatus(err))
	assert.Empty(t, sink.searches)
}

func TestSearch_FacetFailureDegrades(t *testing.T) {
	idx := memory.New()
	seedProducts(t, idx)
	svc := NewSearchService(brokenIndex{ProductIndex: idx, facetErr: errors.New("aggregation timeout")},
		analytics.NewMemoryStore(), &fakeSink{}, newTestLogger())

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "men shirt"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Nil(t, res.Filters)
}
