package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/catalog"
	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/engine/memory"
	"github.com/utafrali/shopsearch/internal/filter"
	"github.com/utafrali/shopsearch/internal/history"
	"github.com/utafrali/shopsearch/internal/service"
	"github.com/utafrali/shopsearch/internal/suggest"
	"github.com/utafrali/shopsearch/pkg/health"
	"github.com/utafrali/shopsearch/pkg/middleware"
)

type response struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingIndex fails every Find and delegates everything else.
type failingIndex struct {
	engine.ProductIndex
}

func (failingIndex) Find(context.Context, filter.Predicate, engine.FindOptions) (*engine.FindResult, error) {
	return nil, errors.New("elasticsearch: connection refused")
}

// feedFunc adapts a function to service.ProductFeed.
type feedFunc func(ctx context.Context, fn func([]domain.SearchableProduct) error) error

func (f feedFunc) EachPage(ctx context.Context, fn func([]domain.SearchableProduct) error) error {
	return f(ctx, fn)
}

type testEnv struct {
	router   http.Handler
	index    *memory.Engine
	keywords *analytics.MemoryStore
	recorder *analytics.Recorder
	search   *service.SearchService
}

// drain waits for pending analytics writes and background work.
func (e *testEnv) drain() {
	e.recorder.Close()
	e.search.Close()
}

type envOption func(*envConfig)

type envConfig struct {
	index    engine.ProductIndex
	feed     service.ProductFeed
	registry *prometheus.Registry
}

func withIndex(idx engine.ProductIndex) envOption {
	return func(c *envConfig) { c.index = idx }
}

func withFeed(f service.ProductFeed) envOption {
	return func(c *envConfig) { c.feed = f }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	logger := newTestLogger()

	idx := memory.New()
	seed(t, idx)

	cfg := envConfig{index: idx, registry: prometheus.NewRegistry()}
	for _, o := range opts {
		o(&cfg)
	}

	keywords := analytics.NewMemoryStore()
	recorder := analytics.NewRecorder(keywords, logger)
	hist := history.NewMemoryStore(time.Now)

	searchOpts := []service.Option{service.WithHistory(hist)}
	if cfg.feed != nil {
		searchOpts = append(searchOpts, service.WithProductFeed(cfg.feed))
	}
	searchSvc := service.NewSearchService(cfg.index, keywords, recorder, logger, searchOpts...)
	t.Cleanup(searchSvc.Close)

	router := NewRouter(Services{
		Search:    searchSvc,
		Analytics: service.NewAnalyticsService(keywords, recorder, nil, logger),
		History:   service.NewHistoryService(hist, idx, logger),
		Suggest:   suggest.New(idx, keywords, catalog.NewIndexLookup(idx), logger),
	}, health.NewHandler(), RouterConfig{
		CORS:            middleware.DefaultCORSConfig(),
		ListingCacheTTL: time.Minute,
		Registry:        cfg.registry,
	}, logger)

	return &testEnv{router: router, index: idx, keywords: keywords, recorder: recorder, search: searchSvc}
}

func seed(t *testing.T, idx engine.ProductIndex) {
	t.Helper()
	products := []domain.SearchableProduct{
		{
			ID: "p1", Name: "Oxford Shirt", Brand: "Arrow", Price: 40, Stock: 3,
			Category: domain.Category{Main: "Men", Sub: "Shirts", Type: "Formal"},
			Rating:   domain.Rating{Average: 4.5, Count: 20},
		},
		{
			ID: "p2", Name: "Nike Runner", Brand: "Nike", Price: 90, Stock: 0,
			Category: domain.Category{Main: "Unisex", Sub: "Shoes", Type: "Running"},
			Rating:   domain.Rating{Average: 4.8, Count: 50},
		},
		{
			ID: "p3", Name: "Linen Shirt", Brand: "Zara", Price: 25, Stock: 7,
			Category: domain.Category{Main: "Women", Sub: "Shirts"},
			Rating:   domain.Rating{Average: 3.9, Count: 4},
		},
	}
	for i := range products {
		products[i].Status = domain.ProductStatusActive
	}
	require.NoError(t, idx.BulkIndex(context.Background(), products))
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	}
	return w, resp
}

func decodeData[T any](t *testing.T, resp response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

// --- Search ---

func TestSearch_ReturnsEnvelope(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodGet, "/api/v1/search?q=shirt&sort=price_asc", "")
	require.Equal(t, http.StatusOK, w.Code)

	result := decodeData[domain.SearchResult](t, resp)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "p3", result.Products[0].ID)
	assert.Equal(t, []string{"shirt"}, result.Meta.SearchTerms)

	env.drain()
	k, err := env.keywords.Get(context.Background(), "shirt")
	require.NoError(t, err)
	assert.EqualValues(t, 1, k.SearchCount)
	assert.ElementsMatch(t, []string{"p1", "p3"}, k.RelatedProducts)
}

func TestSearch_AppliesFilters(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodGet, "/api/v1/search?q=shirt&brand=Zara&in_stock=true&min_price=10&max_price=30", "")
	require.Equal(t, http.StatusOK, w.Code)

	result := decodeData[domain.SearchResult](t, resp)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "p3", result.Products[0].ID)
	assert.True(t, result.Meta.HasFilters)
}

func TestSearch_InvalidParameters(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		query   string
		code    string
		message string
	}{
		{name: "malformed price", query: "min_price=abc", code: "INVALID_PARAMETER", message: "min_price must be a valid number"},
		{name: "negative price", query: "max_price=-1", code: "INVALID_PARAMETER", message: "max_price must not be negative"},
		{name: "inverted range", query: "min_price=50&max_price=10", code: "INVALID_PARAMETER", message: "min_price must not exceed max_price"},
		{name: "rating too high", query: "min_rating=6", code: "INVALID_PARAMETER", message: "min_rating must be between 0 and 5"},
		{name: "in stock not bool", query: "in_stock=maybe", code: "INVALID_PARAMETER", message: "in_stock must be a boolean"},
		{name: "unknown sort", query: "q=shirt&sort=cheapest", code: "INVALID_INPUT"},
		{name: "unknown mode", query: "q=shirt&mode=fuzzy", code: "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, env.router, http.MethodGet, "/api/v1/search?"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodGet, "/api/v1/search?q=the", "")
	require.Equal(t, http.StatusOK, w.Code)

	result := decodeData[domain.SearchResult](t, resp)
	assert.True(t, result.Success)
	assert.Empty(t, result.Products)
	assert.Zero(t, result.Total)
}

func TestSearch_IndexUnavailable(t *testing.T) {
	idx := memory.New()
	env := newTestEnv(t, withIndex(failingIndex{ProductIndex: idx}))

	w, resp := do(t, env.router, http.MethodGet, "/api/v1/search?q=shirt", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SEARCH_UNAVAILABLE", resp.Error.Code)
	assert.Empty(t, resp.Data)
}

func TestSearch_RecordsHistoryForIdentifiedUser(t *testing.T) {
	env := newTestEnv(t)

	w, _ := do(t, env.router, http.MethodGet, "/api/v1/search?q=shirt", "", "X-User-ID", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	env.drain()

	w, resp := do(t, env.router, http.MethodGet, "/api/v1/search/history", "", "X-User-ID", "user-1")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeData[struct {
		History []domain.HistoryEntry `json:"history"`
	}](t, resp)
	require.Len(t, list.History, 1)
	assert.Equal(t, "shirt", list.History[0].Query)
}

// --- Suggestions ---

func TestSuggestAndAutocomplete(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodGet, "/api/v1/search/autocomplete?q=nike", "")
	require.Equal(t, http.StatusOK, w.Code)
	auto := decodeData[struct {
		Suggestions []string `json:"suggestions"`
	}](t, resp)
	assert.Contains(t, auto.Suggestions, "Nike Runner")

	w, resp = do(t, env.router, http.MethodGet, "/api/v1/search/suggest?q=oxford&limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	sugg := decodeData[struct {
		Suggestions []domain.Suggestion `json:"suggestions"`
	}](t, resp)
	assert.LessOrEqual(t, len(sugg.Suggestions), 3)

	w, resp = do(t, env.router, http.MethodGet, "/api/v1/search/autocomplete?q=a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"suggestions":[]}`, string(resp.Data))
}

// --- Analytics ---

func TestRecordClick_AlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.keywords.RecordSearch(context.Background(), "shirt", 2, nil))

	for _, body := range []string{
		`{"keyword":"Shirt","product_id":"p1"}`,
		`{"keyword":"   "}`,
		`not json`,
	} {
		w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/click", body)
		require.Equal(t, http.StatusOK, w.Code, body)
		assert.JSONEq(t, `{"success":true}`, string(resp.Data))
	}

	env.drain()
	k, err := env.keywords.Get(context.Background(), "shirt")
	require.NoError(t, err)
	assert.EqualValues(t, 1, k.ClickCount)
}

func TestTrendingAndPopular(t *testing.T) {
	env := newTestEnv(t)

	for range 3 {
		do(t, env.router, http.MethodGet, "/api/v1/search?q=shirt", "")
	}
	do(t, env.router, http.MethodGet, "/api/v1/search?q=nike", "")
	env.drain()

	w, resp := do(t, env.router, http.MethodGet, "/api/v1/search/trending?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	trending := decodeData[[]domain.KeywordAnalytics](t, resp)
	require.Len(t, trending, 1)
	assert.Equal(t, "shirt", trending[0].Keyword)

	w, resp = do(t, env.router, http.MethodGet, "/api/v1/search/popular?type=popular", "")
	require.Equal(t, http.StatusOK, w.Code)
	popular := decodeData[[]domain.PopularKeyword](t, resp)
	assert.Equal(t, []domain.PopularKeyword{
		{Keyword: "shirt", Type: domain.PopularPopular, Count: 3},
		{Keyword: "nike", Type: domain.PopularPopular, Count: 1},
	}, popular)

	w, resp = do(t, env.router, http.MethodGet, "/api/v1/search/popular?type=terms", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestAnalyticsCleanup(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/analytics/cleanup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reset":0}`, string(resp.Data))
}

// --- History ---

func TestHistory_RequiresUser(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodGet, "/api/v1/search/history", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

func TestHistory_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	user := []string{"X-User-ID", "user-1"}

	w, _ := do(t, env.router, http.MethodPost, "/api/v1/search/history/search", `{"query":"  linen shirt "}`, user...)
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/history/search", `{"query":""}`, user...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	w, resp = do(t, env.router, http.MethodPost, "/api/v1/search/history/product-view", `{"product_id":"p1"}`, user...)
	require.Equal(t, http.StatusCreated, w.Code)
	view := decodeData[domain.HistoryEntry](t, resp)
	assert.Equal(t, domain.HistoryProductView, view.Kind)

	w, _ = do(t, env.router, http.MethodPost, "/api/v1/search/history/product-view", `{"product_id":"p1"}`, user...)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = do(t, env.router, http.MethodPost, "/api/v1/search/history/product-view", `{"product_id":"missing"}`, user...)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)

	w, resp = do(t, env.router, http.MethodGet, "/api/v1/search/history?limit=10", "", user...)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeData[struct {
		History []domain.HistoryEntry `json:"history"`
	}](t, resp)
	require.Len(t, list.History, 2)
	assert.Equal(t, "p1", list.History[0].ProductID)
	assert.Equal(t, "linen shirt", list.History[1].Query)

	// Another user sees nothing and cannot delete the entries.
	w, _ = do(t, env.router, http.MethodDelete, "/api/v1/search/history/"+list.History[1].ID, "", "X-User-ID", "user-2")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, env.router, http.MethodDelete, "/api/v1/search/history/"+list.History[1].ID, "", user...)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = do(t, env.router, http.MethodDelete, "/api/v1/search/history/clear", "", user...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, string(resp.Data))
}

// --- Indexing ---

func TestIndexProduct(t *testing.T) {
	env := newTestEnv(t)

	body := `{"id":"p9","name":"Denim Jacket","brand":"Levis","price":80,
		"category":{"main":"Men","sub":"Jackets"},
		"colorVariants":[{"colorName":"Blue","sizeVariants":[{"size":"M","stock":2},{"size":"L","stock":1}]}]}`
	w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/index", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"p9","status":"indexed"}`, string(resp.Data))

	p, err := env.index.Get(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, "men/jackets", p.Category.FullPath)
}

func TestIndexProduct_Validation(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/index", `{"id":"p9"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "name")

	w, resp = do(t, env.router, http.MethodPost, "/api/v1/search/index", `{"id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/index", strings.NewReader(`id=p9`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestIndexProduct_RejectsBodyOver1MB(t *testing.T) {
	env := newTestEnv(t)

	body := `{"id":"big","name":"` + strings.Repeat("x", maxIndexBody+1) + `"}`
	w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/index", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestBulkIndex(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/bulk",
		`{"products":[{"id":"b1","name":"Wool Scarf"},{"id":"b2","name":"Leather Belt"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"indexed":2,"status":"ok"}`, string(resp.Data))

	items := make([]string, 501)
	for i := range items {
		items[i] = fmt.Sprintf(`{"id":"b%d","name":"Item %d"}`, i, i)
	}
	w, resp = do(t, env.router, http.MethodPost, "/api/v1/search/bulk", `{"products":[`+strings.Join(items, ",")+`]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

	w, _ = do(t, env.router, http.MethodPost, "/api/v1/search/bulk", `{"products":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodDelete, "/api/v1/search/p1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"p1","status":"deleted"}`, string(resp.Data))

	_, err := env.index.Get(context.Background(), "p1")
	assert.Error(t, err)
}

func TestReindex(t *testing.T) {
	env := newTestEnv(t, withFeed(feedFunc(func(ctx context.Context, fn func([]domain.SearchableProduct) error) error {
		return fn([]domain.SearchableProduct{{ID: "r1", Name: "Rain Coat"}})
	})))

	w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/reindex", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"reindex started"}`, string(resp.Data))

	env.drain()
	p, err := env.index.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusActive, p.Status)
}

func TestReindex_WithoutFeed(t *testing.T) {
	env := newTestEnv(t)

	w, resp := do(t, env.router, http.MethodPost, "/api/v1/search/reindex", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PRODUCT_SERVICE_UNAVAILABLE", resp.Error.Code)
}

// --- Ambient routes ---

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w, _ := do(t, env.router, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	do(t, env.router, http.MethodGet, "/api/v1/search?q=shirt", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
