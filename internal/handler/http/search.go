package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/service"
	"github.com/utafrali/shopsearch/internal/suggest"
	"github.com/utafrali/shopsearch/pkg/httputil"
	"github.com/utafrali/shopsearch/pkg/middleware"
	"github.com/utafrali/shopsearch/pkg/pagination"
)

const maxSuggestLimit = 20

// SearchHandler handles HTTP requests for search, suggestion and indexing
// endpoints.
type SearchHandler struct {
	service *service.SearchService
	suggest *suggest.Engine
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, suggestions *suggest.Engine, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		suggest: suggestions,
		logger:  logger,
	}
}

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters, msg := parseFilters(q)
	if msg != "" {
		httputil.WriteBadParameter(w, msg)
		return
	}

	page := pagination.FromQuery(q)
	query := domain.SearchQuery{
		Query:   q.Get("q"),
		Filters: filters,
		SortBy:  q.Get("sort"),
		Mode:    q.Get("mode"),
		Page:    page.Page,
		PerPage: page.PerPage,
		UserID:  middleware.UserIDFromContext(r.Context()),
	}

	result, err := h.service.Search(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, result)
}

// parseFilters reads the explicit filters of a search request. A non-empty
// message describes the first malformed parameter.
func parseFilters(q url.Values) (domain.SearchFilters, string) {
	f := domain.SearchFilters{
		Brand:        strings.TrimSpace(q.Get("brand")),
		Category:     strings.TrimSpace(q.Get("category")),
		MainCategory: strings.TrimSpace(q.Get("main_category")),
		SubCategory:  strings.TrimSpace(q.Get("sub_category")),
	}

	var msg string
	if f.MinPrice, msg = parseNonNegative(q, "min_price"); msg != "" {
		return f, msg
	}
	if f.MaxPrice, msg = parseNonNegative(q, "max_price"); msg != "" {
		return f, msg
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return f, "min_price must not exceed max_price"
	}

	if f.MinRating, msg = parseNonNegative(q, "min_rating"); msg != "" {
		return f, msg
	}
	if f.MinRating != nil && *f.MinRating > 5 {
		return f, "min_rating must be between 0 and 5"
	}

	if v := q.Get("in_stock"); v != "" {
		inStock, err := strconv.ParseBool(v)
		if err != nil {
			return f, "in_stock must be a boolean"
		}
		f.InStock = inStock
	}
	return f, ""
}

func parseNonNegative(q url.Values, name string) (*float64, string) {
	v := q.Get(name)
	if v == "" {
		return nil, ""
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, name + " must be a valid number"
	}
	if n < 0 {
		return nil, name + " must not be negative"
	}
	return &n, ""
}

// Suggest handles GET /api/v1/search/suggest
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	limit := suggest.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= maxSuggestLimit {
			limit = l
		}
	}

	suggestions := h.suggest.Suggest(r.Context(), r.URL.Query().Get("q"), limit)
	httputil.WriteData(w, map[string]any{"suggestions": suggestions})
}

// Autocomplete handles GET /api/v1/search/autocomplete
func (h *SearchHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	completions := h.suggest.Autocomplete(r.Context(), r.URL.Query().Get("q"), suggest.DefaultAutoLimit)
	httputil.WriteData(w, map[string]any{"suggestions": completions})
}
