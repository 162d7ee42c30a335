package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/utafrali/shopsearch/internal/service"
	"github.com/utafrali/shopsearch/pkg/httputil"
)

const maxClickBody = 64 << 10

// AnalyticsHandler handles click recording and keyword listings.
type AnalyticsHandler struct {
	service *service.AnalyticsService
	logger  *slog.Logger
}

// NewAnalyticsHandler creates a new analytics HTTP handler.
func NewAnalyticsHandler(svc *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc, logger: logger}
}

// RecordClickRequest is the JSON request body of a search result click.
type RecordClickRequest struct {
	Keyword   string `json:"keyword"`
	ProductID string `json:"product_id"`
}

// RecordClick handles POST /api/v1/search/click. Clicks are best effort:
// the response is a success even when nothing was recorded.
func (h *AnalyticsHandler) RecordClick(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClickBody)

	var req RecordClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.DebugContext(r.Context(), "ignoring malformed click",
			slog.String("error", err.Error()),
		)
	} else if err := h.service.RecordClick(r.Context(), req.Keyword, req.ProductID); err != nil {
		h.logger.DebugContext(r.Context(), "click not recorded",
			slog.String("keyword", req.Keyword),
			slog.String("error", err.Error()),
		)
	}

	httputil.WriteData(w, map[string]bool{"success": true})
}

// Trending handles GET /api/v1/search/trending
func (h *AnalyticsHandler) Trending(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.service.Trending(r.Context(), queryLimit(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, keywords)
}

// Popular handles GET /api/v1/search/popular
func (h *AnalyticsHandler) Popular(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.service.PopularSearches(r.Context(), r.URL.Query().Get("type"), queryLimit(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, keywords)
}

// Cleanup handles POST /api/v1/search/analytics/cleanup
func (h *AnalyticsHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Cleanup(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, map[string]int{"reset": n})
}

// queryLimit reads ?limit. Missing or malformed values yield 0, which the
// services replace with their default.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
