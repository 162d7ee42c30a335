package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/shopsearch/internal/service"
	"github.com/utafrali/shopsearch/pkg/httputil"
	"github.com/utafrali/shopsearch/pkg/middleware"
	"github.com/utafrali/shopsearch/pkg/validator"
)

const maxHistoryBody = 64 << 10

// HistoryHandler handles the caller's search history. Every route runs
// behind middleware.RequireUser.
type HistoryHandler struct {
	service *service.HistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a new history HTTP handler.
func NewHistoryHandler(svc *service.HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{service: svc, logger: logger}
}

// AddSearchRequest is the JSON request body for recording a search.
type AddSearchRequest struct {
	Query   string `json:"query" validate:"required,max=500"`
	Filters string `json:"filters" validate:"max=4096"`
}

// AddProductViewRequest is the JSON request body for recording a product view.
type AddProductViewRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// List handles GET /api/v1/search/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	entries, err := h.service.List(r.Context(), userID, queryLimit(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, map[string]any{"history": entries})
}

// AddSearch handles POST /api/v1/search/history/search
func (h *HistoryHandler) AddSearch(w http.ResponseWriter, r *http.Request) {
	var req AddSearchRequest
	if err := validator.DecodeAndValidate(w, r, &req, maxHistoryBody); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	entry, err := h.service.AddSearch(r.Context(), middleware.UserIDFromContext(r.Context()), req.Query, req.Filters)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: entry})
}

// AddProductView handles POST /api/v1/search/history/product-view. A repeat
// view answers 200 instead of 201.
func (h *HistoryHandler) AddProductView(w http.ResponseWriter, r *http.Request) {
	var req AddProductViewRequest
	if err := validator.DecodeAndValidate(w, r, &req, maxHistoryBody); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	entry, created, err := h.service.AddProductView(r.Context(), middleware.UserIDFromContext(r.Context()), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: entry})
}

// Clear handles DELETE /api/v1/search/history/clear
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Clear(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, map[string]int{"removed": n})
}

// Delete handles DELETE /api/v1/search/history/{id}
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, map[string]string{"id": id, "status": "deleted"})
}
