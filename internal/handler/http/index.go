package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/shopsearch/internal/service"
	"github.com/utafrali/shopsearch/pkg/httputil"
	"github.com/utafrali/shopsearch/pkg/validator"
)

// Request body limits.
const (
	maxIndexBody = 1 << 20
	maxBulkBody  = 10 << 20
)

// BulkIndexRequest is the JSON request body for bulk indexing products.
type BulkIndexRequest struct {
	Products []service.IndexProductInput `json:"products" validate:"required,min=1,max=500,dive"`
}

// IndexProduct handles POST /api/v1/search/index
func (h *SearchHandler) IndexProduct(w http.ResponseWriter, r *http.Request) {
	var req service.IndexProductInput
	if err := validator.DecodeAndValidate(w, r, &req, maxIndexBody); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.IndexProduct(r.Context(), &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, map[string]string{"id": req.ID, "status": "indexed"})
}

// DeleteProduct handles DELETE /api/v1/search/{id}
func (h *SearchHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, map[string]string{"id": id, "status": "deleted"})
}

// BulkIndex handles POST /api/v1/search/bulk
func (h *SearchHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	var req BulkIndexRequest
	if err := validator.DecodeAndValidate(w, r, &req, maxBulkBody); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	indexed, err := h.service.BulkIndex(r.Context(), req.Products)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, map[string]any{"indexed": indexed, "status": "ok"})
}

// Reindex handles POST /api/v1/search/reindex. The run continues in the
// background; a second request while one is active gets 409.
func (h *SearchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	if err := h.service.StartReindex(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "reindex started"}})
}
