package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/service"
)

func TestRecordClick_LogsRejectedClicks(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store := analytics.NewMemoryStore()
	recorder := analytics.NewRecorder(store, newTestLogger())
	h := NewAnalyticsHandler(service.NewAnalyticsService(store, recorder, nil, newTestLogger()), logger)

	w, resp := do(t, http.HandlerFunc(h.RecordClick), http.MethodPost, "/api/v1/search/click", `{"keyword":"  ","product_id":"p1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, string(resp.Data))
	assert.Contains(t, logs.String(), "click not recorded")
	assert.Contains(t, logs.String(), "keyword is required")

	recorder.Close()
	keywords, err := store.Popular(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, keywords)
}
