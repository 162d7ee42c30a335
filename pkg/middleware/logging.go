package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/shopsearch/pkg/logger"
)

const (
	headerCorrelationID = "X-Correlation-ID"
	headerUserID        = "X-User-ID"
)

// RequestLogging assigns a correlation id (taken from X-Correlation-ID or
// generated), stores a request-scoped logger in the context and writes one
// access log line per request.
//
// Mount it after Tracing so the scoped logger carries trace_id and span_id.
func RequestLogging(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			correlationID := r.Header.Get(headerCorrelationID)
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			w.Header().Set(headerCorrelationID, correlationID)

			ctx := logger.WithCorrelationID(r.Context(), correlationID)
			if userID := r.Header.Get(headerUserID); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}
			scoped := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, scoped)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			scoped.Log(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", rec.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
