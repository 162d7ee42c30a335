package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/shopsearch/pkg/httputil"
	"github.com/utafrali/shopsearch/pkg/logger"
)

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// RequireUser rejects requests without an X-User-ID header with 401 and
// stores the caller's id in the context. Identity is asserted by the
// gateway in front of the service.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		if userID == "" {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:      "UNAUTHORIZED",
					Message:   "missing " + headerUserID + " header",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				},
			})
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = logger.WithUserID(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalUser stores the caller's id in the context when X-User-ID is set.
func OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := strings.TrimSpace(r.Header.Get(headerUserID)); userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
