package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/v1/search", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS_AllowOrigin(t *testing.T) {
	storefront := []string{"https://shop.example.com", "https://admin.example.com"}

	tests := []struct {
		name       string
		cfg        CORSConfig
		origin     string
		wantOrigin string
		wantVary   bool
	}{
		{"wildcard", CORSConfig{AllowedOrigins: []string{"*"}}, "https://anywhere.test", "*", false},
		{"wildcard without origin", CORSConfig{AllowedOrigins: []string{"*"}}, "", "*", false},
		{"listed origin", CORSConfig{AllowedOrigins: storefront}, "https://admin.example.com", "https://admin.example.com", true},
		{"unlisted origin", CORSConfig{AllowedOrigins: storefront}, "https://evil.test", "", false},
		{"no origin with list", CORSConfig{AllowedOrigins: storefront}, "", "", false},
		{"credentials echo origin", CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, "https://shop.example.com", "https://shop.example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveCORS(tt.cfg, http.MethodGet, tt.origin)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantVary {
				assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			} else {
				assert.Empty(t, rec.Header().Get("Vary"))
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	rec := serveCORS(DefaultCORSConfig(), http.MethodOptions, "https://shop.example.com")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "X-Correlation-ID", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_SimpleRequestSkipsPreflightHeaders(t *testing.T) {
	rec := serveCORS(DefaultCORSConfig(), http.MethodGet, "https://shop.example.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_Credentials(t *testing.T) {
	rec := serveCORS(CORSConfig{
		AllowedOrigins:   []string{"https://shop.example.com"},
		AllowCredentials: true,
		MaxAge:           600,
	}, http.MethodOptions, "https://shop.example.com")

	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "Accept, Content-Type, X-Correlation-ID, X-User-ID", rec.Header().Get("Access-Control-Allow-Headers"))
}
