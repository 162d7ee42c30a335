package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/shopsearch/internal/service"
	"github.com/utafrali/shopsearch/internal/suggest"
	"github.com/utafrali/shopsearch/pkg/health"
	"github.com/utafrali/shopsearch/pkg/middleware"
)

// Services are the application services the router exposes.
type Services struct {
	Search    *service.SearchService
	Analytics *service.AnalyticsService
	History   *service.HistoryService
	Suggest   *suggest.Engine
}

// RouterConfig holds the transport-level settings of the router.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	// ListingCacheTTL is the Cache-Control max-age of trending and popular
	// listings. Zero disables the header.
	ListingCacheTTL time.Duration
	// PprofCIDRs enables /debug/pprof for the listed networks when non-empty.
	PprofCIDRs []string
	// RateLimitRPS enables per-client rate limiting of the search API when
	// positive, with bursts of RateLimitBurst.
	RateLimitRPS   float64
	RateLimitBurst int
	// Registry receives the HTTP metrics and backs /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Tracing("search-service"))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.NewHTTPMetrics(cfg.Registry).Middleware)

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	searchHandler := NewSearchHandler(svc.Search, svc.Suggest, logger)
	analyticsHandler := NewAnalyticsHandler(svc.Analytics, logger)
	historyHandler := NewHistoryHandler(svc.History, logger)

	listing := func(next http.Handler) http.Handler { return next }
	if cfg.ListingCacheTTL > 0 {
		listing = middleware.CacheControl(cfg.ListingCacheTTL)
	}

	r.Route("/api/v1/search", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRPS, max(cfg.RateLimitBurst, 1), logger))
		}

		r.With(middleware.OptionalUser).Get("/", searchHandler.Search)
		r.Get("/suggest", searchHandler.Suggest)
		r.Get("/autocomplete", searchHandler.Autocomplete)

		r.Post("/click", analyticsHandler.RecordClick)
		r.With(listing).Get("/trending", analyticsHandler.Trending)
		r.With(listing).Get("/popular", analyticsHandler.Popular)
		r.Post("/analytics/cleanup", analyticsHandler.Cleanup)

		r.Route("/history", func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Get("/", historyHandler.List)
			r.Post("/search", historyHandler.AddSearch)
			r.Post("/product-view", historyHandler.AddProductView)
			r.Delete("/clear", historyHandler.Clear)
			r.Delete("/{id}", historyHandler.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(chimw.AllowContentType("application/json"))
			r.Post("/index", searchHandler.IndexProduct)
			r.Post("/bulk", searchHandler.BulkIndex)
			r.Post("/reindex", searchHandler.Reindex)
		})
		r.Delete("/{id}", searchHandler.DeleteProduct)
	})

	return r
}
