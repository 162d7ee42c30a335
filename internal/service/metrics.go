package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes.
const (
	outcomeOK        = "ok"
	outcomeEmpty     = "empty"
	outcomeFallback  = "fallback"
	outcomeNoResults = "no_results"
	outcomeError     = "error"
)

// Metrics holds the search collectors. A nil *Metrics disables
// instrumentation.
type Metrics struct {
	requests *prometheus.CounterVec
	fallback prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewMetrics registers the search collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Product searches by mode and outcome",
		}, []string{"mode", "outcome"}),
		fallback: f.NewCounter(prometheus.CounterOpts{
			Name: "search_fallback_total",
			Help: "Searches answered by the relaxed substring fallback",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Product search latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"mode"}),
	}
}

func (m *Metrics) observe(mode, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode, outcome).Inc()
	m.duration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if outcome == outcomeFallback {
		m.fallback.Inc()
	}
}
