package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts analytics side effects. A nil *Metrics disables
// instrumentation.
type Metrics struct {
	writeFailures *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	cleanupResets prometheus.Counter
}

// NewMetrics registers the analytics collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		writeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "search_analytics_write_failures_total",
			Help: "Analytics writes that failed and were discarded",
		}, []string{"op"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "search_analytics_dropped_total",
			Help: "Analytics writes dropped because the recorder was saturated",
		}, []string{"op"}),
		cleanupResets: f.NewCounter(prometheus.CounterOpts{
			Name: "search_analytics_cleanup_reset_total",
			Help: "Keywords whose weekly window was reset by cleanup",
		}),
	}
}

// IncWriteFailure counts a failed write for op.
func (m *Metrics) IncWriteFailure(op string) {
	if m == nil {
		return
	}
	m.writeFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) incDropped(op string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(op).Inc()
}

// AddCleanupResets counts keywords reset by a cleanup run.
func (m *Metrics) AddCleanupResets(n int) {
	if m == nil {
		return
	}
	m.cleanupResets.Add(float64(n))
}
