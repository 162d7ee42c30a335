package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds producer and consumer collectors. A nil *Metrics disables
// instrumentation.
type Metrics struct {
	published     *prometheus.CounterVec
	publishErrors *prometheus.CounterVec
	processed     *prometheus.CounterVec
	failed        *prometheus.CounterVec
	duplicates    *prometheus.CounterVec
	deadLettered  *prometheus.CounterVec
	handleSeconds *prometheus.HistogramVec
}

// NewMetrics registers the Kafka collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Total number of Kafka messages published",
		}, []string{"topic"}),
		publishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Total number of Kafka publish errors",
		}, []string{"topic"}),
		processed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_processed_total",
			Help: "Total number of successfully processed Kafka messages",
		}, []string{"topic"}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_failed_total",
			Help: "Messages that exhausted handler retries",
		}, []string{"topic"}),
		duplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_messages_duplicate_total",
			Help: "Messages skipped by the idempotency guard",
		}, []string{"event_type"}),
		deadLettered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_consumer_dlq_published_total",
			Help: "Messages published to the dead-letter topic",
		}, []string{"topic"}),
		handleSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Duration of Kafka message processing in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *Metrics) incPublished(topic string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishErrors.WithLabelValues(topic).Inc()
		return
	}
	m.published.WithLabelValues(topic).Inc()
}

func (m *Metrics) observeHandled(topic string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.handleSeconds.WithLabelValues(topic).Observe(seconds)
	if err != nil {
		m.failed.WithLabelValues(topic).Inc()
		return
	}
	m.processed.WithLabelValues(topic).Inc()
}

func (m *Metrics) incDuplicate(eventType string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(eventType).Inc()
}

func (m *Metrics) incDeadLettered(topic string) {
	if m == nil {
		return
	}
	m.deadLettered.WithLabelValues(topic).Inc()
}
