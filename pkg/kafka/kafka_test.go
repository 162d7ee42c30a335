package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	r.committed = append(r.committed, msgs...)
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func mustMessage(t *testing.T, topic string, e *Event) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Value: b}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.search.performed", Topic("search", "performed"))
	assert.Equal(t, "ecommerce.dlq.ecommerce.search.clicked", DLQTopic(Topic("search", "clicked")))
}

func TestProducer_PublishKeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	m := NewMetrics(prometheus.NewRegistry())
	p := NewProducer(w, nil, m, testLogger())

	e, err := NewEvent("search.performed", "running shoes", "search_keyword", "search-service", map[string]int{"results": 4})
	require.NoError(t, err)
	e.WithCorrelationID("corr-1")

	require.NoError(t, p.Publish(context.Background(), "ecommerce.search.performed", e))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "running shoes", string(msg.Key))
	assert.Equal(t, "ecommerce.search.performed", msg.Topic)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "correlation_id", Value: []byte("corr-1")})

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	var payload map[string]int
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, 4, payload["results"])
	assert.Equal(t, float64(1), metricValue(t, m.published.WithLabelValues("ecommerce.search.performed")))
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	m := NewMetrics(prometheus.NewRegistry())
	p := NewProducer(w, nil, m, testLogger())

	e, err := NewEvent("search.clicked", "k", "search_keyword", "search-service", struct{}{})
	require.NoError(t, err)
	err = p.Publish(context.Background(), "t", e)
	require.Error(t, err)
	assert.Equal(t, float64(1), metricValue(t, m.publishErrors.WithLabelValues("t")))
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	e, err := NewEvent("product.updated", "p1", "product", "product-service", map[string]string{"id": "p1"})
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafka.Message{mustMessage(t, "ecommerce.product.updated", e)}}
	dlqWriter := &fakeWriter{}

	attempts := 0
	handler := func(context.Context, *Event) error {
		attempts++
		return errors.New("index unavailable")
	}

	c := NewConsumer(reader, "search-service", handler, testLogger(),
		WithRetry(3, time.Millisecond),
		WithDeadLetter(NewDLQProducer(dlqWriter, testLogger())),
		WithConsumerMetrics(NewMetrics(prometheus.NewRegistry())),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 3, attempts)
	assert.True(t, reader.closed)
	require.Len(t, dlqWriter.msgs, 1)
	assert.Equal(t, "ecommerce.dlq.ecommerce.product.updated", dlqWriter.msgs[0].Topic)
	assert.Contains(t, dlqWriter.msgs[0].Headers, kafka.Header{Key: "dlq.consumer_group", Value: []byte("search-service")})
}

func TestConsumer_CommitsUndecodable(t *testing.T) {
	reader := &fakeReader{}
	called := false
	c := NewConsumer(reader, "g", func(context.Context, *Event) error { called = true; return nil }, testLogger())

	c.process(context.Background(), kafka.Message{Topic: "t", Value: []byte("{not json")})
	assert.False(t, called)
	assert.Len(t, reader.committed, 1)
}

func TestIdempotentHandler_Memory(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error { calls++; return nil }, nil, testLogger())

	e := &Event{EventID: "evt-1", EventType: "search.clicked"}
	require.NoError(t, h(context.Background(), e))
	require.NoError(t, h(context.Background(), e))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	fail := true
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		if fail {
			return errors.New("transient")
		}
		return nil
	}, nil, testLogger())

	e := &Event{EventID: "evt-2"}
	require.Error(t, h(context.Background(), e))
	fail = false
	require.NoError(t, h(context.Background(), e))
	assert.Equal(t, 2, calls)
}

func TestMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Add(context.Background(), "e"))
	ok, _ := store.Contains(context.Background(), "e")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = store.Contains(context.Background(), "e")
	assert.False(t, ok)
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisIdempotencyStore(client, "search:events:", time.Hour)
	ctx := context.Background()

	ok, err := store.Contains(ctx, "evt-9")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Add(ctx, "evt-9"))
	ok, err = store.Contains(ctx, "evt-9")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = store.Contains(ctx, "evt-9")
	require.NoError(t, err)
	assert.False(t, ok)
}

// metricValue reads the current value of a counter or gauge.
func metricValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if c := out.GetCounter(); c != nil {
		return c.GetValue()
	}
	return out.GetGauge().GetValue()
}
