package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Operation labels.
const (
	OpSearch = "search"
	OpClick  = "click"
)

// Sink accepts analytics events without blocking the caller and without
// reporting failures.
type Sink interface {
	RecordSearch(ctx context.Context, keyword string, resultCount int, productIDs []string)
	RecordClick(ctx context.Context, keyword, productID string)
}

// Recorder hands events to a Writer on background goroutines. Each write
// runs on a context detached from the request, bounded by a timeout.
// Failures are logged and counted, never returned.
type Recorder struct {
	writer  Writer
	logger  *slog.Logger
	metrics *Metrics
	timeout time.Duration
	sem     chan struct{}
	wg      sync.WaitGroup
}

var _ Sink = (*Recorder)(nil)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithTimeout bounds each write. The default is five seconds.
func WithTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.timeout = d }
}

// WithConcurrency bounds in-flight writes. Events beyond the bound are
// dropped. The default is 64.
func WithConcurrency(n int) RecorderOption {
	return func(r *Recorder) { r.sem = make(chan struct{}, max(n, 1)) }
}

// WithMetrics records failures and drops.
func WithMetrics(m *Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w Writer, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		writer:  w,
		logger:  logger,
		timeout: 5 * time.Second,
		sem:     make(chan struct{}, 64),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Recorder) RecordSearch(ctx context.Context, keyword string, resultCount int, productIDs []string) {
	ids := append([]string(nil), productIDs...)
	r.spawn(ctx, OpSearch, keyword, func(ctx context.Context) error {
		return r.writer.RecordSearch(ctx, keyword, resultCount, ids)
	})
}

func (r *Recorder) RecordClick(ctx context.Context, keyword, productID string) {
	r.spawn(ctx, OpClick, keyword, func(ctx context.Context) error {
		return r.writer.RecordClick(ctx, keyword, productID)
	})
}

// Close waits for in-flight writes.
func (r *Recorder) Close() {
	r.wg.Wait()
}

func (r *Recorder) spawn(ctx context.Context, op, keyword string, write func(context.Context) error) {
	select {
	case r.sem <- struct{}{}:
	default:
		r.metrics.incDropped(op)
		r.logger.Warn("analytics recorder saturated, dropping event",
			slog.String("op", op), slog.String("keyword", keyword))
		return
	}

	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.sem }()

		wctx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		err := write(wctx)
		if err == nil || errors.Is(err, ErrEmptyKeyword) {
			return
		}
		r.metrics.IncWriteFailure(op)
		r.logger.WarnContext(wctx, "analytics write failed",
			slog.String("op", op),
			slog.String("keyword", keyword),
			slog.String("error", err.Error()),
		)
	}()
}
