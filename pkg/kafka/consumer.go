package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// MessageReader is implemented by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterer receives messages whose handler kept failing.
type DeadLetterer interface {
	Publish(ctx context.Context, msg kafka.Message, cause error, group string) error
}

// ConsumerConfig holds consumer-group settings. Topics may name several
// topics; they are consumed through one group.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topics   []string
	MinBytes int
	MaxBytes int
}

// NewReader builds a group reader over cfg.Topics.
func NewReader(cfg ConsumerConfig) *kafka.Reader {
	minBytes, maxBytes := cfg.MinBytes, cfg.MaxBytes
	if minBytes <= 0 {
		minBytes = 1
	}
	if maxBytes <= 0 {
		maxBytes = 10e6
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    minBytes,
		MaxBytes:    maxBytes,
	})
}

// Consumer fetches, decodes and dispatches messages, committing each one once
// it has been handled, dead-lettered or found undecodable.
type Consumer struct {
	reader     MessageReader
	handler    Handler
	group      string
	dlq        DeadLetterer
	metrics    *Metrics
	logger     *slog.Logger
	maxRetries int
	retryWait  time.Duration
	closeOnce  sync.Once
}

// ConsumerOption customises a Consumer.
type ConsumerOption func(*Consumer)

// WithDeadLetter routes exhausted messages to d instead of dropping them.
func WithDeadLetter(d DeadLetterer) ConsumerOption {
	return func(c *Consumer) { c.dlq = d }
}

// WithConsumerMetrics instruments the consumer.
func WithConsumerMetrics(m *Metrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// WithRetry sets the attempt count and the linear backoff step between
// attempts.
func WithRetry(attempts int, step time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if attempts > 0 {
			c.maxRetries = attempts
		}
		c.retryWait = step
	}
}

// NewConsumer creates a consumer reading from r on behalf of group.
func NewConsumer(r MessageReader, group string, handler Handler, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:     r,
		handler:    handler,
		group:      group,
		logger:     logger,
		maxRetries: 3,
		retryWait:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start blocks until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer started", slog.String("group", c.group))
	defer c.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping", slog.String("group", c.group))
				return nil
			}
			c.logger.ErrorContext(ctx, "failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	start := time.Now()
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "dropping undecodable message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.commit(ctx, msg)
		return
	}

	err = c.handleWithRetry(ctx, msg, event)
	c.metrics.observeHandled(msg.Topic, time.Since(start).Seconds(), err)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.ErrorContext(ctx, "handler failed after all retries",
			slog.String("topic", msg.Topic),
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		if c.dlq != nil {
			if dlqErr := c.dlq.Publish(ctx, msg, err, c.group); dlqErr == nil {
				c.metrics.incDeadLettered(msg.Topic)
			}
		}
	}
	c.commit(ctx, msg)
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message, event *Event) error {
	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err = c.handler(ctx, event); err == nil {
			return nil
		}
		c.logger.WarnContext(ctx, "handler failed, will retry",
			slog.String("topic", msg.Topic),
			slog.String("event_type", event.EventType),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.retryWait):
		}
	}
	return fmt.Errorf("after %d attempts: %w", c.maxRetries, err)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the reader. Safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.reader.Close() })
	return err
}
