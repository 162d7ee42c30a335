package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/shopsearch/internal/analytics"
	pkgkafka "github.com/utafrali/shopsearch/pkg/kafka"
	"github.com/utafrali/shopsearch/pkg/logger"
)

// Analytics topics, produced and consumed by the search service.
var (
	TopicSearchPerformed = pkgkafka.Topic("search", "performed")
	TopicSearchClicked   = pkgkafka.Topic("search", "clicked")
)

const (
	// SourceSearchService identifies events produced here.
	SourceSearchService = "search-service"

	// AggregateTypeKeyword is the aggregate type of analytics events.
	AggregateTypeKeyword = "search_keyword"
)

// AnalyticsTopics lists the topics AnalyticsConsumer handles.
func AnalyticsTopics() []string {
	return []string{TopicSearchPerformed, TopicSearchClicked}
}

// SearchPerformedData is the payload of a search.performed event.
type SearchPerformedData struct {
	Keyword     string   `json:"keyword"`
	ResultCount int      `json:"result_count"`
	ProductIDs  []string `json:"product_ids,omitempty"`
}

// SearchClickedData is the payload of a search.clicked event.
type SearchClickedData struct {
	Keyword   string `json:"keyword"`
	ProductID string `json:"product_id,omitempty"`
}

// Publisher is implemented by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// AnalyticsPublisher forwards analytics writes to Kafka. Events are keyed
// by the normalized keyword so every event of a keyword is applied in
// order by one consumer.
type AnalyticsPublisher struct {
	publisher Publisher
}

var _ analytics.Writer = (*AnalyticsPublisher)(nil)

// NewAnalyticsPublisher creates an AnalyticsPublisher.
func NewAnalyticsPublisher(p Publisher) *AnalyticsPublisher {
	return &AnalyticsPublisher{publisher: p}
}

// RecordSearch publishes a search.performed event.
func (p *AnalyticsPublisher) RecordSearch(ctx context.Context, keyword string, resultCount int, productIDs []string) error {
	return p.publish(ctx, TopicSearchPerformed, keyword, SearchPerformedData{
		Keyword:     keyword,
		ResultCount: resultCount,
		ProductIDs:  productIDs,
	})
}

// RecordClick publishes a search.clicked event.
func (p *AnalyticsPublisher) RecordClick(ctx context.Context, keyword, productID string) error {
	return p.publish(ctx, TopicSearchClicked, keyword, SearchClickedData{
		Keyword:   keyword,
		ProductID: productID,
	})
}

func (p *AnalyticsPublisher) publish(ctx context.Context, topic, keyword string, data any) error {
	key := analytics.NormalizeKeyword(keyword)
	if key == "" {
		return analytics.ErrEmptyKeyword
	}

	event, err := pkgkafka.NewEvent(topic, key, AggregateTypeKeyword, SourceSearchService, data)
	if err != nil {
		return err
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	return p.publisher.Publish(ctx, topic, event)
}

// AnalyticsConsumer applies analytics events to the store.
type AnalyticsConsumer struct {
	store  analytics.Writer
	logger *slog.Logger
}

// NewAnalyticsConsumer creates an analytics event consumer.
func NewAnalyticsConsumer(store analytics.Writer, logger *slog.Logger) *AnalyticsConsumer {
	return &AnalyticsConsumer{store: store, logger: logger}
}

// Handle applies one event. Events for blank keywords are dropped; store
// failures are returned so the consumer retries and dead-letters them.
func (c *AnalyticsConsumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	var err error
	switch event.EventType {
	case TopicSearchPerformed:
		var data SearchPerformedData
		if err := event.UnmarshalData(&data); err != nil {
			return err
		}
		err = c.store.RecordSearch(ctx, data.Keyword, data.ResultCount, data.ProductIDs)
	case TopicSearchClicked:
		var data SearchClickedData
		if err := event.UnmarshalData(&data); err != nil {
			return err
		}
		err = c.store.RecordClick(ctx, data.Keyword, data.ProductID)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	if errors.Is(err, analytics.ErrEmptyKeyword) {
		c.logger.WarnContext(ctx, "dropping analytics event without keyword",
			slog.String("event_id", event.EventID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply %s: %w", event.EventType, err)
	}
	return nil
}
