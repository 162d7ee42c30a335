// Package event connects the search service to Kafka: product events keep
// the index fresh, and search and click events carry analytics between the
// API and the analytics store.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/shopsearch/internal/service"
	pkgkafka "github.com/utafrali/shopsearch/pkg/kafka"
)

// Kafka topic constants for product domain events consumed by the search service.
var (
	TopicProductCreated = pkgkafka.Topic("product", "created")
	TopicProductUpdated = pkgkafka.Topic("product", "updated")
	TopicProductDeleted = pkgkafka.Topic("product", "deleted")
)

// ProductTopics lists the topics ProductConsumer handles.
func ProductTopics() []string {
	return []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}
}

// ProductDeletedData represents the payload from a product.deleted event.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// Indexer is the part of the search service product events drive.
type Indexer interface {
	IndexProduct(ctx context.Context, input *service.IndexProductInput) error
	DeleteProduct(ctx context.Context, id string) error
}

// ProductConsumer handles Kafka events related to product changes for search indexing.
type ProductConsumer struct {
	indexer Indexer
	logger  *slog.Logger
}

// NewProductConsumer creates a product event consumer.
func NewProductConsumer(indexer Indexer, logger *slog.Logger) *ProductConsumer {
	return &ProductConsumer{indexer: indexer, logger: logger}
}

// Handle processes a Kafka event based on its type.
func (c *ProductConsumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		return c.handleUpsert(ctx, event)
	case TopicProductDeleted:
		return c.handleDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleUpsert indexes a created or updated product. The payload carries
// the full searchable projection.
func (c *ProductConsumer) handleUpsert(ctx context.Context, event *pkgkafka.Event) error {
	var input service.IndexProductInput
	if err := event.UnmarshalData(&input); err != nil {
		return err
	}

	if err := c.indexer.IndexProduct(ctx, &input); err != nil {
		return fmt.Errorf("index product from %s: %w", event.EventType, err)
	}

	c.logger.InfoContext(ctx, "indexed product from event",
		slog.String("event_type", event.EventType),
		slog.String("product_id", input.ID),
	)
	return nil
}

// handleDeleted removes a deleted product from the index.
func (c *ProductConsumer) handleDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	if err := c.indexer.DeleteProduct(ctx, data.ID); err != nil {
		return fmt.Errorf("delete product from deleted event: %w", err)
	}

	c.logger.InfoContext(ctx, "deleted product from deleted event",
		slog.String("product_id", data.ID),
	)
	return nil
}
