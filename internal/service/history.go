package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/history"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

// MaxHistoryLimit caps List.
const MaxHistoryLimit = 100

// HistoryService manages per-user search and product-view history.
type HistoryService struct {
	store  history.Store
	index  engine.ProductIndex
	logger *slog.Logger
}

// NewHistoryService creates a history service. index is consulted to make
// sure viewed products exist.
func NewHistoryService(store history.Store, index engine.ProductIndex, logger *slog.Logger) *HistoryService {
	return &HistoryService{store: store, index: index, logger: logger}
}

// AddSearch records a search query for the user.
func (s *HistoryService) AddSearch(ctx context.Context, userID, query, filters string) (*domain.HistoryEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.InvalidInput("query is required")
	}

	e, err := s.store.AddSearch(ctx, userID, query, filters)
	if err != nil {
		return nil, fmt.Errorf("add search history: %w", err)
	}
	return e, nil
}

// AddProductView records a product view. The product must be indexed.
func (s *HistoryService) AddProductView(ctx context.Context, userID, productID string) (*domain.HistoryEntry, bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, false, apperrors.InvalidInput("product_id is required")
	}

	if _, err := s.index.Get(ctx, productID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, false, apperrors.NotFound("product", productID)
		}
		return nil, false, fmt.Errorf("look up product: %w", err)
	}

	e, created, err := s.store.AddProductView(ctx, userID, productID)
	if err != nil {
		return nil, false, fmt.Errorf("add product view: %w", err)
	}

	s.logger.DebugContext(ctx, "product view recorded",
		slog.String("product_id", productID),
		slog.Bool("created", created),
	)
	return e, created, nil
}

// List returns the user's newest entries.
func (s *HistoryService) List(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	entries, err := s.store.List(ctx, userID, min(limit, MaxHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// Clear removes every entry of the user.
func (s *HistoryService) Clear(ctx context.Context, userID string) (int, error) {
	n, err := s.store.Clear(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	s.logger.InfoContext(ctx, "search history cleared", slog.Int("removed", n))
	return n, nil
}

// Delete removes one entry owned by the user.
func (s *HistoryService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return nil
}
