// Package history keeps per-user search and product-view history.
package history

import (
	"context"

	"github.com/utafrali/shopsearch/internal/domain"
)

// DefaultLimit is the number of entries List returns when no limit is given.
const DefaultLimit = 10

// Store persists history entries. Entries are listed newest first; a user
// has at most one product-view entry per product.
type Store interface {
	// AddSearch appends a search entry.
	AddSearch(ctx context.Context, userID, query, filters string) (*domain.HistoryEntry, error)

	// AddProductView records a product view, moving an earlier view of the
	// same product to the top. created reports whether the entry is new.
	AddProductView(ctx context.Context, userID, productID string) (entry *domain.HistoryEntry, created bool, err error)

	// List returns up to limit entries, newest first.
	List(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)

	// Clear removes every entry of the user and returns how many were removed.
	Clear(ctx context.Context, userID string) (int, error)

	// Delete removes one entry owned by the user. Missing entries yield an
	// error wrapping apperrors.ErrNotFound.
	Delete(ctx context.Context, userID, id string) error
}
