// Package postgres stores search history in the search_history table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/history"
	"github.com/utafrali/shopsearch/pkg/database"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

const (
	insertSearchSQL = `
		INSERT INTO search_history (id, user_id, kind, query, filters, created_at)
		VALUES ($1, $2, 'search', $3, $4, $5)`

	// xmax is zero only for freshly inserted rows.
	upsertViewSQL = `
		INSERT INTO search_history (id, user_id, kind, product_id, created_at)
		VALUES ($1, $2, 'product_view', $3, $4)
		ON CONFLICT (user_id, product_id) WHERE kind = 'product_view'
		DO UPDATE SET created_at = EXCLUDED.created_at
		RETURNING id::text, (xmax = 0) AS inserted`

	listSQL = `
		SELECT id::text, user_id, kind, query, product_id, filters, created_at
		FROM search_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	clearSQL  = `DELETE FROM search_history WHERE user_id = $1`
	deleteSQL = `DELETE FROM search_history WHERE id = $1 AND user_id = $2`
)

// Store implements history.Store on PostgreSQL.
type Store struct {
	db     database.DBTX
	tracer database.QueryTracer
	now    func() time.Time
}

var _ history.Store = (*Store)(nil)

// NewStore creates a history store. A nil clock means time.Now.
func NewStore(db database.DBTX, tracer database.QueryTracer, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{db: db, tracer: tracer, now: clock}
}

func (s *Store) AddSearch(ctx context.Context, userID, query, filters string) (_ *domain.HistoryEntry, err error) {
	ctx, end := s.tracer.Start(ctx, "AddSearchHistory", insertSearchSQL)
	defer func() { end(err) }()

	e := &domain.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      domain.HistorySearch,
		Query:     query,
		Filters:   filters,
		CreatedAt: s.now().UTC(),
	}
	if _, err = s.db.Exec(ctx, insertSearchSQL, e.ID, e.UserID, e.Query, e.Filters, e.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert search history: %w", err)
	}
	return e, nil
}

func (s *Store) AddProductView(ctx context.Context, userID, productID string) (_ *domain.HistoryEntry, _ bool, err error) {
	ctx, end := s.tracer.Start(ctx, "AddProductView", upsertViewSQL)
	defer func() { end(err) }()

	e := &domain.HistoryEntry{
		UserID:    userID,
		Kind:      domain.HistoryProductView,
		ProductID: productID,
		CreatedAt: s.now().UTC(),
	}
	var inserted bool
	err = s.db.QueryRow(ctx, upsertViewSQL, uuid.NewString(), userID, productID, e.CreatedAt).
		Scan(&e.ID, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("upsert product view: %w", err)
	}
	return e, inserted, nil
}

func (s *Store) List(ctx context.Context, userID string, limit int) (_ []domain.HistoryEntry, err error) {
	ctx, end := s.tracer.Start(ctx, "ListHistory", listSQL)
	defer func() { end(err) }()

	if limit <= 0 {
		limit = history.DefaultLimit
	}
	rows, err := s.db.Query(ctx, listSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := []domain.HistoryEntry{}
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Query, &e.ProductID, &e.Filters, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("list history: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: iterate rows: %w", err)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context, userID string) (_ int, err error) {
	ctx, end := s.tracer.Start(ctx, "ClearHistory", clearSQL)
	defer func() { end(err) }()

	tag, err := s.db.Exec(ctx, clearSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Delete(ctx context.Context, userID, id string) (err error) {
	ctx, end := s.tracer.Start(ctx, "DeleteHistoryEntry", deleteSQL)
	defer func() { end(err) }()

	tag, err := s.db.Exec(ctx, deleteSQL, id, userID)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("history entry", id)
	}
	return nil
}
