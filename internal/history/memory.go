package history

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/shopsearch/internal/domain"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

// MemoryStore keeps each user's entries newest first in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]domain.HistoryEntry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A nil clock means time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{entries: make(map[string][]domain.HistoryEntry), now: clock}
}

func (s *MemoryStore) AddSearch(_ context.Context, userID, query, filters string) (*domain.HistoryEntry, error) {
	e := domain.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      domain.HistorySearch,
		Query:     query,
		Filters:   filters,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = slices.Insert(s.entries[userID], 0, e)
	return &e, nil
}

func (s *MemoryStore) AddProductView(_ context.Context, userID, productID string) (*domain.HistoryEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	e := domain.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      domain.HistoryProductView,
		ProductID: productID,
	}
	created := true
	i := slices.IndexFunc(list, func(h domain.HistoryEntry) bool {
		return h.Kind == domain.HistoryProductView && h.ProductID == productID
	})
	if i >= 0 {
		e.ID = list[i].ID
		created = false
		list = slices.Delete(list, i, i+1)
	}
	e.CreatedAt = s.now().UTC()
	s.entries[userID] = slices.Insert(list, 0, e)
	return &e, created, nil
}

func (s *MemoryStore) List(_ context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	return append([]domain.HistoryEntry{}, list[:min(limit, len(list))]...), nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries[userID])
	delete(s.entries, userID)
	return n, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	i := slices.IndexFunc(list, func(h domain.HistoryEntry) bool { return h.ID == id })
	if i < 0 {
		return apperrors.NotFound("history entry", id)
	}
	s.entries[userID] = slices.Delete(list, i, i+1)
	return nil
}
