package analytics

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/shopsearch/internal/domain"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

// MemoryStore keeps records in process memory. Derived fields are
// recomputed under the same lock as the counters.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.KeywordAnalytics
	now     Clock
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now.
func WithClock(c Clock) MemoryOption {
	return func(s *MemoryStore) { s.now = c }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{records: make(map[string]*domain.KeywordAnalytics), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) RecordSearch(_ context.Context, keyword string, resultCount int, productIDs []string) error {
	key := NormalizeKeyword(keyword)
	if key == "" {
		return ErrEmptyKeyword
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.records[key]
	if !ok {
		k = &domain.KeywordAnalytics{
			Keyword:         key,
			OriginalKeyword: strings.TrimSpace(keyword),
			RelatedProducts: []string{},
			CreatedAt:       now,
		}
		s.records[key] = k
	}
	k.SearchCount++
	k.WeeklySearches++
	k.ResultCount = resultCount
	k.LastSearched = now
	k.UpdatedAt = now
	k.RelatedProducts = Union(k.RelatedProducts, productIDs...)
	ApplySearch(k, now)
	return nil
}

func (s *MemoryStore) RecordClick(_ context.Context, keyword, productID string) error {
	key := NormalizeKeyword(keyword)
	if key == "" {
		return ErrEmptyKeyword
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.records[key]
	if !ok {
		return nil
	}
	k.ClickCount++
	k.LastSearched = now
	k.UpdatedAt = now
	k.RelatedProducts = Union(k.RelatedProducts, productID)
	ApplyClick(k, now)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, keyword string) (*domain.KeywordAnalytics, error) {
	key := NormalizeKeyword(keyword)

	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.records[key]
	if !ok {
		return nil, apperrors.NotFound("keyword", key)
	}
	out := clone(k)
	return &out, nil
}

func (s *MemoryStore) Trending(_ context.Context, limit int) ([]domain.KeywordAnalytics, error) {
	cutoff := s.now().Add(-TrendingWindow)

	s.mu.Lock()
	out := make([]domain.KeywordAnalytics, 0)
	for _, k := range s.records {
		if !k.LastSearched.Before(cutoff) {
			out = append(out, clone(k))
		}
	}
	s.mu.Unlock()

	SortTrending(out)
	return Truncate(out, limit), nil
}

func (s *MemoryStore) Popular(_ context.Context, limit int) ([]domain.KeywordAnalytics, error) {
	s.mu.Lock()
	out := make([]domain.KeywordAnalytics, 0, len(s.records))
	for _, k := range s.records {
		out = append(out, clone(k))
	}
	s.mu.Unlock()

	SortPopular(out)
	return Truncate(out, limit), nil
}

func (s *MemoryStore) Cleanup(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, k := range s.records {
		if IsStale(k, now) && Reset(k) {
			k.UpdatedAt = now.UTC()
			n++
		}
	}
	return n, nil
}

func clone(k *domain.KeywordAnalytics) domain.KeywordAnalytics {
	out := *k
	out.RelatedProducts = slices.Clone(k.RelatedProducts)
	return out
}
