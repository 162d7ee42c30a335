package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/domain"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

// Keyword list limits.
const (
	DefaultKeywordLimit = 10
	MaxKeywordLimit     = 100
	popularAllPerKind   = 5
)

// AnalyticsService exposes keyword analytics: click recording, trending and
// popular lists, and the periodic cleanup.
type AnalyticsService struct {
	store   analytics.Store
	sink    analytics.Sink
	metrics *analytics.Metrics
	logger  *slog.Logger
}

// NewAnalyticsService creates an analytics service. Clicks go through sink;
// reads and cleanup go to store directly.
func NewAnalyticsService(store analytics.Store, sink analytics.Sink, metrics *analytics.Metrics, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{store: store, sink: sink, metrics: metrics, logger: logger}
}

// RecordClick acknowledges a click on a search result. The write happens in
// the background; only a missing keyword is rejected.
func (s *AnalyticsService) RecordClick(ctx context.Context, keyword, productID string) error {
	if strings.TrimSpace(keyword) == "" {
		return apperrors.InvalidInput("keyword is required")
	}
	s.sink.RecordClick(ctx, keyword, strings.TrimSpace(productID))
	return nil
}

// Trending returns keywords searched within the trending window.
func (s *AnalyticsService) Trending(ctx context.Context, limit int) ([]domain.KeywordAnalytics, error) {
	ks, err := s.store.Trending(ctx, keywordLimit(limit))
	if err != nil {
		return nil, apperrors.Unavailable("analytics", fmt.Errorf("trending keywords: %w", err))
	}
	return ks, nil
}

// Popular returns keywords by popularity score.
func (s *AnalyticsService) Popular(ctx context.Context, limit int) ([]domain.KeywordAnalytics, error) {
	ks, err := s.store.Popular(ctx, keywordLimit(limit))
	if err != nil {
		return nil, apperrors.Unavailable("analytics", fmt.Errorf("popular keywords: %w", err))
	}
	return ks, nil
}

// PopularSearches lists keywords of the given kind. PopularAll (the default)
// merges the top trending and top popular keywords, de-duplicated by
// keyword, trending first.
func (s *AnalyticsService) PopularSearches(ctx context.Context, kind string, limit int) ([]domain.PopularKeyword, error) {
	limit = keywordLimit(limit)

	var trending, popular []domain.KeywordAnalytics
	var err error
	switch strings.TrimSpace(kind) {
	case domain.PopularTrending:
		trending, err = s.Trending(ctx, limit)
	case domain.PopularPopular:
		popular, err = s.Popular(ctx, limit)
	case domain.PopularAll, "":
		if trending, err = s.Trending(ctx, popularAllPerKind); err == nil {
			popular, err = s.Popular(ctx, popularAllPerKind)
		}
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid type %q, expected trending, popular or all", kind))
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.PopularKeyword, 0, len(trending)+len(popular))
	seen := map[string]struct{}{}
	add := func(k domain.KeywordAnalytics, kind string, count int64) {
		if _, ok := seen[k.Keyword]; ok {
			return
		}
		seen[k.Keyword] = struct{}{}
		out = append(out, domain.PopularKeyword{Keyword: displayKeyword(k), Type: kind, Count: count})
	}
	for _, k := range trending {
		add(k, domain.PopularTrending, k.WeeklySearches)
	}
	for _, k := range popular {
		add(k, domain.PopularPopular, k.SearchCount)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cleanup resets the weekly window of stale keywords and returns how many
// records changed.
func (s *AnalyticsService) Cleanup(ctx context.Context) (int, error) {
	n, err := s.store.Cleanup(ctx)
	if err != nil {
		s.metrics.IncWriteFailure("cleanup")
		return 0, apperrors.Unavailable("analytics", fmt.Errorf("cleanup: %w", err))
	}
	s.metrics.AddCleanupResets(n)

	s.logger.InfoContext(ctx, "search analytics cleanup completed",
		slog.Int("reset", n),
	)
	return n, nil
}

func keywordLimit(limit int) int {
	if limit <= 0 {
		return DefaultKeywordLimit
	}
	return min(limit, MaxKeywordLimit)
}

func displayKeyword(k domain.KeywordAnalytics) string {
	if k.OriginalKeyword != "" {
		return k.OriginalKeyword
	}
	return k.Keyword
}
