// Package postgres is a PostgreSQL-backed analytics.Store over the
// search_analytics table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/pkg/database"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

const columns = `keyword, original_keyword, search_count, click_count, result_count,
	weekly_searches, last_searched, popularity_score, trending_score, trending,
	related_products, created_at, updated_at`

const (
	upsertSearchSQL = `
		INSERT INTO search_analytics
			(keyword, original_keyword, search_count, weekly_searches, result_count,
			 last_searched, related_products, created_at, updated_at)
		VALUES ($1, $2, 1, 1, $3, $4, $5, $4, $4)
		ON CONFLICT (keyword) DO UPDATE SET
			search_count     = search_analytics.search_count + 1,
			weekly_searches  = search_analytics.weekly_searches + 1,
			result_count     = EXCLUDED.result_count,
			last_searched    = EXCLUDED.last_searched,
			related_products = ARRAY(
				SELECT DISTINCT id
				FROM unnest(search_analytics.related_products || EXCLUDED.related_products) AS id
				ORDER BY id),
			updated_at       = EXCLUDED.updated_at
		RETURNING ` + columns

	recordClickSQL = `
		UPDATE search_analytics SET
			click_count      = click_count + 1,
			last_searched    = $2,
			updated_at       = $2,
			related_products = CASE
				WHEN $3 = '' OR $3 = ANY(related_products) THEN related_products
				ELSE array_append(related_products, $3)
			END
		WHERE keyword = $1
		RETURNING ` + columns

	updateDerivedSQL = `
		UPDATE search_analytics
		SET popularity_score = $2, trending_score = $3, trending = $4
		WHERE keyword = $1`

	getSQL = `SELECT ` + columns + ` FROM search_analytics WHERE keyword = $1`

	trendingSQL = `SELECT ` + columns + `
		FROM search_analytics
		WHERE last_searched >= $1
		ORDER BY weekly_searches DESC, trending_score DESC, keyword
		LIMIT $2`

	popularSQL = `SELECT ` + columns + `
		FROM search_analytics
		ORDER BY popularity_score DESC, search_count DESC, keyword
		LIMIT $1`

	cleanupSQL = `
		UPDATE search_analytics
		SET weekly_searches = 0, trending = FALSE, trending_score = 0, updated_at = $2
		WHERE last_searched < $1
		  AND (weekly_searches <> 0 OR trending OR trending_score <> 0)`
)

// Store implements analytics.Store on PostgreSQL. Counters are bumped by a
// single INSERT .. ON CONFLICT; the derived scores follow in a separate
// UPDATE, last write wins.
type Store struct {
	db     database.DBTX
	tracer database.QueryTracer
	now    analytics.Clock
}

var _ analytics.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(c analytics.Clock) Option { return func(s *Store) { s.now = c } }

// WithTracer sets the span and slow-query tracer.
func WithTracer(t database.QueryTracer) Option { return func(s *Store) { s.tracer = t } }

// NewStore creates a PostgreSQL-backed analytics store.
func NewStore(db database.DBTX, opts ...Option) *Store {
	s := &Store{
		db:     db,
		tracer: database.QueryTracer{System: database.SystemPostgres},
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) RecordSearch(ctx context.Context, keyword string, resultCount int, productIDs []string) (err error) {
	kw := analytics.NormalizeKeyword(keyword)
	if kw == "" {
		return analytics.ErrEmptyKeyword
	}
	ctx, end := s.tracer.Start(ctx, "RecordSearch", upsertSearchSQL)
	defer func() { end(err) }()

	now := s.now().UTC()
	ids := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}

	k, err := scan(s.db.QueryRow(ctx, upsertSearchSQL, kw, strings.TrimSpace(keyword), resultCount, now, ids))
	if err != nil {
		return fmt.Errorf("upsert search analytics: %w", err)
	}
	analytics.ApplySearch(k, now)
	return s.writeDerived(ctx, k)
}

func (s *Store) RecordClick(ctx context.Context, keyword, productID string) (err error) {
	kw := analytics.NormalizeKeyword(keyword)
	if kw == "" {
		return analytics.ErrEmptyKeyword
	}
	ctx, end := s.tracer.Start(ctx, "RecordClick", recordClickSQL)
	defer func() { end(err) }()

	now := s.now().UTC()
	k, err := scan(s.db.QueryRow(ctx, recordClickSQL, kw, now, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	analytics.ApplyClick(k, now)
	return s.writeDerived(ctx, k)
}

func (s *Store) writeDerived(ctx context.Context, k *domain.KeywordAnalytics) error {
	_, err := s.db.Exec(ctx, updateDerivedSQL, k.Keyword, k.PopularityScore, k.TrendingScore, k.Trending)
	if err != nil {
		return fmt.Errorf("update derived scores: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, keyword string) (_ *domain.KeywordAnalytics, err error) {
	kw := analytics.NormalizeKeyword(keyword)
	ctx, end := s.tracer.Start(ctx, "GetKeyword", getSQL)
	defer func() { end(err) }()

	k, err := scan(s.db.QueryRow(ctx, getSQL, kw))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("keyword", kw)
	}
	if err != nil {
		return nil, fmt.Errorf("get keyword: %w", err)
	}
	return k, nil
}

func (s *Store) Trending(ctx context.Context, limit int) (_ []domain.KeywordAnalytics, err error) {
	ctx, end := s.tracer.Start(ctx, "TrendingKeywords", trendingSQL)
	defer func() { end(err) }()

	return s.list(ctx, "list trending keywords", trendingSQL, s.now().UTC().Add(-analytics.TrendingWindow), limitArg(limit))
}

func (s *Store) Popular(ctx context.Context, limit int) (_ []domain.KeywordAnalytics, err error) {
	ctx, end := s.tracer.Start(ctx, "PopularKeywords", popularSQL)
	defer func() { end(err) }()

	return s.list(ctx, "list popular keywords", popularSQL, limitArg(limit))
}

func (s *Store) Cleanup(ctx context.Context) (_ int, err error) {
	ctx, end := s.tracer.Start(ctx, "CleanupKeywords", cleanupSQL)
	defer func() { end(err) }()

	now := s.now().UTC()
	tag, err := s.db.Exec(ctx, cleanupSQL, now.Add(-analytics.StaleAfter), now)
	if err != nil {
		return 0, fmt.Errorf("cleanup keywords: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]domain.KeywordAnalytics, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.KeywordAnalytics{}
	for rows.Next() {
		k, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}
	return out, nil
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no
// limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func scan(row pgx.Row) (*domain.KeywordAnalytics, error) {
	var k domain.KeywordAnalytics
	err := row.Scan(
		&k.Keyword, &k.OriginalKeyword, &k.SearchCount, &k.ClickCount, &k.ResultCount,
		&k.WeeklySearches, &k.LastSearched, &k.PopularityScore, &k.TrendingScore, &k.Trending,
		&k.RelatedProducts, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if k.RelatedProducts == nil {
		k.RelatedProducts = []string{}
	}
	return &k, nil
}
