// Package redis is a Redis-backed analytics.Store.
//
// Each keyword is a hash under "<prefix>kw:<keyword>" whose counters are
// bumped with HINCRBY inside a MULTI block. Related products live in a set
// next to it. Two sorted sets index keywords by last search time and by
// popularity so trending, popular and cleanup never scan the keyspace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/domain"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "search:analytics:"

const (
	fKeyword        = "keyword"
	fOriginal       = "original_keyword"
	fSearchCount    = "search_count"
	fClickCount     = "click_count"
	fResultCount    = "result_count"
	fWeeklySearches = "weekly_searches"
	fLastSearched   = "last_searched"
	fPopularity     = "popularity_score"
	fTrendingScore  = "trending_score"
	fTrending       = "trending"
	fCreatedAt      = "created_at"
	fUpdatedAt      = "updated_at"
)

const (
	idxLastSearched = "idx:last_searched"
	idxPopularity   = "idx:popularity"
	timeLayout      = time.RFC3339Nano
)

// Store implements analytics.Store on Redis.
type Store struct {
	client redis.Cmdable
	prefix string
	now    analytics.Clock
}

var _ analytics.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(p string) Option { return func(s *Store) { s.prefix = p } }

// WithClock replaces time.Now.
func WithClock(c analytics.Clock) Option { return func(s *Store) { s.now = c } }

// NewStore creates a Redis-backed store.
func NewStore(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) key(keyword string) string     { return s.prefix + "kw:" + keyword }
func (s *Store) related(keyword string) string { return s.prefix + "kw:" + keyword + ":related" }
func (s *Store) index(name string) string      { return s.prefix + name }

func (s *Store) RecordSearch(ctx context.Context, keyword string, resultCount int, productIDs []string) error {
	kw := analytics.NormalizeKeyword(keyword)
	if kw == "" {
		return analytics.ErrEmptyKeyword
	}
	now := s.now().UTC()
	stamp := now.Format(timeLayout)
	key := s.key(kw)

	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, fKeyword, kw)
	pipe.HSetNX(ctx, key, fOriginal, strings.TrimSpace(keyword))
	pipe.HSetNX(ctx, key, fCreatedAt, stamp)
	pipe.HIncrBy(ctx, key, fSearchCount, 1)
	pipe.HIncrBy(ctx, key, fWeeklySearches, 1)
	pipe.HSet(ctx, key, fResultCount, resultCount, fLastSearched, stamp, fUpdatedAt, stamp)
	if ids := nonEmpty(productIDs); len(ids) > 0 {
		pipe.SAdd(ctx, s.related(kw), ids...)
	}
	pipe.ZAdd(ctx, s.index(idxLastSearched), redis.Z{Score: unix(now), Member: kw})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record search: %w", err)
	}

	return s.recompute(ctx, kw, now, analytics.ApplySearch)
}

func (s *Store) RecordClick(ctx context.Context, keyword, productID string) error {
	kw := analytics.NormalizeKeyword(keyword)
	if kw == "" {
		return analytics.ErrEmptyKeyword
	}
	key := s.key(kw)

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis record click: %w", err)
	}
	if n == 0 {
		return nil
	}

	now := s.now().UTC()
	stamp := now.Format(timeLayout)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, fClickCount, 1)
	pipe.HSet(ctx, key, fLastSearched, stamp, fUpdatedAt, stamp)
	if productID != "" {
		pipe.SAdd(ctx, s.related(kw), productID)
	}
	pipe.ZAdd(ctx, s.index(idxLastSearched), redis.Z{Score: unix(now), Member: kw})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record click: %w", err)
	}

	return s.recompute(ctx, kw, now, analytics.ApplyClick)
}

// recompute reads the counters back and writes the derived fields. A
// concurrent writer may overwrite them; the next write corrects it.
func (s *Store) recompute(ctx context.Context, kw string, now time.Time, apply func(*domain.KeywordAnalytics, time.Time)) error {
	k, err := s.load(ctx, kw, false)
	if err != nil {
		return err
	}
	apply(k, now)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.key(kw),
		fPopularity, formatFloat(k.PopularityScore),
		fTrendingScore, formatFloat(k.TrendingScore),
		fTrending, strconv.FormatBool(k.Trending),
	)
	pipe.ZAdd(ctx, s.index(idxPopularity), redis.Z{Score: k.PopularityScore, Member: kw})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis recompute %q: %w", kw, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, keyword string) (*domain.KeywordAnalytics, error) {
	return s.load(ctx, analytics.NormalizeKeyword(keyword), true)
}

func (s *Store) Trending(ctx context.Context, limit int) ([]domain.KeywordAnalytics, error) {
	cutoff := s.now().Add(-analytics.TrendingWindow)
	members, err := s.client.ZRangeByScore(ctx, s.index(idxLastSearched), &redis.ZRangeBy{
		Min: strconv.FormatFloat(unix(cutoff), 'f', -1, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis trending: %w", err)
	}

	out, err := s.loadAll(ctx, members)
	if err != nil {
		return nil, err
	}
	analytics.SortTrending(out)
	return analytics.Truncate(out, limit), nil
}

// Popular reads the top of the popularity index. Ties at the cut are
// resolved among the fetched members only.
func (s *Store) Popular(ctx context.Context, limit int) ([]domain.KeywordAnalytics, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := s.client.ZRevRange(ctx, s.index(idxPopularity), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis popular: %w", err)
	}

	out, err := s.loadAll(ctx, members)
	if err != nil {
		return nil, err
	}
	analytics.SortPopular(out)
	return analytics.Truncate(out, limit), nil
}

func (s *Store) Cleanup(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-analytics.StaleAfter)
	members, err := s.client.ZRangeByScore(ctx, s.index(idxLastSearched), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(unix(cutoff), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis cleanup: %w", err)
	}

	stamp := s.now().UTC().Format(timeLayout)
	n := 0
	for _, kw := range members {
		k, err := s.load(ctx, kw, false)
		if err != nil {
			return n, err
		}
		if !analytics.Reset(k) {
			continue
		}
		err = s.client.HSet(ctx, s.key(kw),
			fWeeklySearches, 0,
			fTrending, "false",
			fTrendingScore, "0",
			fUpdatedAt, stamp,
		).Err()
		if err != nil {
			return n, fmt.Errorf("redis cleanup %q: %w", kw, err)
		}
		n++
	}
	return n, nil
}

func (s *Store) loadAll(ctx context.Context, keywords []string) ([]domain.KeywordAnalytics, error) {
	out := make([]domain.KeywordAnalytics, 0, len(keywords))
	for _, kw := range keywords {
		k, err := s.load(ctx, kw, false)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, nil
}

func (s *Store) load(ctx context.Context, kw string, withRelated bool) (*domain.KeywordAnalytics, error) {
	fields, err := s.client.HGetAll(ctx, s.key(kw)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get keyword %q: %w", kw, err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NotFound("keyword", kw)
	}

	k, err := decode(fields)
	if err != nil {
		return nil, fmt.Errorf("decode keyword %q: %w", kw, err)
	}
	k.RelatedProducts = []string{}
	if withRelated {
		ids, err := s.client.SMembers(ctx, s.related(kw)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis related products %q: %w", kw, err)
		}
		slices.Sort(ids)
		k.RelatedProducts = ids
	}
	return k, nil
}

func decode(f map[string]string) (*domain.KeywordAnalytics, error) {
	k := &domain.KeywordAnalytics{
		Keyword:         f[fKeyword],
		OriginalKeyword: f[fOriginal],
		Trending:        f[fTrending] == "true",
	}
	var errs []error
	parseInt := func(name string) int64 {
		v, ok := f[name]
		if !ok {
			return 0
		}
		n, err := strconv.ParseInt(v, 10, 64)
		errs = append(errs, err)
		return n
	}
	parseFloat := func(name string) float64 {
		v, ok := f[name]
		if !ok {
			return 0
		}
		n, err := strconv.ParseFloat(v, 64)
		errs = append(errs, err)
		return n
	}
	parseTime := func(name string) time.Time {
		v, ok := f[name]
		if !ok {
			return time.Time{}
		}
		t, err := time.Parse(timeLayout, v)
		errs = append(errs, err)
		return t
	}

	k.SearchCount = parseInt(fSearchCount)
	k.ClickCount = parseInt(fClickCount)
	k.ResultCount = int(parseInt(fResultCount))
	k.WeeklySearches = parseInt(fWeeklySearches)
	k.PopularityScore = parseFloat(fPopularity)
	k.TrendingScore = parseFloat(fTrendingScore)
	k.LastSearched = parseTime(fLastSearched)
	k.CreatedAt = parseTime(fCreatedAt)
	k.UpdatedAt = parseTime(fUpdatedAt)
	return k, errors.Join(errs...)
}

func nonEmpty(ids []string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
