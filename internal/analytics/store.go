package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/utafrali/shopsearch/internal/domain"
)

// ErrEmptyKeyword is returned for keywords that are blank after
// normalization.
var ErrEmptyKeyword = errors.New("analytics: empty keyword")

// Writer accepts search and click events. Stores apply them; the Kafka
// publisher forwards them to the analytics consumer.
type Writer interface {
	// RecordSearch upserts keyword, counting one search that returned
	// resultCount products, and unions productIDs into the related set.
	RecordSearch(ctx context.Context, keyword string, resultCount int, productIDs []string) error

	// RecordClick counts a click on keyword. Unknown keywords are ignored.
	RecordClick(ctx context.Context, keyword, productID string) error
}

// Store persists KeywordAnalytics records, one per normalized keyword.
//
// Counters are incremented atomically by the backing store. The derived
// scores are recomputed after the increment and written last-write-wins;
// concurrent writers may briefly leave them stale.
type Store interface {
	Writer

	// Get returns one record or an error wrapping apperrors.ErrNotFound.
	Get(ctx context.Context, keyword string) (*domain.KeywordAnalytics, error)

	// Trending returns keywords searched within TrendingWindow, ordered by
	// SortTrending.
	Trending(ctx context.Context, limit int) ([]domain.KeywordAnalytics, error)

	// Popular returns all keywords ordered by SortPopular.
	Popular(ctx context.Context, limit int) ([]domain.KeywordAnalytics, error)

	// Cleanup resets the weekly window of keywords silent for StaleAfter
	// and returns how many records changed. Running it twice is harmless.
	Cleanup(ctx context.Context) (int, error)
}

// Clock returns the current time. Stores take one so tests can pin it.
type Clock func() time.Time
