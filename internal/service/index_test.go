package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopsearch/internal/analytics"
	"github.com/utafrali/shopsearch/internal/catalog"
	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine/memory"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
	"github.com/utafrali/shopsearch/pkg/httpclient"
)

var indexedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newIndexService(opts ...Option) (*SearchService, *memory.Engine) {
	idx := memory.New()
	opts = append([]Option{WithClock(func() time.Time { return indexedAt })}, opts...)
	return NewSearchService(idx, analytics.NewMemoryStore(), &fakeSink{}, newTestLogger(), opts...), idx
}

func TestIndexProduct_FillsDerivedFields(t *testing.T) {
	ctx := context.Background()
	svc, idx := newIndexService()

	input := &IndexProductInput{
		ID:    uuid.New().String(),
		Name:  "Wireless Mouse",
		Brand: "Logitech",
		Price: 29.99,
		Stock: 99,
		Category: domain.Category{
			Main: "Electronics",
			Sub:  "Computer Accessories",
			Type: "Mouse",
		},
		ColorVariants: []domain.ColorVariant{
			{ColorName: "Black", SizeVariants: []domain.SizeVariant{{Stock: 3}}},
			{ColorName: "White", SizeVariants: []domain.SizeVariant{{Stock: 2}, {Stock: 1}}},
		},
	}
	require.NoError(t, svc.IndexProduct(ctx, input))

	got, err := idx.Get(ctx, input.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Stock, "stock is summed over size variants")
	assert.Equal(t, domain.ProductStatusActive, got.Status)
	assert.NotNil(t, got.Tags)
	assert.Equal(t, indexedAt, got.CreatedAt)
	assert.Equal(t, indexedAt, got.UpdatedAt)
	assert.Equal(t, "electronics/computer-accessories/mouse", got.Category.FullPath)
	assert.Equal(t, []domain.CategoryLevel{
		{Level: 1, Name: "Electronics", Slug: "electronics"},
		{Level: 2, Name: "Computer Accessories", Slug: "computer-accessories"},
		{Level: 3, Name: "Mouse", Slug: "mouse"},
	}, got.Category.AllLevels)

	res, err := svc.Search(ctx, domain.SearchQuery{Query: "wireless mouse"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, input.ID, res.Products[0].ID)
}

func TestIndexProduct_RequiresIDAndName(t *testing.T) {
	svc, _ := newIndexService()

	err := svc.IndexProduct(context.Background(), &IndexProductInput{Name: "Test"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "id is required")

	err = svc.IndexProduct(context.Background(), &IndexProductInput{ID: uuid.New().String()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	svc, idx := newIndexService()

	id := uuid.New().String()
	require.NoError(t, svc.IndexProduct(ctx, &IndexProductInput{ID: id, Name: "Temp"}))
	require.NoError(t, svc.DeleteProduct(ctx, id))

	_, err := idx.Get(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteProduct(ctx, ""), apperrors.ErrInvalidInput)
}

func TestBulkIndex(t *testing.T) {
	ctx := context.Background()
	svc, idx := newIndexService()

	n, err := svc.BulkIndex(ctx, []IndexProductInput{
		{ID: "a", Name: "Alpha"},
		{Name: "no id"},
		{ID: "b", Name: "Beta", Status: "draft"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, idx.Len())

	b, err := idx.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "draft", b.Status, "explicit status is kept")
}

func TestBulkIndex_TooMany(t *testing.T) {
	svc, _ := newIndexService()

	_, err := svc.BulkIndex(context.Background(), make([]IndexProductInput, MaxBulkSize+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// feedPage is the paginated response the fake product service returns.
type feedPage struct {
	Data       []map[string]any `json:"data"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
}

func newFeed(url string) *catalog.Client {
	return catalog.NewClient(url, httpclient.New(httpclient.Config{Timeout: 2 * time.Second}), newTestLogger())
}

func TestReindex_IndexesProductsFromRemoteService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(feedPage{
			Data: []map[string]any{
				{
					"id":       "prod-1",
					"name":     "Reindexed Widget",
					"price":    19.99,
					"status":   "active",
					"brand":    "Acme",
					"category": map[string]any{"main": "Home", "sub": "Widgets"},
				},
				{
					"id":    "prod-2",
					"name":  "Reindexed Gadget",
					"price": 29.99,
				},
			},
			TotalCount: 2,
			Page:       1,
			TotalPages: 1,
		})
	}))
	defer srv.Close()

	svc, idx := newIndexService(WithProductFeed(newFeed(srv.URL)))

	n, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	widget, err := idx.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "home/widgets", widget.Category.FullPath)

	res, err := svc.Search(context.Background(), domain.SearchQuery{Query: "reindexed"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestReindex_HandlesMultiplePages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page := r.URL.Query().Get("page")

		var resp feedPage
		switch page {
		case "1":
			resp = feedPage{
				Data:       []map[string]any{{"id": "p1", "name": "Page1 Product"}},
				TotalCount: 2, Page: 1, TotalPages: 2,
			}
		case "2":
			resp = feedPage{
				Data:       []map[string]any{{"id": "p2", "name": "Page2 Product"}},
				TotalCount: 2, Page: 2, TotalPages: 2,
			}
		default:
			resp = feedPage{TotalCount: 2, Page: 3, TotalPages: 2}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	svc, idx := newIndexService(WithProductFeed(newFeed(srv.URL)))

	n, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 2, calls.Load(), "should have fetched exactly 2 pages")
	assert.Equal(t, 2, idx.Len())
}

func TestReindex_SkipsMalformedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"ok","name":"Good"},42,{"name":"missing id"}],"total_count":3,"page":1,"total_pages":1}`))
	}))
	defer srv.Close()

	svc, idx := newIndexService(WithProductFeed(newFeed(srv.URL)))

	n, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, idx.Len())
}

func TestReindex_RemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(feedPage{
			Data:       []map[string]any{{"id": "p1", "name": "First"}},
			TotalCount: 2, Page: 1, TotalPages: 2,
		})
	}))
	defer srv.Close()

	svc, idx := newIndexService(WithProductFeed(newFeed(srv.URL)))

	n, err := svc.Reindex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch products page 2")
	assert.Equal(t, 1, n, "products of earlier pages stay indexed")
	assert.Equal(t, 1, idx.Len())
}

// blockingFeed holds the first page until released.
type blockingFeed struct {
	started chan struct{}
	release chan struct{}
}

func (f *blockingFeed) EachPage(ctx context.Context, fn func([]domain.SearchableProduct) error) error {
	close(f.started)
	select {
	case <-f.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn([]domain.SearchableProduct{{ID: "p1", Name: "Blocked"}})
}

func TestReindex_RejectsConcurrentRuns(t *testing.T) {
	feed := &blockingFeed{started: make(chan struct{}), release: make(chan struct{})}
	svc, _ := newIndexService(WithProductFeed(feed))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Reindex(context.Background())
		done <- err
	}()
	<-feed.started

	_, err := svc.Reindex(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "reindex already in progress")

	close(feed.release)
	require.NoError(t, <-done)

	// The guard is released once the first run finishes.
	feed.started, feed.release = make(chan struct{}), make(chan struct{})
	close(feed.release)
	_, err = svc.Reindex(context.Background())
	require.NoError(t, err)
}

func TestReindex_WithoutFeed(t *testing.T) {
	svc, _ := newIndexService()

	_, err := svc.Reindex(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, 503, apperrors.HTTPStatus(err))
}

func TestStartReindex_RunsInBackground(t *testing.T) {
	feed := &blockingFeed{started: make(chan struct{}), release: make(chan struct{})}
	svc, idx := newIndexService(WithProductFeed(feed))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.StartReindex(ctx))
	<-feed.started
	// Cancelling the request context does not abort the run.
	cancel()

	err := svc.StartReindex(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 409, apperrors.HTTPStatus(err))

	close(feed.release)
	svc.Close()

	p, err := idx.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Blocked", p.Name)
}
