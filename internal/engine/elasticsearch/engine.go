// Package elasticsearch is a ProductIndex backed by an Elasticsearch index.
// Predicates are translated to query DSL; text fields are normalized
// keywords so word-boundary and substring matches behave like the memory
// engine.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/filter"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

// maxWindow bounds unpaged requests to the default index.max_result_window.
const maxWindow = 10000

// Engine is an Elasticsearch-backed implementation of engine.ProductIndex.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

var _ engine.ProductIndex = (*Engine)(nil)

type esHits struct {
	Total struct {
		Value int `json:"value"`
	} `json:"total"`
	Hits []struct {
		Source domain.SearchableProduct `json:"_source"`
	} `json:"hits"`
}

type esSearchResponse struct {
	Hits esHits `json:"hits"`
}

type esBucket struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
}

type esFacetResponse struct {
	Aggregations struct {
		Brands struct {
			Buckets []esBucket `json:"buckets"`
		} `json:"brands"`
		Categories struct {
			Buckets []esBucket `json:"buckets"`
		} `json:"categories"`
		MinPrice struct {
			Value *float64 `json:"value"`
		} `json:"min_price"`
		MaxPrice struct {
			Value *float64 `json:"value"`
		} `json:"max_price"`
		Ratings struct {
			Buckets []esBucket `json:"buckets"`
		} `json:"ratings"`
	} `json:"aggregations"`
}

type esGetResponse struct {
	Found  bool                     `json:"found"`
	Source domain.SearchableProduct `json:"_source"`
}

type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID    string `json:"_id"`
			Error struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// New creates an engine connected to esURL and makes sure the index exists.
// If indexName is empty, DefaultIndexName is used.
func New(ctx context.Context, esURL, indexName string, logger *slog.Logger) (*Engine, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esURL},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	e := &Engine{client: client, indexName: indexName, logger: logger}
	if err := e.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}
	return e, nil
}

// Ping checks whether the cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

func (e *Engine) ensureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.indexName}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	closeBody(res)

	if res.StatusCode == http.StatusOK {
		e.logger.Info("elasticsearch index already exists", slog.String("index", e.indexName))
		return nil
	}

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("create index", res)
	}

	e.logger.Info("elasticsearch index created", slog.String("index", e.indexName))
	return nil
}

// Index adds or updates a single product.
func (e *Engine) Index(ctx context.Context, product *domain.SearchableProduct) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal product: %w", err)
	}

	res, err := e.client.Index(
		e.indexName,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(product.ID),
		e.client.Index.WithRefresh("true"),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("elasticsearch index", res)
	}

	e.logger.Debug("indexed product", slog.String("id", product.ID), slog.String("name", product.Name))
	return nil
}

// BulkIndex adds or updates multiple products using the bulk NDJSON API.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.SearchableProduct) error {
	if len(products) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range products {
		action := map[string]any{"index": map[string]any{"_index": e.indexName, "_id": products[i].ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(products[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh("true"),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk index: %w", err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError("elasticsearch bulk index", res)
	}

	var bulkResp esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}
	if bulkResp.Errors {
		var msgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				msgs = append(msgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk index: partial errors: %s", strings.Join(msgs, "; "))
	}

	e.logger.Info("bulk indexed products", slog.Int("count", len(products)))
	return nil
}

// Delete removes a product. A 404 is ignored.
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(e.indexName, id, e.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete", res)
	}

	e.logger.Debug("deleted product", slog.String("id", id))
	return nil
}

// Get returns one product by id.
func (e *Engine) Get(ctx context.Context, id string) (*domain.SearchableProduct, error) {
	res, err := e.client.Get(e.indexName, id, e.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch get: %w", err)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFound("product", id)
	}
	if res.IsError() {
		return nil, responseError("elasticsearch get", res)
	}

	var doc esGetResponse
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("elasticsearch get: decode response: %w", err)
	}
	if !doc.Found {
		return nil, apperrors.NotFound("product", id)
	}
	return &doc.Source, nil
}

// Find runs the translated predicate with the requested sort and window.
func (e *Engine) Find(ctx context.Context, pred filter.Predicate, opts engine.FindOptions) (*engine.FindResult, error) {
	query, err := translate(pred)
	if err != nil {
		return nil, err
	}

	size := opts.Limit
	if size <= 0 || size > maxWindow {
		size = maxWindow
	}
	body := map[string]any{
		"query":            query,
		"from":             max(opts.Offset, 0),
		"size":             size,
		"sort":             buildSort(opts.SortBy),
		"track_total_hits": true,
	}

	var resp esSearchResponse
	if err := e.search(ctx, "elasticsearch search", body, &resp); err != nil {
		return nil, err
	}

	products := make([]domain.SearchableProduct, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		products = append(products, hit.Source)
	}
	return &engine.FindResult{Products: products, Total: resp.Hits.Total.Value}, nil
}

// Facets aggregates brands, main categories, price bounds and rating
// buckets over the predicate.
func (e *Engine) Facets(ctx context.Context, pred filter.Predicate) (*domain.Facets, error) {
	query, err := translate(pred)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"query": query,
		"size":  0,
		"aggs":  facetAggs(),
	}

	var resp esFacetResponse
	if err := e.search(ctx, "elasticsearch facets", body, &resp); err != nil {
		return nil, err
	}

	aggs := resp.Aggregations
	f := &domain.Facets{Brands: []string{}, Categories: []domain.FacetCount{}}
	for _, b := range aggs.Brands.Buckets {
		f.Brands = append(f.Brands, b.Key)
	}
	for _, b := range aggs.Categories.Buckets {
		f.Categories = append(f.Categories, domain.FacetCount{Name: b.Key, Count: b.DocCount})
	}
	if aggs.MinPrice.Value != nil {
		f.PriceRange.Min = *aggs.MinPrice.Value
	}
	if aggs.MaxPrice.Value != nil {
		f.PriceRange.Max = *aggs.MaxPrice.Value
	}
	var counts [5]int
	for i, b := range aggs.Ratings.Buckets {
		if i < len(counts) {
			counts[i] = b.DocCount
		}
	}
	f.Ratings = engine.RatingBuckets(counts)
	return f, nil
}

// DeleteIndex removes the whole index. A 404 is treated as success.
func (e *Engine) DeleteIndex(ctx context.Context) error {
	res, err := e.client.Indices.Delete([]string{e.indexName}, e.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch delete index: %w", err)
	}
	defer closeBody(res)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("elasticsearch delete index", res)
	}

	e.logger.Info("elasticsearch index deleted", slog.String("index", e.indexName))
	return nil
}

func (e *Engine) search(ctx context.Context, op string, body map[string]any, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal query: %w", op, err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError(op, res)
	}
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func responseError(op string, res *esapi.Response) error {
	var errResp esErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, errResp.Error.Type, errResp.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, res.Status())
}

func closeBody(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
