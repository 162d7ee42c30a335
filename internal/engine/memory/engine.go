// Package memory is an in-process ProductIndex.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/filter"
	"github.com/utafrali/shopsearch/internal/relevance"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

// Engine keeps products in a map guarded by a sync.RWMutex and evaluates
// predicates with the compiled filter matcher. Unsorted results come back
// in id order so repeated queries are stable.
type Engine struct {
	mu       sync.RWMutex
	products map[string]domain.SearchableProduct
}

var _ engine.ProductIndex = (*Engine)(nil)

// New creates an empty in-memory index.
func New() *Engine {
	return &Engine{products: make(map[string]domain.SearchableProduct)}
}

// Index adds or updates a single product.
func (e *Engine) Index(_ context.Context, product *domain.SearchableProduct) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.products[product.ID] = *product
	return nil
}

// BulkIndex adds or updates multiple products.
func (e *Engine) BulkIndex(_ context.Context, products []domain.SearchableProduct) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range products {
		e.products[products[i].ID] = products[i]
	}
	return nil
}

// Delete removes a product by id.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.products, id)
	return nil
}

// Get returns a copy of one product.
func (e *Engine) Get(_ context.Context, id string) (*domain.SearchableProduct, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

// Len reports the number of indexed products.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.products)
}

// Find evaluates pred over every product.
func (e *Engine) Find(_ context.Context, pred filter.Predicate, opts engine.FindOptions) (*engine.FindResult, error) {
	matched, err := e.match(pred)
	if err != nil {
		return nil, err
	}
	relevance.Sort(matched, opts.SortBy)

	total := len(matched)
	offset := min(max(opts.Offset, 0), total)
	end := total
	if opts.Limit > 0 {
		end = min(offset+opts.Limit, total)
	}

	return &engine.FindResult{
		Products: matched[offset:end],
		Total:    total,
	}, nil
}

// Facets summarises every product matching pred.
func (e *Engine) Facets(_ context.Context, pred filter.Predicate) (*domain.Facets, error) {
	matched, err := e.match(pred)
	if err != nil {
		return nil, err
	}
	return engine.FacetsOf(matched), nil
}

func (e *Engine) match(pred filter.Predicate) ([]domain.SearchableProduct, error) {
	m, err := filter.Compile(pred)
	if err != nil {
		return nil, fmt.Errorf("memory engine: %w", err)
	}

	e.mu.RLock()
	matched := make([]domain.SearchableProduct, 0)
	for _, p := range e.products {
		if m(&p) {
			matched = append(matched, p)
		}
	}
	e.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}
