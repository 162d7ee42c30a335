package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/shopsearch/internal/domain"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
	"github.com/utafrali/shopsearch/pkg/slug"
)

// MaxBulkSize is the most products one BulkIndex call accepts.
const MaxBulkSize = 500

// ErrReindexInProgress is returned when Reindex is called while another run
// is still walking the feed.
var ErrReindexInProgress = apperrors.Conflict("reindex already in progress")

// ProductFeed pages through the full product catalog.
type ProductFeed interface {
	EachPage(ctx context.Context, fn func([]domain.SearchableProduct) error) error
}

// IndexProductInput holds the parameters for indexing a product.
type IndexProductInput struct {
	ID            string                `json:"id" validate:"required"`
	Name          string                `json:"name" validate:"required,max=500"`
	Description   string                `json:"description"`
	Brand         string                `json:"brand"`
	Tags          []string              `json:"tags"`
	Category      domain.Category       `json:"category"`
	ColorVariants []domain.ColorVariant `json:"colorVariants" validate:"dive"`
	Price         float64               `json:"price" validate:"gte=0"`
	Stock         int                   `json:"stock" validate:"gte=0"`
	Rating        domain.Rating         `json:"rating"`
	ViewCount     int                   `json:"viewCount" validate:"gte=0"`
	SalesCount    int                   `json:"salesCount" validate:"gte=0"`
	Status        string                `json:"status"`
	ImageURL      string                `json:"imageUrl"`
	CreatedAt     time.Time             `json:"createdAt"`
}

func (in *IndexProductInput) product() domain.SearchableProduct {
	return domain.SearchableProduct{
		ID:            in.ID,
		Name:          in.Name,
		Description:   in.Description,
		Brand:         in.Brand,
		Tags:          in.Tags,
		Category:      in.Category,
		ColorVariants: in.ColorVariants,
		Price:         in.Price,
		Stock:         in.Stock,
		Rating:        in.Rating,
		ViewCount:     in.ViewCount,
		SalesCount:    in.SalesCount,
		Status:        in.Status,
		ImageURL:      in.ImageURL,
		CreatedAt:     in.CreatedAt,
	}
}

// IndexProduct indexes a single product.
func (s *SearchService) IndexProduct(ctx context.Context, input *IndexProductInput) error {
	if strings.TrimSpace(input.ID) == "" {
		return apperrors.InvalidInput("index product: id is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return apperrors.InvalidInput("index product: name is required")
	}

	p := input.product()
	s.prepare(&p)
	if err := s.index.Index(ctx, &p); err != nil {
		return fmt.Errorf("index product: %w", err)
	}

	s.logger.InfoContext(ctx, "product indexed",
		slog.String("product_id", p.ID),
		slog.String("name", p.Name),
	)
	return nil
}

// DeleteProduct removes a product from the index.
func (s *SearchService) DeleteProduct(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("delete product: id is required")
	}

	if err := s.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.logger.InfoContext(ctx, "product deleted from index",
		slog.String("product_id", id),
	)
	return nil
}

// BulkIndex indexes up to MaxBulkSize products and returns how many were
// indexed. Inputs without an id are skipped.
func (s *SearchService) BulkIndex(ctx context.Context, inputs []IndexProductInput) (int, error) {
	if len(inputs) > MaxBulkSize {
		return 0, apperrors.InvalidInput(fmt.Sprintf("bulk index accepts at most %d products", MaxBulkSize))
	}

	products := make([]domain.SearchableProduct, 0, len(inputs))
	for i := range inputs {
		if strings.TrimSpace(inputs[i].ID) == "" {
			continue
		}
		p := inputs[i].product()
		s.prepare(&p)
		products = append(products, p)
	}
	if len(products) == 0 {
		return 0, nil
	}

	if err := s.index.BulkIndex(ctx, products); err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}

	s.logger.InfoContext(ctx, "bulk index completed",
		slog.Int("count", len(products)),
	)
	return len(products), nil
}

// Reindex pages through the product feed and indexes every product. Only
// one run may be active at a time; a concurrent call fails with
// ErrReindexInProgress.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	if err := s.acquireReindex(); err != nil {
		return 0, err
	}
	defer s.reindexing.Store(false)

	return s.reindex(ctx)
}

// StartReindex starts a reindex in the background and returns once the run
// is admitted. The run outlives ctx's cancellation; Close waits for it.
func (s *SearchService) StartReindex(ctx context.Context) error {
	if err := s.acquireReindex(); err != nil {
		return err
	}

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.reindexing.Store(false)
		// Failures are logged by reindex.
		_, _ = s.reindex(runCtx)
	}()
	return nil
}

func (s *SearchService) acquireReindex() error {
	if s.feed == nil {
		return apperrors.Unavailable("product-service", errors.New("no product feed configured"))
	}
	if !s.reindexing.CompareAndSwap(false, true) {
		return ErrReindexInProgress
	}
	return nil
}

func (s *SearchService) reindex(ctx context.Context) (int, error) {
	start := time.Now()
	s.logger.InfoContext(ctx, "reindex started")

	indexed := 0
	err := s.feed.EachPage(ctx, func(products []domain.SearchableProduct) error {
		if len(products) == 0 {
			return nil
		}
		for i := range products {
			s.prepare(&products[i])
		}
		if err := s.index.BulkIndex(ctx, products); err != nil {
			return fmt.Errorf("index page: %w", err)
		}
		indexed += len(products)
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "reindex failed",
			slog.Int("indexed", indexed),
			slog.String("error", err.Error()),
		)
		return indexed, fmt.Errorf("reindex: %w", err)
	}

	s.logger.InfoContext(ctx, "reindex completed",
		slog.Int("indexed", indexed),
		slog.Duration("duration", time.Since(start)),
	)
	return indexed, nil
}

// prepare fills the derived fields of a product before it is stored: stock
// from size variants, the flattened hierarchy, the default status and
// timestamps.
func (s *SearchService) prepare(p *domain.SearchableProduct) {
	now := s.clock().UTC()

	if len(p.ColorVariants) > 0 {
		p.Stock = p.VariantStock()
	}
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	levels := p.Category.Levels()
	if len(p.Category.AllLevels) == 0 {
		for i, name := range levels {
			if name == "" {
				continue
			}
			p.Category.AllLevels = append(p.Category.AllLevels, domain.CategoryLevel{
				Level: i + 1,
				Name:  name,
				Slug:  slug.Generate(name),
			})
		}
	}
	if p.Category.FullPath == "" {
		p.Category.FullPath = slug.Path(levels[:]...)
	}
}
