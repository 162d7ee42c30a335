package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/pkg/httpclient"
)

const serviceName = "product-service"

// FeedPageSize is the page size requested from the product feed.
const FeedPageSize = 100

// Client calls the product service. Pass a circuit-breaker Doer so an
// unhealthy catalog fails fast.
type Client struct {
	doer    httpclient.Doer
	baseURL string
	logger  *slog.Logger
}

var _ CategoryLookup = (*Client)(nil)

// NewClient creates a product service client rooted at baseURL.
func NewClient(baseURL string, doer httpclient.Doer, logger *slog.Logger) *Client {
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// FindCategories asks the product service for active categories matching
// terms.
func (c *Client) FindCategories(ctx context.Context, terms []string, limit int) ([]Category, error) {
	q := url.Values{}
	q.Set("search", strings.Join(terms, ","))
	q.Set("active", "true")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Data []Category `json:"data"`
	}
	if err := httpclient.GetJSON(ctx, c.doer, c.baseURL+"/api/v1/categories?"+q.Encode(), serviceName, &resp); err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	if resp.Data == nil {
		resp.Data = []Category{}
	}
	return resp.Data, nil
}

// productPage is one page of the product feed.
type productPage struct {
	Data       []json.RawMessage `json:"data"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

// EachPage walks the product feed page by page and calls fn with the
// products of each page. Items that do not decode, or have no id, are
// skipped with a warning. Walking stops at the last page, on an empty page,
// or on the first error.
func (c *Client) EachPage(ctx context.Context, fn func([]domain.SearchableProduct) error) error {
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(FeedPageSize))

		var resp productPage
		if err := httpclient.GetJSON(ctx, c.doer, c.baseURL+"/api/v1/products?"+q.Encode(), serviceName, &resp); err != nil {
			return fmt.Errorf("fetch products page %d: %w", page, err)
		}
		if len(resp.Data) == 0 {
			return nil
		}

		products := make([]domain.SearchableProduct, 0, len(resp.Data))
		for i, raw := range resp.Data {
			var p domain.SearchableProduct
			if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
				c.logger.WarnContext(ctx, "skipping malformed product in feed",
					slog.Int("page", page),
					slog.Int("index", i),
				)
				continue
			}
			products = append(products, p)
		}
		if err := fn(products); err != nil {
			return err
		}
		if page >= resp.TotalPages {
			return nil
		}
	}
}
