// Command seed populates a running search service with a synthetic catalog
// through its bulk indexing endpoint.
//
// Run: SEED_COUNT=10000 go run ./cmd/seed
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/utafrali/shopsearch/internal/service"
	pkgconfig "github.com/utafrali/shopsearch/pkg/config"
	"github.com/utafrali/shopsearch/pkg/httpclient"
	"github.com/utafrali/shopsearch/pkg/logger"
)

const serviceName = "search-service"

// Config holds the seed settings, read from SEED_* variables.
type Config struct {
	SearchURL string        `env:"SEARCH_URL" envDefault:"http://localhost:8010"`
	Count     int           `env:"COUNT" envDefault:"10000"`
	BatchSize int           `env:"BATCH_SIZE" envDefault:"500"`
	Seed      uint64        `env:"RANDOM_SEED" envDefault:"42"`
	Timeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := pkgconfig.LoadWithPrefix(&cfg, "SEED_"); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > service.MaxBulkSize {
		return fmt.Errorf("SEED_BATCH_SIZE must be between 1 and %d, got %d", service.MaxBulkSize, cfg.BatchSize)
	}

	log := logger.New("search-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.Timeout
	s := &seeder{
		doer:    httpclient.New(httpCfg),
		bulkURL: strings.TrimRight(cfg.SearchURL, "/") + "/api/v1/search/bulk",
		logger:  log,
	}

	start := time.Now()
	n, err := s.seed(ctx, generateProducts(cfg.Count, cfg.Seed), cfg.BatchSize)
	if err != nil {
		return err
	}
	log.Info("seed complete",
		slog.Int("indexed", n),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// seeder posts products to the bulk endpoint in batches.
type seeder struct {
	doer    httpclient.Doer
	bulkURL string
	logger  *slog.Logger
}

func (s *seeder) seed(ctx context.Context, products []service.IndexProductInput, batchSize int) (int, error) {
	total := 0
	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		n, err := s.postBatch(ctx, products[start:end])
		if err != nil {
			return total, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		total += n
		s.logger.Info("batch indexed",
			slog.Int("indexed", total),
			slog.Int("of", len(products)),
		)
	}
	return total, nil
}

func (s *seeder) postBatch(ctx context.Context, batch []service.IndexProductInput) (int, error) {
	body, err := json.Marshal(map[string]any{"products": batch})
	if err != nil {
		return 0, fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.bulkURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("post batch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Data struct {
			Indexed int `json:"indexed"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.Data.Indexed, nil
}
