// Package config loads the search service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/shopsearch/pkg/config"
	"github.com/utafrali/shopsearch/pkg/database"
)

// Search engine backends.
const (
	EngineMemory        = "memory"
	EngineElasticsearch = "elasticsearch"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Analytics pipelines: direct writes from the API process, or events
// through Kafka applied by the analytics consumer.
const (
	PipelineDirect = "direct"
	PipelineKafka  = "kafka"
)

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort            int           `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	HTTPRequestTimeout  time.Duration `env:"SEARCH_HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout     time.Duration `env:"SEARCH_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	ListingCacheSeconds int           `env:"SEARCH_LISTING_CACHE_SECONDS" envDefault:"60"`
	RateLimitRPS        float64       `env:"SEARCH_RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst      int           `env:"SEARCH_RATE_LIMIT_BURST" envDefault:"20"`

	// Search engine selection (elasticsearch or memory)
	SearchEngine       string `env:"SEARCH_ENGINE" envDefault:"elasticsearch"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"ecommerce_products"`

	// Search tuning
	MaxCandidates int `env:"SEARCH_MAX_CANDIDATES" envDefault:"1000"`
	FallbackLimit int `env:"SEARCH_FALLBACK_LIMIT" envDefault:"20"`

	// Analytics
	AnalyticsStore          string        `env:"ANALYTICS_STORE" envDefault:"redis"`
	AnalyticsPipeline       string        `env:"ANALYTICS_PIPELINE" envDefault:"direct"`
	AnalyticsWriteTimeout   time.Duration `env:"ANALYTICS_WRITE_TIMEOUT" envDefault:"5s"`
	AnalyticsConcurrency    int           `env:"ANALYTICS_MAX_IN_FLIGHT" envDefault:"64"`
	AnalyticsCleanupSpec    string        `env:"ANALYTICS_CLEANUP_SCHEDULE" envDefault:"@every 1h"`
	AnalyticsCleanupTimeout time.Duration `env:"ANALYTICS_CLEANUP_TIMEOUT" envDefault:"1m"`
	AnalyticsRedisPrefix    string        `env:"ANALYTICS_REDIS_PREFIX" envDefault:"search:analytics:"`

	// Per-user history
	HistoryStore string `env:"HISTORY_STORE" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB   string `env:"SEARCH_DB_NAME" envDefault:"search_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	RunMigrations         bool  `env:"DB_RUN_MIGRATIONS" envDefault:"true"`

	// Slow query logging
	SlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"500ms"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled        bool          `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID        string        `env:"KAFKA_GROUP_ID" envDefault:"search-service"`
	KafkaIdempotencyTTL time.Duration `env:"KAFKA_IDEMPOTENCY_TTL" envDefault:"24h"`

	// Product service, used for reindexing and the category catalog
	ProductServiceURL string        `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8080"`
	CatalogTimeout    time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation). Empty disables them.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.HTTPPort >= 1 && c.HTTPPort <= 65535, "invalid HTTP port: %d", c.HTTPPort)
	check(slices.Contains([]string{EngineMemory, EngineElasticsearch}, c.SearchEngine),
		"SEARCH_ENGINE must be memory or elasticsearch, got %q", c.SearchEngine)
	check(slices.Contains([]string{StoreMemory, StoreRedis, StorePostgres}, c.AnalyticsStore),
		"ANALYTICS_STORE must be memory, redis or postgres, got %q", c.AnalyticsStore)
	check(slices.Contains([]string{StoreMemory, StorePostgres}, c.HistoryStore),
		"HISTORY_STORE must be memory or postgres, got %q", c.HistoryStore)
	check(slices.Contains([]string{PipelineDirect, PipelineKafka}, c.AnalyticsPipeline),
		"ANALYTICS_PIPELINE must be direct or kafka, got %q", c.AnalyticsPipeline)

	if c.AnalyticsPipeline == PipelineKafka {
		check(c.KafkaEnabled, "ANALYTICS_PIPELINE=kafka requires KAFKA_ENABLED=true")
		check(c.AnalyticsStore != StoreMemory,
			"ANALYTICS_PIPELINE=kafka requires a shared ANALYTICS_STORE, got %q", c.AnalyticsStore)
	}
	if c.KafkaEnabled {
		check(len(c.KafkaBrokers) > 0, "KAFKA_BROKERS is required when KAFKA_ENABLED=true")
		check(c.KafkaGroupID != "", "KAFKA_GROUP_ID is required when KAFKA_ENABLED=true")
	}
	if c.SearchEngine == EngineElasticsearch {
		check(c.ElasticsearchURL != "", "ELASTICSEARCH_URL is required")
		check(c.ElasticsearchIndex != "", "ELASTICSEARCH_INDEX is required")
	}
	if c.NeedsPostgres() {
		check(c.PostgresHost != "", "POSTGRES_HOST is required")
		check(c.PostgresUser != "", "POSTGRES_USER is required")
	}

	check(c.MaxCandidates > 0, "SEARCH_MAX_CANDIDATES must be positive, got %d", c.MaxCandidates)
	check(c.FallbackLimit > 0, "SEARCH_FALLBACK_LIMIT must be positive, got %d", c.FallbackLimit)
	check(c.AnalyticsWriteTimeout > 0, "ANALYTICS_WRITE_TIMEOUT must be positive")
	check(c.AnalyticsConcurrency > 0, "ANALYTICS_MAX_IN_FLIGHT must be positive, got %d", c.AnalyticsConcurrency)
	check(c.AnalyticsCleanupSpec != "", "ANALYTICS_CLEANUP_SCHEDULE is required")
	check(c.CatalogTimeout > 0, "CATALOG_TIMEOUT must be positive")
	check(c.ListingCacheSeconds >= 0, "SEARCH_LISTING_CACHE_SECONDS must not be negative")
	check(c.RateLimitRPS >= 0, "SEARCH_RATE_LIMIT_RPS must not be negative")
	if c.RateLimitRPS > 0 {
		check(c.RateLimitBurst > 0, "SEARCH_RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst)
	}
	check(c.OTELSampleRate >= 0 && c.OTELSampleRate <= 1.0,
		"OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)

	return errors.Join(errs...)
}

// NeedsPostgres reports whether any store is backed by PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.AnalyticsStore == StorePostgres || c.HistoryStore == StorePostgres
}

// NeedsRedis reports whether Redis is required: for the analytics store, or
// for de-duplicating Kafka deliveries.
func (c *Config) NeedsRedis() bool {
	return c.AnalyticsStore == StoreRedis || (c.KafkaEnabled && c.AnalyticsStore != StoreMemory)
}

// Postgres returns the connection settings for database.NewPostgresPool.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the connection settings for database.NewRedisClient.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// ListingCacheTTL is the Cache-Control max-age of keyword listings.
func (c *Config) ListingCacheTTL() time.Duration {
	return time.Duration(c.ListingCacheSeconds) * time.Second
}
