package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/shopsearch/internal/analytics"
	analyticspostgres "github.com/utafrali/shopsearch/internal/analytics/postgres"
	analyticsredis "github.com/utafrali/shopsearch/internal/analytics/redis"
	"github.com/utafrali/shopsearch/internal/catalog"
	"github.com/utafrali/shopsearch/internal/config"
	"github.com/utafrali/shopsearch/internal/engine"
	esengine "github.com/utafrali/shopsearch/internal/engine/elasticsearch"
	"github.com/utafrali/shopsearch/internal/engine/memory"
	"github.com/utafrali/shopsearch/internal/event"
	handler "github.com/utafrali/shopsearch/internal/handler/http"
	"github.com/utafrali/shopsearch/internal/history"
	historypostgres "github.com/utafrali/shopsearch/internal/history/postgres"
	"github.com/utafrali/shopsearch/internal/scheduler"
	"github.com/utafrali/shopsearch/internal/service"
	"github.com/utafrali/shopsearch/internal/suggest"
	"github.com/utafrali/shopsearch/migrations"
	"github.com/utafrali/shopsearch/pkg/database"
	"github.com/utafrali/shopsearch/pkg/health"
	"github.com/utafrali/shopsearch/pkg/httpclient"
	pkgkafka "github.com/utafrali/shopsearch/pkg/kafka"
	"github.com/utafrali/shopsearch/pkg/middleware"
	"github.com/utafrali/shopsearch/pkg/tracing"
)

const (
	serviceName    = "search-service"
	serviceVersion = "1.0.0"

	// startupTimeout bounds connecting to backing services, retries included.
	startupTimeout = 30 * time.Second

	idempotencyPrefix = "search:idempotency:"
)

// App wires together all dependencies and runs the search service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	producer *pkgkafka.Producer

	search    *service.SearchService
	recorder  *analytics.Recorder
	scheduler *scheduler.Scheduler
	consumers []*pkgkafka.Consumer

	httpServer       *http.Server
	shutdownTracing  func(context.Context) error
	kafkaMetrics     *pkgkafka.Metrics
	idempotencyStore pkgkafka.IdempotencyStore
	dlqWriter        pkgkafka.MessageWriter
	dlq              *pkgkafka.DLQProducer
}

// NewApp creates a new application instance, initializing all dependencies.
// Resources opened before a failure are released.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.release(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdownTracing = shutdownTracing

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.NewHandler()

	// Search engine.
	var idx engine.ProductIndex
	switch cfg.SearchEngine {
	case config.EngineElasticsearch:
		esEng, err := esengine.New(ctx, cfg.ElasticsearchURL, cfg.ElasticsearchIndex, logger)
		if err != nil {
			return fmt.Errorf("init elasticsearch engine: %w", err)
		}
		healthHandler.Register("elasticsearch", esEng.Ping)
		idx = esEng
		logger.Info("elasticsearch search engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.ElasticsearchIndex),
		)
	default:
		idx = memory.New()
		logger.Info("in-memory search engine initialized")
	}

	if err := a.connectStores(ctx, reg, healthHandler); err != nil {
		return err
	}

	if cfg.KafkaEnabled {
		a.kafkaMetrics = pkgkafka.NewMetrics(reg)
		a.producer = pkgkafka.NewProducer(
			pkgkafka.NewWriter(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}),
			cfg.KafkaBrokers, a.kafkaMetrics, logger,
		)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)

		a.dlqWriter = pkgkafka.NewWriter(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers})
		a.dlq = pkgkafka.NewDLQProducer(a.dlqWriter, logger)

		if a.redis != nil {
			a.idempotencyStore = pkgkafka.NewRedisIdempotencyStore(a.redis, idempotencyPrefix, cfg.KafkaIdempotencyTTL)
		} else {
			a.idempotencyStore = pkgkafka.NewMemoryIdempotencyStore(cfg.KafkaIdempotencyTTL)
		}
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Analytics: the store serves listings, the recorder takes writes off
	// the request path and hands them to the store or to Kafka.
	store, err := a.analyticsStore()
	if err != nil {
		return err
	}
	var writer analytics.Writer = store
	if cfg.AnalyticsPipeline == config.PipelineKafka {
		writer = event.NewAnalyticsPublisher(a.producer)
		analyticsConsumer := event.NewAnalyticsConsumer(store, logger)
		a.addConsumer(cfg.KafkaGroupID+"-analytics", event.AnalyticsTopics(), analyticsConsumer.Handle)
	}
	analyticsMetrics := analytics.NewMetrics(reg)
	a.recorder = analytics.NewRecorder(writer, logger,
		analytics.WithTimeout(cfg.AnalyticsWriteTimeout),
		analytics.WithConcurrency(cfg.AnalyticsConcurrency),
		analytics.WithMetrics(analyticsMetrics),
	)

	historyStore := a.historyStore()

	// Product service: category lookups and the reindex feed.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.CatalogTimeout
	doer := httpclient.NewBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultBreakerConfig("product-service"),
		httpclient.NewBreakerMetrics(reg),
		logger,
	)
	catalogClient := catalog.NewClient(cfg.ProductServiceURL, doer, logger)
	categories := catalog.Fallback{
		Primary:   catalogClient,
		Secondary: catalog.NewIndexLookup(idx),
		Logger:    logger,
	}

	// Services.
	a.search = service.NewSearchService(idx, store, a.recorder, logger,
		service.WithHistory(historyStore),
		service.WithMetrics(service.NewMetrics(reg)),
		service.WithMaxCandidates(cfg.MaxCandidates),
		service.WithFallbackLimit(cfg.FallbackLimit),
		service.WithProductFeed(catalogClient),
	)
	analyticsService := service.NewAnalyticsService(store, a.recorder, analyticsMetrics, logger)
	historyService := service.NewHistoryService(historyStore, idx, logger)
	suggestions := suggest.New(idx, store, categories, logger)

	a.scheduler = scheduler.New(analyticsService, cfg.AnalyticsCleanupSpec, cfg.AnalyticsCleanupTimeout, logger)

	if cfg.KafkaEnabled {
		productConsumer := event.NewProductConsumer(a.search, logger)
		a.addConsumer(cfg.KafkaGroupID, event.ProductTopics(), productConsumer.Handle)
		logger.Info("kafka consumers initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Int("consumer_count", len(a.consumers)),
		)
	}

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	router := handler.NewRouter(handler.Services{
		Search:    a.search,
		Analytics: analyticsService,
		History:   historyService,
		Suggest:   suggestions,
	}, healthHandler, handler.RouterConfig{
		CORS:            cors,
		RequestTimeout:  cfg.HTTPRequestTimeout,
		ListingCacheTTL: cfg.ListingCacheTTL(),
		PprofCIDRs:      cfg.PprofAllowedCIDRs,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		Registry:        reg,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTPRequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// connectStores opens the PostgreSQL pool and the Redis client when a
// configured store needs them.
func (a *App) connectStores(ctx context.Context, reg prometheus.Registerer, healthHandler *health.Handler) error {
	cfg, logger := a.cfg, a.logger

	if cfg.NeedsPostgres() {
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		if cfg.RunMigrations {
			if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		reg.MustRegister(database.NewPoolCollector(pool))
		healthHandler.RegisterOptional("postgres", pool.Ping)
	}

	if cfg.NeedsRedis() {
		client, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
		healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	return nil
}

func (a *App) analyticsStore() (analytics.Store, error) {
	switch a.cfg.AnalyticsStore {
	case config.StoreRedis:
		return analyticsredis.NewStore(a.redis, analyticsredis.WithPrefix(a.cfg.AnalyticsRedisPrefix)), nil
	case config.StorePostgres:
		return analyticspostgres.NewStore(a.pool, analyticspostgres.WithTracer(a.queryTracer())), nil
	case config.StoreMemory:
		return analytics.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown analytics store %q", a.cfg.AnalyticsStore)
	}
}

func (a *App) historyStore() history.Store {
	if a.cfg.HistoryStore == config.StorePostgres {
		return historypostgres.NewStore(a.pool, a.queryTracer(), time.Now)
	}
	return history.NewMemoryStore(time.Now)
}

func (a *App) queryTracer() database.QueryTracer {
	return database.QueryTracer{
		System:        database.SystemPostgres,
		SlowThreshold: a.cfg.SlowQueryThreshold,
		Logger:        a.logger,
	}
}

// addConsumer builds a de-duplicating consumer group over topics whose
// exhausted messages go to the dead-letter topics.
func (a *App) addConsumer(group string, topics []string, h pkgkafka.Handler) {
	reader := pkgkafka.NewReader(pkgkafka.ConsumerConfig{
		Brokers: a.cfg.KafkaBrokers,
		GroupID: group,
		Topics:  topics,
	})
	c := pkgkafka.NewConsumer(reader, group,
		pkgkafka.IdempotentHandler(a.idempotencyStore, h, a.kafkaMetrics, a.logger),
		a.logger,
		pkgkafka.WithDeadLetter(a.dlq),
		pkgkafka.WithConsumerMetrics(a.kafkaMetrics),
	)
	a.consumers = append(a.consumers, c)
}

// Handler returns the HTTP handler served by Run.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server, the cleanup schedule and Kafka consumers,
// blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start analytics cleanup: %w", err)
	}

	// Start Kafka consumers in background goroutines.
	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components: first the inbound traffic, then
// background work, then the connections that work depends on.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.release(shutdownCtx))

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release stops background work and closes connections. It tolerates a
// partially initialized App.
func (a *App) release(ctx context.Context) error {
	var errs []error
	logErr := func(what string, err error) {
		if err != nil {
			a.logger.Error(what+" error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	for _, c := range a.consumers {
		logErr("kafka consumer close", c.Close())
	}
	if a.search != nil {
		a.search.Close()
	}
	// The recorder may still publish, so it drains before the producer closes.
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.producer != nil {
		logErr("kafka producer close", a.producer.Close())
	}
	if a.dlqWriter != nil {
		logErr("kafka dead-letter writer close", a.dlqWriter.Close())
	}
	if a.redis != nil {
		logErr("redis close", a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.shutdownTracing != nil {
		logErr("tracing shutdown", a.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}
