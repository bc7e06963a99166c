package di

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/repository"
	"FinCast/internal/handler/api"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/scheduler"
	"FinCast/internal/service/alphavantage"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/services/forecast"
	"FinCast/internal/usecase"
	pkgcache "FinCast/pkg/cache"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 10 * time.Second

// ProvideLogger builds the root logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder, or nil when disabled.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(reg)
}

// ProvideRedisClient connects only when the cache or order store needs Redis.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	needed := cfg.Orders.Type == "redis" ||
		cfg.Provider.Cache.Type == "redis" ||
		cfg.Provider.Cache.Type == "layered"
	if !needed {
		return nil, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	client, err := pkgcache.NewRedisClient(ctx,
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache builds the history cache named by provider.cache.type. The
// "none" type returns nil and disables caching.
func ProvideCache(cfg *config.Config, rdb *redis.Client) (pkgcache.Service, func(), error) {
	c := cfg.Provider.Cache
	var svc pkgcache.Service
	switch c.Type {
	case "none":
		return nil, func() {}, nil
	case "memory":
		svc = pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(c.MaxSize),
			pkgcache.WithMemoryDefaultTTL(c.TTL),
		)
	case "redis":
		svc = pkgcache.NewRedisCache(rdb, cfg.Redis.Prefix)
	case "layered":
		svc = pkgcache.NewLayeredCache(
			pkgcache.NewRedisCache(rdb, cfg.Redis.Prefix),
			pkgcache.WithLayeredMemorySize(c.MaxSize),
			pkgcache.WithLayeredMemoryTTL(c.TTL),
		)
	default:
		return nil, nil, fmt.Errorf("unknown cache type %q", c.Type)
	}
	// the redis client itself is closed by its own cleanup
	return svc, func() {
		if c.Type == "memory" || c.Type == "layered" {
			_ = svc.Close()
		}
	}, nil
}

// ProvideClickHouseClient connects only for the clickhouse provider.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Provider.Type != "clickhouse" {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(ch.MaxConnections, ch.MaxConnections/2),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if ch.InitSchema {
		if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema(ch.Database)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideSeriesProvider selects the market-data source and wraps it in the
// history cache when one is configured.
func ProvideSeriesProvider(cfg *config.Config, ch *pkgch.Client, cache pkgcache.Service, l *applogger.Logger) (repository.SeriesProvider, func(), error) {
	var (
		inner   repository.SeriesProvider
		cleanup = func() {}
	)
	switch cfg.Provider.Type {
	case "alphavantage":
		av := cfg.AlphaVantage
		inner = alphavantage.New(av.APIKey,
			alphavantage.WithBaseURL(av.BaseURL),
			alphavantage.WithRateLimit(av.RequestsPerMinute),
			alphavantage.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(av.Timeout))),
			alphavantage.WithLogger(l),
		)
	case "clickhouse":
		s := internalrepo.NewClickHouseSeries(ch, cfg.ClickHouse.Database, cfg.ClickHouse.HistoryLimit)
		s.SetLogger(l)
		inner = s
	case "sqlite":
		s, err := internalrepo.OpenSQLiteSeries(cfg.SQLite.Path, cfg.SQLite.HistoryLimit)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite series: %w", err)
		}
		s.SetLogger(l)
		inner = s
		cleanup = func() { _ = s.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider.Type)
	}

	if cache == nil {
		return inner, cleanup, nil
	}
	return internalrepo.NewCachedSeries(inner, cache, cfg.Provider.Cache.TTL, l), cleanup, nil
}

// ProvideOrderStore loads orders from a file or Redis and never fails at
// request time: missing or corrupt bundles fall back to the configured orders.
func ProvideOrderStore(cfg *config.Config, rdb *redis.Client, m repository.Metrics, l *applogger.Logger) (repository.OrderStore, error) {
	var inner repository.OrderStore
	switch cfg.Orders.Type {
	case "file":
		inner = internalrepo.NewFileOrderStore(cfg.Orders.Path)
	case "redis":
		inner = internalrepo.NewRedisOrderStore(rdb, cfg.Orders.Key)
	default:
		return nil, fmt.Errorf("unknown orders type %q", cfg.Orders.Type)
	}

	fallback, err := configuredSpec(cfg)
	if err != nil {
		return nil, err
	}
	store := internalrepo.NewDefaultingOrderStore(inner, m, l.Component("orders"))
	store.SetFallback(fallback)
	return store, nil
}

func configuredSpec(cfg *config.Config) (models.ModelSpec, error) {
	spec, err := models.OrderBundle{
		Version:          models.OrderBundleVersion,
		NonSeasonalOrder: cfg.Forecast.ArimaOrder,
		SeasonalOrder:    cfg.Forecast.SeasonalOrder,
	}.Spec()
	if err != nil {
		return models.ModelSpec{}, fmt.Errorf("forecast orders: %w", err)
	}
	return spec, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	pkgkafka.SetMetricsRegisterer(reg)
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideForecastPublisher publishes predictions when a producer exists.
func ProvideForecastPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ForecastPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.ForecastTopic)
}

// ProvideFitter creates the ARIMA/SARIMA pair fitter.
func ProvideFitter(cfg *config.Config) forecast.PairFitter {
	return forecast.NewDualForecaster(forecast.WithMaxEvaluations(cfg.Forecast.MaxEvaluations))
}

// ProvidePredictor creates the forecast use case.
func ProvidePredictor(
	cfg *config.Config,
	provider repository.SeriesProvider,
	orders repository.OrderStore,
	fitter forecast.PairFitter,
	m repository.Metrics,
	pub repository.ForecastPublisher,
	l *applogger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(provider, orders, fitter,
		usecase.WithWindow(cfg.Forecast.Window),
		usecase.WithMetrics(m),
		usecase.WithPublisher(pub),
		usecase.WithLogger(l.Component("predictor")),
	)
}

// ProvideRateLimiter creates the per-client API limiter and its idle-key sweeper.
func ProvideRateLimiter(cfg *config.Config) (*ratelimit.Limiter, func()) {
	rl := cfg.Server.RateLimit
	if rl.PerSecond <= 0 {
		return nil, func() {}
	}
	limiter := ratelimit.New(rl.PerSecond, rl.Burst, rl.Idle)
	stop := make(chan struct{})
	go limiter.Run(stop)
	return limiter, func() { close(stop) }
}

type redisHealth struct{ c *redis.Client }

func (r redisHealth) Health(ctx context.Context) error { return r.c.Ping(ctx).Err() }

// ProvideForecastHandler creates the Echo API handler with health checks
// for every connected backend.
func ProvideForecastHandler(
	cfg *config.Config,
	predictor *usecase.Predictor,
	limiter *ratelimit.Limiter,
	ch *pkgch.Client,
	rdb *redis.Client,
	l *applogger.Logger,
) *api.ForecastEchoHandler {
	opts := []api.ForecastHandlerOption{
		api.WithCacheMaxAge(cfg.Server.CacheMaxAge),
	}
	if limiter != nil {
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch))
	}
	if rdb != nil {
		opts = append(opts, api.WithHealthCheck("redis", redisHealth{rdb}))
	}
	return api.NewForecastEchoHandler(l, predictor, opts...)
}

// ProvideHTTPServer creates the Echo server serving the API and /metrics.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.ForecastEchoHandler, reg *prometheus.Registry) *xhttp.Server {
	s := cfg.Server
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithSlowRequest(s.SlowRequest),
		xhttp.WithCORS(s.CORS),
		xhttp.WithRegistry(reg),
	)
}

// ProvideScheduler creates the watch-list job, or nil when disabled.
func ProvideScheduler(cfg *config.Config, predictor *usecase.Predictor, l *applogger.Logger) (*scheduler.Scheduler, error) {
	sc := cfg.Scheduler
	if !sc.Enabled {
		return nil, nil
	}
	s := scheduler.New(predictor, sc.Watchlist, l.Component("scheduler"),
		scheduler.WithHorizon(cfg.Forecast.DefaultSteps, cfg.Forecast.ConfidenceLevel),
		scheduler.WithJobTimeout(sc.JobTimeout),
	)
	if err := s.Register(sc.Spec); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideKafkaConsumer creates the request consumer, or nil when Kafka or
// the request topic is not configured.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.RequestTopic == "" {
		return nil, nil
	}
	pkgkafka.SetMetricsRegisterer(reg)
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
		pkgkafka.WithConsumerFetch(cc.MinBytes, cc.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideForecastRequestHandler handles the forecast request topic.
func ProvideForecastRequestHandler(cfg *config.Config, predictor *usecase.Predictor, m repository.Metrics, l *applogger.Logger) *usecase.ForecastRequestHandler {
	return usecase.NewForecastRequestHandler(cfg.Kafka.RequestTopic, predictor, m, l.Component("forecast_requests"))
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	rh *usecase.ForecastRequestHandler,
) *server.App {
	opts := []server.Option{
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	}
	if sched != nil {
		opts = append(opts, server.WithScheduler(sched))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, rh))
	}
	return server.New(l, httpServer, opts...)
}
