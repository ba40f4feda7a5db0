package di

import (
	"context"
	"fmt"
	"time"

	"StockSight/internal/domain/repository"
	dsvc "StockSight/internal/domain/service"
	"StockSight/internal/handler/api"
	internalrepo "StockSight/internal/repository"
	"StockSight/internal/scheduler"
	"StockSight/internal/service/predictapi"
	"StockSight/internal/service/ratelimit"
	"StockSight/internal/service/synthetic"
	"StockSight/internal/usecase"
	"StockSight/pkg/cache"
	pkgch "StockSight/pkg/clickhouse"
	"StockSight/pkg/config"
	xhttp "StockSight/pkg/http"
	"StockSight/pkg/http/middleware"
	pkgkafka "StockSight/pkg/kafka"
	applogger "StockSight/pkg/logger"
	"StockSight/pkg/metrics"
	"StockSight/pkg/server"
)

// ProvideLogger creates the application logger. When the log collector is
// enabled, aggregated error (and optionally warn) logs are shipped through a dedicated Kafka producer.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if !cfg.Logging.Collector.Enabled {
		return l, func() {}, nil
	}

	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("log collector: %w", err)
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Logging.Collector.Interval,
		CountThreshold: cfg.Logging.Collector.Threshold,
		Topic:          cfg.Logging.Collector.Topic,
		Publisher:      producer,
		Service:        "stocksight",
		IncludeWarn:    cfg.Logging.Collector.IncludeWarn,
	})
	cleanup := func() {
		l.RemoveCollector()
		_ = producer.Close()
	}
	return l, cleanup, nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideMarketData creates the remote prediction API client, or nil when no
// base URL is configured.
func ProvideMarketData(cfg *config.Config, l *applogger.Logger) dsvc.MarketData {
	if cfg.Remote.BaseURL == "" {
		return nil
	}
	c := predictapi.NewClientFromConfig(cfg)
	c.SetLogger(l)
	return c
}

// ProvideGenerator creates the synthetic generator.
func ProvideGenerator(cfg *config.Config) *synthetic.Generator {
	opts := []synthetic.Option{
		synthetic.WithLatency(synthetic.DefaultLatency().Scale(cfg.Provider.LatencyMultiplier)),
	}
	if cfg.Provider.Seed != 0 {
		opts = append(opts, synthetic.WithSeed(cfg.Provider.Seed))
	}
	return synthetic.New(opts...)
}

// ProvideProbe resolves the data mode once at startup.
func ProvideProbe(cfg *config.Config, remote dsvc.MarketData, l *applogger.Logger) usecase.ProbeResult {
	res := usecase.ResolveMode(context.Background(), cfg.Provider.Mode, remote, cfg.Remote.ProbeSymbol, cfg.Remote.ProbeTimeout)
	fields := []applogger.Field{
		applogger.String("mode", string(res.Mode)),
		applogger.String("setting", cfg.Provider.Mode),
		applogger.Duration("latency", res.Latency),
	}
	if res.Error != "" {
		fields = append(fields, applogger.String("reason", res.Error))
	}
	l.Info("data provider mode resolved", fields...)
	return res
}

// ProvideProvider creates the data provider fixed to the probed mode.
func ProvideProvider(
	probe usecase.ProbeResult,
	remote dsvc.MarketData,
	gen *synthetic.Generator,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Provider {
	p := usecase.NewProvider(probe.Mode, remote, gen, m)
	p.SetLogger(l)
	return p
}

// ProvideDashboard creates the dashboard aggregator.
func ProvideDashboard(p *usecase.Provider) *usecase.Dashboard {
	return usecase.NewDashboard(p)
}

// ProvideCache creates the forecast cache: memory only, or memory in front
// of Redis when enabled.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemorySize))
		return mc, func() { _ = mc.Close() }, nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
		cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	lc := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
	)
	return lc, func() { _ = lc.Close() }, nil
}

// ProvideSnapshotStore opens the queryable store for backend. The returned
// cleanup releases the store and any client it was built on.
func ProvideSnapshotStore(cfg *config.Config, backend repository.Backend, l *applogger.Logger) (repository.SnapshotStore, func(), error) {
	switch backend {
	case repository.BackendSQLite:
		s, err := internalrepo.NewSQLiteSnapshotStore(cfg.Snapshots.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite snapshot store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case repository.BackendClickHouse:
		ch, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		s := internalrepo.NewClickHouseSnapshotStore(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
		s.SetLogger(l)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ch.InitSchema(ctx, []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}); err != nil {
			_ = ch.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		if err := s.Init(ctx); err != nil {
			_ = ch.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return s, func() { _ = ch.Close() }, nil
	}
	return nil, nil, fmt.Errorf("backend %s has no snapshot store", backend)
}

// ProvideSnapshotProcessor builds the sink selected by snapshots.backend.
func ProvideSnapshotProcessor(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*usecase.SnapshotProcessor, func(), error) {
	backend := repository.NormalizeBackend(cfg.Snapshots.Backend)

	switch backend {
	case repository.BackendSQLite, repository.BackendClickHouse:
		store, cleanup, err := ProvideSnapshotStore(cfg, backend, l)
		if err != nil {
			return nil, nil, err
		}
		return usecase.NewSnapshotProcessor(nil, store, m, backend), cleanup, nil
	case repository.BackendKafka:
		producer, err := ProvideKafkaProducer(cfg)
		if err != nil {
			return nil, nil, err
		}
		proc := usecase.NewSnapshotProcessor(internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil, m, backend)
		return proc, proc.Close, nil
	}
	return usecase.NewSnapshotProcessor(nil, nil, m, backend), func() {}, nil
}

// ProvideSnapshotSink builds the consumer that reads published snapshots
// back into kafka.consumer.store.
func ProvideSnapshotSink(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, func(), error) {
	backend := repository.NormalizeBackend(cfg.Kafka.Consumer.Store)
	store, cleanup, err := ProvideSnapshotStore(cfg, backend, l)
	if err != nil {
		return nil, nil, err
	}

	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		usecase.NewSnapshotSink(cfg.Kafka.Topic, store, m),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerStartOffset(cc.StartOffset),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)

	return consumer, func() {
		_ = consumer.Close()
		cleanup()
	}, nil
}

// ProvideSnapshotCollector creates the snapshot collector over the symbol universe.
func ProvideSnapshotCollector(
	cfg *config.Config,
	p *usecase.Provider,
	proc *usecase.SnapshotProcessor,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.SnapshotCollector {
	c := usecase.NewSnapshotCollector(p, proc, cfg.Symbols, m)
	c.SetConcurrency(cfg.Snapshots.Concurrency)
	c.SetLogger(l)
	return c
}

// ProvideScheduler registers the snapshot job. It returns nil when snapshots are disabled.
func ProvideScheduler(cfg *config.Config, c *usecase.SnapshotCollector, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Snapshots.Enabled {
		return nil, nil
	}
	s := scheduler.New(c, cfg.Snapshots.Timeout)
	s.SetLogger(l)
	if err := s.Register(cfg.Snapshots.Cron); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideRateLimiter creates the per-client token bucket limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideHTTPHandlers assembles every route group of the HTTP API.
func ProvideHTTPHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	gen *synthetic.Generator,
	c cache.Service,
	p *usecase.Provider,
	d *usecase.Dashboard,
	probe usecase.ProbeResult,
	col *usecase.SnapshotCollector,
) xhttp.Handlers {
	forecast := api.NewForecastEchoHandler(l, gen.Immediate())
	forecast.SetCache(c, cfg.Cache.TTL)

	dash := api.NewDashboardEchoHandler(l, p, d, cfg.Symbols, probe)
	if cfg.Snapshots.Enabled {
		dash.SetSnapshots(col)
	}

	stream := api.NewStreamHandler(l, p, cfg.Stream.Interval, cfg.Stream.PingInterval)
	return xhttp.Handlers{forecast, dash, stream}
}

// ProvideHTTPServer creates the Echo server with the configured middleware.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h xhttp.Handlers, rl *ratelimit.Limiter) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, cfg.Server.SlowThreshold))
	} else {
		opts = append(opts, xhttp.WithMetrics("", 0))
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, xhttp.WithMiddleware(middleware.RateLimit(rl, cfg.RateLimit.Capacity, cfg.RateLimit.Refill)))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	sched *scheduler.Scheduler,
	rl *ratelimit.Limiter,
	p *usecase.Provider,
) *server.App {
	app := server.New(cfg, l, srv, p)
	app.SetScheduler(sched)
	app.SetRateLimiter(rl)
	return app
}
