package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"PriceCast/internal/domain/repository"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	"PriceCast/internal/service/marketstream"
	"PriceCast/internal/service/modelcache"
	"PriceCast/internal/service/scheduler"
	"PriceCast/internal/services/alerting"
	"PriceCast/internal/services/drift"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/quality"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/cache"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	pkgkafka "PriceCast/pkg/kafka"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/queue"
	"PriceCast/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
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

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS pricecast",
		"CREATE TABLE IF NOT EXISTS pricecast.price_snapshots (item_id Int64, ts DateTime, buy_price Float64, sell_price Float64, buy_orders Int32, sell_orders Int32) ENGINE=MergeTree ORDER BY (item_id, ts)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideHistoryFetcher creates the ClickHouse history repository.
func ProvideHistoryFetcher(chClient *pkgch.Client, log *applogger.Logger) repository.HistoryFetcher {
	repo := internalrepo.NewCHHistoryRepo(chClient)
	repo.SetLogger(log)
	return repo
}

// ProvideModelStore creates the filesystem model store.
func ProvideModelStore(cfg *config.Config, log *applogger.Logger) (repository.ModelStore, error) {
	return internalrepo.NewFSModelStore(cfg.Lifecycle.ModelDir, log)
}

// ProvideAlertStore creates the filesystem alert store.
func ProvideAlertStore(cfg *config.Config) (repository.AlertStore, error) {
	dir := cfg.Alerting.Dir
	if dir == "" {
		dir = "data/alerts"
	}
	return internalrepo.NewFSAlertStore(dir)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
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

// ProvideAlertPublisher creates the Kafka alert publisher, or nil when
// Kafka is disabled.
func ProvideAlertPublisher(producer *pkgkafka.Producer, cfg *config.Config, log *applogger.Logger) repository.AlertPublisher {
	if producer == nil {
		return nil
	}
	topic := cfg.Kafka.AlertTopic
	if topic == "" {
		topic = "pricecast.alerts"
	}
	return internalrepo.NewKafkaAlertPublisher(producer, topic, log)
}

// ProvideRetrainQueue creates the Redis retrain queue, or nil when
// Redis is disabled. Jobs are registered in ProvideApp once the
// manager exists.
func ProvideRetrainQueue(cfg *config.Config, log *applogger.Logger) *queue.RedisQueue {
	if !cfg.Redis.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	prefix := cfg.Redis.Queue.KeyPrefix
	if prefix == "" {
		prefix = "pricecast:queue"
	}
	return queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}, client, queue.ModeProducerConsumer, queue.WithKeyPrefix(prefix))
}

// ProvideAlertEngine creates the rule engine with optional Kafka
// fan-out and queued retrains.
func ProvideAlertEngine(
	store repository.AlertStore,
	publisher repository.AlertPublisher,
	retrainQ *queue.RedisQueue,
	cfg *config.Config,
	m repository.Metrics,
	log *applogger.Logger,
) *alerting.Engine {
	opts := make([]alerting.EngineOption, 0, 3)
	if cfg.Alerting.Cooldown > 0 {
		opts = append(opts, alerting.WithCooldown(cfg.Alerting.Cooldown))
	}
	if publisher != nil {
		opts = append(opts, alerting.WithPublisher(publisher))
	}
	if retrainQ != nil {
		opts = append(opts, alerting.WithRetrainTrigger(usecase.NewRetrainQueue(retrainQ)))
	}
	return alerting.NewEngine(store, m, log, opts...)
}

// ProvideMarketStream creates the WebSocket market stream, or nil when
// no feed is configured.
func ProvideMarketStream(cfg *config.Config) repository.MarketStream {
	if cfg.Market.WebSocketURL == "" {
		return nil
	}
	return marketstream.New(
		cfg.Market.APIKey,
		cfg.Market.WebSocketURL,
		cfg.Market.ItemIDs,
		cfg.Market.ReconnectDelay,
		cfg.Market.PingInterval,
	)
}

// ProvideCollector creates the live tick collector, or nil without a
// market stream.
func ProvideCollector(stream repository.MarketStream, m repository.Metrics, log *applogger.Logger) *usecase.Collector {
	if stream == nil {
		return nil
	}
	return usecase.NewCollector(stream, m, log)
}

// ProvideManager creates the model lifecycle manager.
func ProvideManager(
	cfg *config.Config,
	history repository.HistoryFetcher,
	store repository.ModelStore,
	alerts *alerting.Engine,
	collector *usecase.Collector,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Manager {
	lc := usecase.DefaultLifecycleConfig()
	if cfg.Lifecycle.HistoryDays > 0 {
		lc.HistoryDays = cfg.Lifecycle.HistoryDays
	}
	if cfg.Lifecycle.MinPoints > 0 {
		lc.MinPoints = cfg.Lifecycle.MinPoints
	}
	if cfg.Lifecycle.MaxObservationAge > 0 {
		lc.MaxObservationAge = cfg.Lifecycle.MaxObservationAge
	}
	if cfg.Lifecycle.MinSellOrders > 0 {
		lc.MinSellOrders = cfg.Lifecycle.MinSellOrders
	}
	if cfg.Lifecycle.StagnationWindow > 0 {
		lc.StagnationWindow = cfg.Lifecycle.StagnationWindow
	}
	if cfg.Lifecycle.TickFreshness > 0 {
		lc.TickFreshness = cfg.Lifecycle.TickFreshness
	}

	cacheSize := cfg.Lifecycle.CacheSize
	if cacheSize <= 0 {
		cacheSize = 100
	}
	sensitivity := cfg.Lifecycle.DriftSensitivity
	if sensitivity <= 0 {
		sensitivity = 0.5
	}

	return usecase.NewManager(
		lc,
		history,
		store,
		modelcache.New(cacheSize, m),
		forecast.NewFactory(cfg.Lifecycle.RemoteModelURL, cfg.Lifecycle.RemoteTimeout),
		quality.NewChecker(),
		quality.NewCleaner(),
		drift.NewDetector(sensitivity),
		alerts,
		collector,
		m,
		log,
	)
}

// ProvideScheduler creates the training scheduler, or nil when disabled.
func ProvideScheduler(manager *usecase.Manager, cfg *config.Config, log *applogger.Logger) *scheduler.Scheduler {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	return scheduler.New(manager, scheduler.Config{
		TrainSweepSpec: cfg.Scheduler.TrainSweepSpec,
		SweepTimeout:   cfg.Scheduler.SweepTimeout,
	}, log)
}

// kafkaLogPublisher adapts the Kafka producer to the aggregated log
// collector's publisher interface.
type kafkaLogPublisher struct{ p *pkgkafka.Producer }

func (k kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return k.p.Publish(ctx, topic, nil, payload)
}

// ProvideApp creates the application server with routes and queue jobs
// wired up.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	manager *usecase.Manager,
	collector *usecase.Collector,
	sched *scheduler.Scheduler,
	retrainQ *queue.RedisQueue,
	publisher repository.AlertPublisher,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	if retrainQ != nil {
		retrainQ.RegisterJob(usecase.NewRetrainJob(manager, log))
	}
	if producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "pricecast.logs",
			Publisher:      kafkaLogPublisher{producer},
		})
	}
	app := server.New(cfg, log, collector, sched, retrainQ, publisher, chClient)
	app.SetHTTPHandler(api.NewForecastHandler(log, manager, provideResponseCache(cfg, log)))
	return app
}

// provideResponseCache builds the forecast response cache: layered
// over Redis when available, plain in-memory otherwise.
func provideResponseCache(cfg *config.Config, log *applogger.Logger) cache.Service {
	if cfg.Redis.Enabled {
		host, port := splitHostPort(cfg.Redis.Addr)
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(host),
			cache.WithRedisPort(port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
		)
		if err == nil {
			return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(4096))
		}
		log.Warn("redis response cache unavailable, using memory only", applogger.Error(err))
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(4096))
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
