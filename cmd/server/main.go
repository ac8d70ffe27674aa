package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	cartapp "github.com/storefront/backend/internal/application/cart"
	catalogapp "github.com/storefront/backend/internal/application/catalog"
	checkoutapp "github.com/storefront/backend/internal/application/checkout"
	eventapp "github.com/storefront/backend/internal/application/event"
	orderapp "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/messaging"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// sessionSweepInterval is how often idle cart sessions are evicted
const sessionSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry comes first so the final logger can tee into the OTLP log bridge
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Telemetry.SpanProfilesEnabled {
		tracerProvider.EnableSpanProfiles()
	}

	log, err := logger.New(logCfg, loggerProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	zap.ReplaceGlobals(log)
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.GormMode),
			logger.WithSlowThreshold(cfg.Log.SlowQuery))))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		// sqlite is for local runs; postgres schemas come from cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	if err := telemetry.InstrumentDB(db.DB, meterProvider.Meter("storefront/db"), telemetry.DBConfig{
		Tracing:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBSystem:   dbSystem(cfg.Database.Driver),
	}, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	metrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meterProvider.Meter("storefront"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to register business metrics", zap.Error(err))
	}

	storeOpts := []cache.StoreOption{cache.WithLogger(log)}
	if cfg.Redis.Required {
		storeOpts = append(storeOpts, cache.RequireRedis())
	}
	idempotency, err := cache.NewIdempotencyStore(cfg.Redis, storeOpts...)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotency.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	cartRecordRepo := persistence.NewGormCartRecordRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	outboxWriter := event.NewOutboxWriter(serializer, cfg.Event.MaxRetries)
	committer := persistence.NewGormCheckoutCommitter(db.DB, outboxWriter)

	// Cart
	synchronizer := cartapp.NewSynchronizer(cartRecordRepo, productRepo, cartapp.SynchronizerConfig{
		Mode:          cartapp.SyncMode(cfg.Cart.SyncMode),
		WriteTimeout:  cfg.Cart.SyncTimeout,
		MaxRetries:    cfg.Cart.SyncMaxRetries,
		RetryInterval: cfg.Cart.RetryInterval,
	}, log, cartapp.WithSyncMetrics(metrics))
	sessions := cartapp.NewSessions(cfg.Cart.SessionTTL)
	go sessions.Run(ctx, sessionSweepInterval)
	cartService := cartapp.NewService(sessions, productRepo, synchronizer, log)

	// Checkout and orders
	orchestrator := checkoutapp.NewOrchestrator(
		middleware.Identity{},
		cartService,
		productRepo,
		committer,
		log,
		checkoutapp.WithIdempotencyStore(idempotency),
		checkoutapp.WithMetrics(metrics),
		checkoutapp.WithConfig(checkoutapp.Config{
			CommitTimeout:  cfg.Checkout.CommitTimeout,
			IdempotencyTTL: cfg.Checkout.IdempotencyTTL,
		}),
	)
	orderService := orderapp.NewService(orderRepo, log)
	productService := catalogapp.NewProductService(productRepo, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Order events: outbox -> sink
	var processor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		sink, closeSink, err := newEventSink(ctx, cfg.Event, serializer, idempotency, metrics, log)
		if err != nil {
			log.Fatal("Failed to create event sink", zap.Error(err))
		}
		defer func() {
			if err := closeSink.Close(); err != nil {
				log.Error("Error closing event sink", zap.Error(err))
			}
		}()

		processorCfg := event.DefaultOutboxProcessorConfig()
		processorCfg.BatchSize = cfg.Event.BatchSize
		processorCfg.PollInterval = cfg.Event.PollInterval
		processorCfg.Retention = cfg.Event.CleanupRetention
		processor = event.NewOutboxProcessor(outboxRepo, sink, serializer, processorCfg, log)
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	// HTTP
	engine, err := router.NewEngine(router.EngineConfig{
		Logger:        log,
		HTTP:          cfg.HTTP,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		ServiceName:   tracingServiceName(cfg.Telemetry),
		UntracedPaths: []string{"/api/v1/health"},
		Meter:         meterProvider.Meter("storefront/http"),
		Profiling:     profiler.IsEnabled(),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	middleware.SetupValidator()

	jwtService := auth.NewJWTService(cfg.JWT)
	router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithAuth(middleware.JWTAuth(middleware.JWTConfig{
			JWTService: jwtService,
			Logger:     log,
		})),
	).
		Public(
			handler.NewHealthHandler(version, healthChecks(db, idempotency)),
			handler.NewProductHandler(productService),
		).
		Protected(
			handler.NewCartHandler(cartService),
			handler.NewCheckoutHandler(orchestrator),
			handler.NewOrderHandler(orderService),
			handler.NewOutboxHandler(outboxService),
		).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// pending cart writes are flushed before the database closes
	if err := synchronizer.Close(shutdownCtx); err != nil {
		log.Error("Cart writes still pending at shutdown", zap.Error(err))
	}
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer":   tracerProvider.Shutdown,
		"meter":    meterProvider.Shutdown,
		"logger":   loggerProvider.Shutdown,
		"profiler": profiler.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// newEventSink returns the publisher the outbox processor delivers order
// events to, and the closer that releases it.
func newEventSink(
	ctx context.Context,
	cfg config.EventConfig,
	serializer *event.EventSerializer,
	idempotency shared.IdempotencyStore,
	metrics orderapp.PlacedMetrics,
	log *zap.Logger,
) (shared.EventPublisher, io.Closer, error) {
	switch cfg.Broker {
	case config.BrokerAMQP:
		p, err := messaging.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, serializer, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Order events published to AMQP", zap.String("exchange", cfg.AMQPExchange))
		return p, p, nil

	case config.BrokerKafka:
		p := messaging.NewKafkaPublisher(messaging.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...), serializer, log)
		log.Info("Order events published to Kafka",
			zap.String("topic", cfg.KafkaTopic),
			zap.Strings("brokers", cfg.KafkaBrokers),
		)
		return p, p, nil

	default:
		bus := event.NewInMemoryEventBus(log)
		placed := event.NewIdempotentHandler(orderapp.NewPlacedHandler(metrics, log), idempotency, log)
		bus.Subscribe(placed)
		if err := bus.Start(ctx); err != nil {
			return nil, nil, err
		}
		log.Info("Order events dispatched in process", zap.Strings("event_types", placed.EventTypes()))
		return bus, closerFunc(func() error { return bus.Stop(context.Background()) }), nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// healthChecks returns the dependencies GET /health probes
func healthChecks(db *persistence.Database, idempotency shared.IdempotencyStore) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": db.PingContext,
	}
	if redisStore, ok := idempotency.(*cache.RedisIdempotencyStore); ok {
		checks["redis"] = redisStore.Ping
	}
	return checks
}

// tracingServiceName enables request tracing only when telemetry is on
func tracingServiceName(cfg config.TelemetryConfig) string {
	if !cfg.Enabled {
		return ""
	}
	return cfg.ServiceName
}

func dbSystem(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgresql"
}
