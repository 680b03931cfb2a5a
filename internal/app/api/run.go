package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	orderserver "github.com/Apurer/bookshop-order-service/go"

	ledgerredis "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/inbox/redis"
	orderskafka "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/messaging/kafka"
	ordersbus "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/messaging/memory"
	orderspostgres "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/persistence/postgres"
	ordersworkflows "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/workflows"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	platformkafka "github.com/Apurer/bookshop-order-service/internal/platform/kafka"
	platformobservability "github.com/Apurer/bookshop-order-service/internal/platform/observability"
	platformpostgres "github.com/Apurer/bookshop-order-service/internal/platform/postgres"
	platformredis "github.com/Apurer/bookshop-order-service/internal/platform/redis"
)

const shutdownTimeout = 10 * time.Second

// Run boots the order HTTP API and the dispatch consumer, and blocks until ctx
// is cancelled or SIGINT/SIGTERM arrives.
func Run(ctx context.Context) error {
	const serviceName = "bookshop-order-api"
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, cleanupDB := platformpostgres.ConnectOptional(ctx, cfg.PostgresDSN, logger)
	defer cleanupDB()
	repo, err := BuildOrderStore(db, logger)
	if err != nil {
		return err
	}
	catalog, err := BuildCatalog(cfg, instruments)
	if err != nil {
		return err
	}

	rdb, cleanupRedis := platformredis.ConnectOptional(ctx, cfg.RedisAddr, logger)
	defer cleanupRedis()

	publisher, subscriber, cleanupGateway := buildNotificationGateway(ctx, cfg, instruments, buildDeliveryLedger(rdb, db))
	defer cleanupGateway()

	orderService := NewOrderService(repo, catalog, publisher, instruments)
	subscriber.OnDispatched(func(ctx context.Context, orderID int64) error {
		_, err := orderService.ApplyDispatch(ctx, orderID)
		return err
	})

	var orderWorkflows ports.WorkflowOrchestrator = ordersworkflows.NewInlineOrderWorkflows(orderService)
	switch temporalClient, err := DialTemporal(cfg, instruments, "temporal-client"); {
	case err != nil:
		logger.Warn("Temporal workflows unavailable, running inline submission", slog.String("error", err.Error()))
	case db == nil:
		// The worker persists orders itself, so both processes must share a durable store.
		temporalClient.Close()
		logger.Warn("Temporal workflows need POSTGRES_DSN, running inline submission")
	default:
		defer temporalClient.Close()
		orderWorkflows = ordersworkflows.NewTemporalOrderWorkflows(temporalClient)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	handlers := orderserver.ApiHandleFunctions{
		IdentityHeader: cfg.IdentityHeader,
		OrdersAPI:      orderserver.NewOrdersAPI(orderService, orderWorkflows),
		HealthAPI:      orderserver.NewHealthAPI(healthChecks(db, rdb)...),
	}
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	router = orderserver.NewRouterWithGinEngine(router, handlers)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("order API listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := subscriber.Run(gctx); err != nil {
			return fmt.Errorf("dispatch subscriber: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("order API exited", slog.String("error", err.Error()))
		return err
	}
	logger.Info("order API stopped")
	return nil
}

// buildNotificationGateway selects Kafka when brokers are configured, else the in-process bus.
func buildNotificationGateway(ctx context.Context, cfg Config, instruments *platformobservability.Instruments, ledger ports.DeliveryLedger) (ports.AcceptedPublisher, ports.DispatchSubscriber, func()) {
	logger := instruments.Logger
	if !cfg.KafkaEnabled() {
		logger.Warn("KAFKA_BROKERS not set, notifications stay in process")
		bus := ordersbus.NewBus(ordersbus.WithLogger(logger))
		return bus, bus, func() {}
	}
	publisher, closeWriter := BuildKafkaPublisher(ctx, cfg, logger)
	reader := platformkafka.NewReader(cfg.KafkaBrokers, cfg.KafkaDispatchedTopic, cfg.KafkaConsumerGroup)
	opts := []orderskafka.ConsumerOption{
		orderskafka.WithConsumerLogger(logger),
		orderskafka.WithConsumerTracer(instruments.Tracer("internal.orders.messaging")),
	}
	if ledger != nil {
		opts = append(opts, orderskafka.WithLedger(ledger))
	}
	logger.Info("kafka dispatch consumer configured",
		slog.String("topic", cfg.KafkaDispatchedTopic), slog.String("group", cfg.KafkaConsumerGroup))
	return publisher, orderskafka.NewConsumer(reader, opts...), closeWriter
}

// buildDeliveryLedger prefers Redis, then the PostgreSQL table; nil disables deduplication.
func buildDeliveryLedger(rdb *goredis.Client, db *gorm.DB) ports.DeliveryLedger {
	switch {
	case rdb != nil:
		return ledgerredis.NewLedger(rdb, 0)
	case db != nil:
		return orderspostgres.NewDeliveryLedger(db)
	}
	return nil
}

func healthChecks(db *gorm.DB, rdb *goredis.Client) []orderserver.HealthCheck {
	var checks []orderserver.HealthCheck
	if db != nil {
		checks = append(checks, orderserver.HealthCheck{Name: "postgres", Check: func(ctx context.Context) error {
			return platformpostgres.Ping(ctx, db)
		}})
	}
	if rdb != nil {
		checks = append(checks, orderserver.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return checks
}
