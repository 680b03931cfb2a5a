package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"gorm.io/gorm"

	catalogclient "github.com/Apurer/bookshop-order-service/internal/clients/http/catalog"
	orderscatalog "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/external/catalog"
	ordersmemory "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/memory"
	orderskafka "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/messaging/kafka"
	ordersobs "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/persistence/postgres"
	ordersapp "github.com/Apurer/bookshop-order-service/internal/domains/orders/application"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	platformkafka "github.com/Apurer/bookshop-order-service/internal/platform/kafka"
	"github.com/Apurer/bookshop-order-service/internal/platform/migrations"
	platformobservability "github.com/Apurer/bookshop-order-service/internal/platform/observability"
)

const ordersInstrumentation = "internal.orders.application"

// BuildOrderStore migrates and wraps db, or returns the in-memory store when db is nil.
func BuildOrderStore(db *gorm.DB, logger *slog.Logger) (ports.Repository, error) {
	if db == nil {
		return ordersmemory.NewRepository(), nil
	}
	if err := migrations.Run(db); err != nil {
		return nil, fmt.Errorf("migrate order schema: %w", err)
	}
	logger.Info("order store configured with postgres")
	return orderspostgres.NewRepository(db), nil
}

// BuildCatalog wires the HTTP catalog client behind the retrying lookup.
func BuildCatalog(cfg Config, instruments *platformobservability.Instruments) (ports.BookCatalog, error) {
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(instruments.TracerProvider),
			otelhttp.WithMeterProvider(instruments.MeterProvider),
		),
	}
	client, err := catalogclient.NewCatalogClient(cfg.CatalogURI, httpClient)
	if err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	return orderscatalog.NewLookup(client,
		orderscatalog.WithTimeout(cfg.CatalogTimeout),
		orderscatalog.WithMaxRetries(cfg.CatalogMaxRetries),
		orderscatalog.WithBackoff(cfg.CatalogRetryBackoff),
		orderscatalog.WithLogger(instruments.Logger),
		orderscatalog.WithMeter(instruments.Meter("internal.orders.catalog")),
	), nil
}

// BuildKafkaPublisher creates the acceptance publisher. Topic creation failures are logged, not fatal.
func BuildKafkaPublisher(ctx context.Context, cfg Config, logger *slog.Logger) (*orderskafka.Publisher, func()) {
	if err := platformkafka.EnsureTopics(ctx, cfg.KafkaBrokers, cfg.KafkaAcceptedTopic, cfg.KafkaDispatchedTopic); err != nil {
		logger.Warn("failed to ensure kafka topics", slog.String("error", err.Error()))
	}
	writer := platformkafka.NewWriter(cfg.KafkaBrokers)
	logger.Info("kafka acceptance publisher configured", slog.String("topic", cfg.KafkaAcceptedTopic))
	return orderskafka.NewPublisher(writer, cfg.KafkaAcceptedTopic), func() {
		if err := writer.Close(); err != nil {
			logger.Warn("failed to close kafka writer", slog.String("error", err.Error()))
		}
	}
}

// NewOrderService builds the lifecycle and decorates it with tracing, logging and metrics.
// A nil publisher yields a service that persists without announcing acceptance.
func NewOrderService(repo ports.Repository, catalog ports.BookCatalog, publisher ports.AcceptedPublisher, instruments *platformobservability.Instruments) ports.Service {
	opts := []ordersapp.Option{ordersapp.WithLogger(instruments.Logger)}
	if publisher != nil {
		opts = append(opts, ordersapp.WithPublisher(publisher))
	}
	return ordersobs.New(
		ordersapp.NewService(repo, catalog, opts...),
		ordersobs.WithLogger(instruments.Logger),
		ordersobs.WithTracer(instruments.Tracer(ordersInstrumentation)),
		ordersobs.WithMeter(instruments.Meter(ordersInstrumentation)),
	)
}

// DialTemporal connects a traced Temporal client.
func DialTemporal(cfg Config, instruments *platformobservability.Instruments, component string) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer(component),
	})
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(instruments.Logger),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}
