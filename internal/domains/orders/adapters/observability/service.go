package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/observability/service"

// Service decorates the order lifecycle with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

func (s *Service) Submit(ctx context.Context, input ports.SubmitOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Submit",
		trace.WithAttributes(attribute.String("book.isbn", input.ISBN), attribute.Int("order.quantity", input.Quantity)))
	defer span.End()

	s.logInfo(ctx, "submitting order", slog.String("book.isbn", input.ISBN), slog.Int("order.quantity", input.Quantity))
	s.logger.LogAttrs(ctx, slog.LevelDebug, "order owner", slog.String("order.owner", input.OwnerSubject))
	result, err := s.inner.Submit(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to submit order", slog.String("book.isbn", input.ISBN))
	}
	span.SetAttributes(attribute.Int64("order.id", result.ID), attribute.String("order.status", string(result.Status)))
	s.metrics.recordSubmitted(ctx, result.Status)
	s.logInfo(ctx, "order submitted", slog.Int64("order.id", result.ID), slog.String("order.status", string(result.Status)))
	return result, nil
}

func (s *Service) ApplyDispatch(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ApplyDispatch", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	result, err := s.inner.ApplyDispatch(ctx, orderID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to apply dispatch", slog.Int64("order.id", orderID))
	}
	if result == nil {
		span.SetAttributes(attribute.Bool("order.dispatch.applied", false))
		s.metrics.recordDispatchIgnored(ctx)
		return nil, nil
	}
	span.SetAttributes(attribute.Bool("order.dispatch.applied", true))
	s.metrics.recordDispatchApplied(ctx)
	s.logInfo(ctx, "order dispatched", slog.Int64("order.id", result.ID), slog.Int("order.version", result.Version))
	return result, nil
}

func (s *Service) ListForSubject(ctx context.Context, subject string) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListForSubject")
	defer span.End()

	result, err := s.inner.ListForSubject(ctx, subject)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders")
	}
	span.SetAttributes(attribute.Int("order.result.count", len(result)))
	s.logInfo(ctx, "listed orders", slog.Int("count", len(result)))
	return result, nil
}

func (s *Service) PublishAccepted(ctx context.Context, orderID int64) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.PublishAccepted", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if err := s.inner.PublishAccepted(ctx, orderID); err != nil {
		return s.handleError(ctx, span, err, "failed to publish acceptance", slog.Int64("order.id", orderID))
	}
	return nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	submitted       metric.Int64Counter
	dispatchApplied metric.Int64Counter
	dispatchIgnored metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	submitted, _ := m.Int64Counter("orders.submitted", metric.WithDescription("Number of orders submitted"))
	applied, _ := m.Int64Counter("orders.dispatch.applied", metric.WithDescription("Dispatch notifications that moved an order"))
	ignored, _ := m.Int64Counter("orders.dispatch.ignored", metric.WithDescription("Dispatch notifications ignored as no-ops"))
	return serviceMetrics{submitted: submitted, dispatchApplied: applied, dispatchIgnored: ignored}
}

func (m serviceMetrics) recordSubmitted(ctx context.Context, status domain.Status) {
	addCounter(ctx, m.submitted, attribute.String("order.status", string(status)))
}

func (m serviceMetrics) recordDispatchApplied(ctx context.Context) {
	addCounter(ctx, m.dispatchApplied)
}

func (m serviceMetrics) recordDispatchIgnored(ctx context.Context) {
	addCounter(ctx, m.dispatchIgnored)
}

func addCounter(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
