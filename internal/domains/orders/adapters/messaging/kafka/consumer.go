package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	platformkafka "github.com/Apurer/bookshop-order-service/internal/platform/kafka"
)

const tracerName = "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/messaging/kafka"

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer delivers order-dispatched notifications to the registered handler.
// An offset is committed only once its handler call succeeded or the payload was unusable.
type Consumer struct {
	reader  MessageReader
	handler ports.DispatchHandler
	ledger  ports.DeliveryLedger
	logger  *slog.Logger
	tracer  trace.Tracer
	retry   func() backoff.BackOff
}

type ConsumerOption func(*Consumer)

func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithConsumerTracer(tr trace.Tracer) ConsumerOption {
	return func(c *Consumer) {
		if tr != nil {
			c.tracer = tr
		}
	}
}

// WithLedger skips deliveries that were already handled.
func WithLedger(ledger ports.DeliveryLedger) ConsumerOption {
	return func(c *Consumer) {
		c.ledger = ledger
	}
}

// WithRetryPolicy replaces the backoff used between handler attempts.
func WithRetryPolicy(policy func() backoff.BackOff) ConsumerOption {
	return func(c *Consumer) {
		if policy != nil {
			c.retry = policy
		}
	}
}

// NewConsumer wraps a reader positioned on the dispatched topic.
func NewConsumer(reader MessageReader, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader: reader,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: nooptrace.NewTracerProvider().Tracer(tracerName),
		retry:  defaultRetryPolicy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func defaultRetryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0
	return policy
}

// OnDispatched registers the single handler for dispatch notifications.
func (c *Consumer) OnDispatched(handler ports.DispatchHandler) {
	c.handler = handler
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	if c.reader == nil {
		return errors.New("kafka consumer not configured")
	}
	if c.handler == nil {
		return errors.New("dispatch handler not registered")
	}
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch dispatch message: %w", err)
		}
		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	key := DeliveryKey(msg.Topic, msg.Partition, msg.Offset)
	attrs := []slog.Attr{slog.String("delivery.key", key)}

	if c.ledger != nil {
		seen, err := c.ledger.Processed(ctx, key)
		switch {
		case err != nil:
			c.logger.LogAttrs(ctx, slog.LevelWarn, "delivery ledger unavailable", append(attrs, slog.String("error", err.Error()))...)
		case seen:
			c.logger.LogAttrs(ctx, slog.LevelInfo, "duplicate dispatch delivery skipped", attrs...)
			return c.commit(ctx, msg)
		}
	}

	msgCtx := platformkafka.ExtractHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "OrderDispatched.Consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))
	defer span.End()

	event, err := decodeDispatched(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed payload")
		c.logger.LogAttrs(msgCtx, slog.LevelError, "malformed dispatch message skipped", append(attrs, slog.String("error", err.Error()))...)
		return c.commit(ctx, msg)
	}
	span.SetAttributes(attribute.Int64("order.id", event.OrderID))

	attempt := 0
	err = backoff.RetryNotify(func() error {
		attempt++
		return c.handler(msgCtx, event.OrderID)
	}, backoff.WithContext(c.retry(), ctx), func(err error, wait time.Duration) {
		c.logger.LogAttrs(msgCtx, slog.LevelWarn, "dispatch handling failed, retrying",
			append(attrs, slog.Int64("order.id", event.OrderID), slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.String("error", err.Error()))...)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("handle dispatch for order %d: %w", event.OrderID, err)
	}

	if c.ledger != nil {
		if err := c.ledger.MarkProcessed(ctx, key); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "could not record delivery", append(attrs, slog.String("error", err.Error()))...)
		}
	}
	return c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("commit dispatch message: %w", err)
	}
	return nil
}

func decodeDispatched(msg kafka.Message) (domain.OrderDispatched, error) {
	var payload orderMessage
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return domain.OrderDispatched{}, fmt.Errorf("decode dispatch message: %w", err)
	}
	if payload.OrderID <= 0 {
		return domain.OrderDispatched{}, errors.New("dispatch message carries no order id")
	}
	return domain.OrderDispatched{BaseEvent: domain.BaseEvent{Timestamp: msg.Time}, OrderID: payload.OrderID}, nil
}

var _ ports.DispatchSubscriber = (*Consumer)(nil)
var _ MessageReader = (*kafka.Reader)(nil)
