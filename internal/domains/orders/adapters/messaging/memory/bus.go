package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

const (
	defaultQueueSize    = 64
	defaultHistoryLimit = 256
)

// Bus is an in-process notification gateway. The most recent accepted
// notifications are kept for inspection and all are fanned out to listeners; dispatch notifications are queued and
// delivered to the registered handler by Run.
type Bus struct {
	mu        sync.RWMutex
	accepted  []domain.OrderAccepted
	history   int
	listeners []func(context.Context, domain.OrderAccepted)
	handler   ports.DispatchHandler
	queue     chan int64
	logger    *slog.Logger
	retry     func() backoff.BackOff
	now       func() time.Time
}

type Option func(*Bus)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithRetryPolicy replaces the backoff used when the dispatch handler fails.
func WithRetryPolicy(policy func() backoff.BackOff) Option {
	return func(b *Bus) {
		if policy != nil {
			b.retry = policy
		}
	}
}

// WithQueueSize bounds the number of undelivered dispatch notifications.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan int64, n)
		}
	}
}

// WithHistoryLimit bounds how many accepted notifications Accepted retains.
// Zero disables retention.
func WithHistoryLimit(n int) Option {
	return func(b *Bus) {
		if n >= 0 {
			b.history = n
		}
	}
}

// NewBus returns an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		queue:   make(chan int64, defaultQueueSize),
		history: defaultHistoryLimit,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		retry: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.InitialInterval = 50 * time.Millisecond
			policy.MaxElapsedTime = 0
			return policy
		},
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// PublishAccepted records the notification and hands it to every listener.
func (b *Bus) PublishAccepted(ctx context.Context, orderID int64) error {
	event := domain.OrderAccepted{BaseEvent: domain.BaseEvent{Timestamp: b.now().UTC()}, OrderID: orderID}
	b.mu.Lock()
	if b.history > 0 {
		if len(b.accepted) >= b.history {
			b.accepted = slices.Delete(b.accepted, 0, len(b.accepted)-b.history+1)
		}
		b.accepted = append(b.accepted, event)
	}
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()
	for _, listener := range listeners {
		listener(ctx, event)
	}
	return nil
}

// OnAccepted registers a listener for acceptance notifications.
func (b *Bus) OnAccepted(listener func(context.Context, domain.OrderAccepted)) {
	if listener == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Accepted returns the retained acceptance notifications, oldest first.
func (b *Bus) Accepted() []domain.OrderAccepted {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]domain.OrderAccepted(nil), b.accepted...)
}

// Dispatch enqueues a dispatch notification. It blocks while the queue is full.
func (b *Bus) Dispatch(ctx context.Context, orderID int64) error {
	select {
	case b.queue <- orderID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnDispatched registers the single handler for dispatch notifications.
func (b *Bus) OnDispatched(handler ports.DispatchHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// Run delivers queued dispatch notifications until ctx is cancelled, retrying
// each one until its handler succeeds.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()
	if handler == nil {
		return errors.New("dispatch handler not registered")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case orderID := <-b.queue:
			err := backoff.RetryNotify(func() error {
				return handler(ctx, orderID)
			}, backoff.WithContext(b.retry(), ctx), func(err error, wait time.Duration) {
				b.logger.LogAttrs(ctx, slog.LevelWarn, "dispatch handling failed, retrying",
					slog.Int64("order.id", orderID), slog.Duration("wait", wait), slog.String("error", err.Error()))
			})
			if err != nil && ctx.Err() != nil {
				return nil
			}
		}
	}
}

var (
	_ ports.AcceptedPublisher  = (*Bus)(nil)
	_ ports.DispatchSubscriber = (*Bus)(nil)
)
