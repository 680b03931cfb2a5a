package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	platformkafka "github.com/Apurer/bookshop-order-service/internal/platform/kafka"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type scriptedReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
	drained   chan struct{}
}

func newScriptedReader(msgs ...kafka.Message) *scriptedReader {
	return &scriptedReader{pending: msgs, drained: make(chan struct{})}
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

type mapLedger struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (l *mapLedger) Processed(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keys[key], nil
}

func (l *mapLedger) MarkProcessed(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = true
	return nil
}

func dispatched(offset int64, value string) kafka.Message {
	return kafka.Message{Topic: "order-dispatched", Partition: 0, Offset: offset, Value: []byte(value)}
}

func fastRetry() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func runUntilDrained(t *testing.T, consumer *Consumer, reader *scriptedReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	select {
	case <-reader.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain messages")
	}
	cancel()
	require.NoError(t, <-done)
	require.True(t, reader.closed)
}

func TestPublisher_WritesOrderMessage(t *testing.T) {
	writer := &recordingWriter{}
	publisher := NewPublisher(writer, "order-accepted")

	require.NoError(t, publisher.PublishAccepted(context.Background(), 42))
	require.Len(t, writer.msgs, 1)

	msg := writer.msgs[0]
	require.Equal(t, "order-accepted", msg.Topic)
	require.Equal(t, "42", string(msg.Key))
	require.JSONEq(t, `{"orderId":42}`, string(msg.Value))
	require.Equal(t, "orders.order.accepted", platformkafka.HeaderValue(msg.Headers, headerEventType))
	require.NotEmpty(t, platformkafka.HeaderValue(msg.Headers, headerEventID))
}

func TestPublisher_PropagatesWriteFailure(t *testing.T) {
	publisher := NewPublisher(&recordingWriter{err: errors.New("leader not available")}, "order-accepted")
	require.Error(t, publisher.PublishAccepted(context.Background(), 7))
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := newScriptedReader(dispatched(1, `{"orderId":42}`), dispatched(2, `{"orderId":43}`))
	var seen []int64
	consumer := NewConsumer(reader, WithRetryPolicy(fastRetry))
	consumer.OnDispatched(func(_ context.Context, orderID int64) error {
		seen = append(seen, orderID)
		return nil
	})

	runUntilDrained(t, consumer, reader)
	require.Equal(t, []int64{42, 43}, seen)
	require.Equal(t, []int64{1, 2}, reader.committed)
}

func TestConsumer_RetriesHandlerBeforeCommitting(t *testing.T) {
	reader := newScriptedReader(dispatched(5, `{"orderId":42}`))
	calls := 0
	consumer := NewConsumer(reader, WithRetryPolicy(fastRetry))
	consumer.OnDispatched(func(context.Context, int64) error {
		calls++
		if calls < 3 {
			return errors.New("conflict")
		}
		return nil
	})

	runUntilDrained(t, consumer, reader)
	require.Equal(t, 3, calls)
	require.Equal(t, []int64{5}, reader.committed)
}

func TestConsumer_SkipsMalformedPayload(t *testing.T) {
	reader := newScriptedReader(dispatched(1, `not json`), dispatched(2, `{"orderId":0}`), dispatched(3, `{"orderId":9}`))
	var seen []int64
	consumer := NewConsumer(reader, WithRetryPolicy(fastRetry))
	consumer.OnDispatched(func(_ context.Context, orderID int64) error {
		seen = append(seen, orderID)
		return nil
	})

	runUntilDrained(t, consumer, reader)
	require.Equal(t, []int64{9}, seen)
	require.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestConsumer_LedgerSkipsProcessedDeliveries(t *testing.T) {
	ledger := &mapLedger{keys: map[string]bool{DeliveryKey("order-dispatched", 0, 1): true}}
	reader := newScriptedReader(dispatched(1, `{"orderId":42}`), dispatched(2, `{"orderId":42}`))
	calls := 0
	consumer := NewConsumer(reader, WithRetryPolicy(fastRetry), WithLedger(ledger))
	consumer.OnDispatched(func(context.Context, int64) error {
		calls++
		return nil
	})

	runUntilDrained(t, consumer, reader)
	require.Equal(t, 1, calls)
	require.Equal(t, []int64{1, 2}, reader.committed)
	require.True(t, ledger.keys[DeliveryKey("order-dispatched", 0, 2)])
}

func TestConsumer_RequiresHandler(t *testing.T) {
	consumer := NewConsumer(newScriptedReader())
	require.Error(t, consumer.Run(context.Background()))
}

func TestConsumer_StopsRetryingOnCancel(t *testing.T) {
	reader := newScriptedReader(dispatched(1, `{"orderId":42}`))
	ctx, cancel := context.WithCancel(context.Background())
	consumer := NewConsumer(reader, WithRetryPolicy(fastRetry))
	consumer.OnDispatched(func(context.Context, int64) error {
		cancel()
		return errors.New("store unavailable")
	})

	require.NoError(t, consumer.Run(ctx))
	require.Empty(t, reader.committed)
}
