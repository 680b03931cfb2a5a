package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	platformkafka "github.com/Apurer/bookshop-order-service/internal/platform/kafka"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher emits order-accepted notifications to Kafka.
type Publisher struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

// NewPublisher wires a writer and the outbound topic.
func NewPublisher(writer MessageWriter, topic string) *Publisher {
	return &Publisher{writer: writer, topic: strings.TrimSpace(topic), now: time.Now}
}

// PublishAccepted writes {"orderId": id} keyed by the order id so one order stays on one partition.
func (p *Publisher) PublishAccepted(ctx context.Context, orderID int64) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka publisher not configured")
	}
	if p.topic == "" {
		return errors.New("kafka accepted topic is required")
	}
	event := domain.OrderAccepted{BaseEvent: domain.BaseEvent{Timestamp: p.now().UTC()}, OrderID: orderID}
	payload, err := json.Marshal(orderMessage{OrderID: event.OrderID})
	if err != nil {
		return fmt.Errorf("encode accepted message: %w", err)
	}
	headers := []kafka.Header{
		{Key: headerEventType, Value: []byte(event.EventName())},
		{Key: headerEventID, Value: []byte(uuid.NewString())},
		{Key: headerOccurredAt, Value: []byte(event.OccurredAt().Format(time.RFC3339Nano))},
	}
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(strconv.FormatInt(orderID, 10)),
		Value:   payload,
		Headers: platformkafka.InjectHeaders(ctx, headers),
		Time:    event.OccurredAt(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order %d accepted: %w", orderID, err)
	}
	return nil
}

var _ ports.AcceptedPublisher = (*Publisher)(nil)
var _ MessageWriter = (*kafka.Writer)(nil)
