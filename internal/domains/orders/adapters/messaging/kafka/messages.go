package kafka

import "fmt"

const (
	headerEventType  = "event_type"
	headerEventID    = "event_id"
	headerOccurredAt = "occurred_at"
)

// orderMessage is the wire shape of both acceptance and dispatch notifications.
type orderMessage struct {
	OrderID int64 `json:"orderId"`
}

// DeliveryKey identifies one broker delivery for the ledger.
func DeliveryKey(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%d:%d", topic, partition, offset)
}
