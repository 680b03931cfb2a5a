package ports

import "context"

// AcceptedPublisher sends the acceptance notification for a persisted order.
type AcceptedPublisher interface {
	PublishAccepted(ctx context.Context, orderID int64) error
}

// DispatchHandler processes one dispatch notification. A non-nil error asks the
// channel to redeliver the message.
type DispatchHandler func(ctx context.Context, orderID int64) error

// DispatchSubscriber delivers inbound dispatch notifications to a single handler.
type DispatchSubscriber interface {
	OnDispatched(handler DispatchHandler)
	Run(ctx context.Context) error
}

// DeliveryLedger remembers notifications that were already processed successfully.
type DeliveryLedger interface {
	Processed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
}
