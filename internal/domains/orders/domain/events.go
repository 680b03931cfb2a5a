package domain

import "time"

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// OrderAccepted is published once an accepted order has been persisted.
type OrderAccepted struct {
	BaseEvent
	OrderID int64
}

// EventName returns the event type identifier.
func (e OrderAccepted) EventName() string {
	return "orders.order.accepted"
}

// OrderDispatched arrives from the dispatcher when an order leaves the warehouse.
type OrderDispatched struct {
	BaseEvent
	OrderID int64
}

// EventName returns the event type identifier.
func (e OrderDispatched) EventName() string {
	return "orders.order.dispatched"
}
