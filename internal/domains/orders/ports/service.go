package ports

import (
	"context"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
)

// SubmitOrderInput carries a validated submission request.
type SubmitOrderInput struct {
	ISBN         string
	Quantity     int
	OwnerSubject string
}

// Service exposes the order lifecycle to adapters (inbound/driving port).
type Service interface {
	Submit(ctx context.Context, input SubmitOrderInput) (*domain.Order, error)
	// ApplyDispatch returns nil without error when the notification does not advance the order.
	ApplyDispatch(ctx context.Context, orderID int64) (*domain.Order, error)
	ListForSubject(ctx context.Context, subject string) ([]*domain.Order, error)
	// PublishAccepted re-sends the acceptance notification for a stored accepted order.
	PublishAccepted(ctx context.Context, orderID int64) error
}
