package ports

import (
	"context"
	"errors"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrConflict         = errors.New("order version conflict")
	ErrStoreUnavailable = errors.New("order store unavailable")
)

// Repository owns durable order records.
type Repository interface {
	// Create assigns identifier, timestamps and the initial version, then persists the draft.
	Create(ctx context.Context, draft *domain.Order) (*domain.Order, error)
	// FindByID returns ErrNotFound when no order carries the identifier.
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	// FindAllForSubject lists the orders owned by subject in insertion order.
	FindAllForSubject(ctx context.Context, subject string) ([]*domain.Order, error)
	// Update persists the order only when order.Version matches the stored version,
	// returning the stored record with the version bumped by one. ErrConflict otherwise.
	Update(ctx context.Context, order *domain.Order) (*domain.Order, error)
}
