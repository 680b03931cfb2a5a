package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory order persistence adapter with optimistic versioning.
type Repository struct {
	mu     sync.RWMutex
	orders map[int64]*domain.Order
	order  []int64
	nextID int64
	now    func() time.Time
}

func NewRepository() *Repository {
	return &Repository{
		orders: map[int64]*domain.Order{},
		now:    time.Now,
	}
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

func (r *Repository) Create(_ context.Context, draft *domain.Order) (*domain.Order, error) {
	if draft == nil {
		return nil, errors.New("order is nil")
	}
	clone := draft.Clone()
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	timestamp := r.now().UTC()
	clone.ID = r.nextID
	clone.CreatedAt = timestamp
	clone.LastModifiedAt = timestamp
	clone.LastModifiedBy = clone.OwnerSubject
	clone.Version = 0
	r.orders[clone.ID] = clone
	r.order = append(r.order, clone.ID)
	return clone.Clone(), nil
}

func (r *Repository) FindByID(_ context.Context, id int64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *Repository) FindAllForSubject(_ context.Context, subject string) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*domain.Order, 0)
	for _, id := range r.order {
		order := r.orders[id]
		if order.OwnerSubject == subject {
			list = append(list, order.Clone())
		}
	}
	return list, nil
}

func (r *Repository) Update(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if stored.Version != order.Version {
		return nil, ports.ErrConflict
	}
	next := order.Clone()
	next.OwnerSubject = stored.OwnerSubject
	next.CreatedAt = stored.CreatedAt
	next.LastModifiedAt = r.now().UTC()
	if next.LastModifiedBy == "" {
		next.LastModifiedBy = stored.LastModifiedBy
	}
	next.Version = stored.Version + 1
	r.orders[next.ID] = next
	return next.Clone(), nil
}
