package memory

import (
	"context"
	"sync"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

// DeliveryLedger keeps processed delivery keys in memory.
type DeliveryLedger struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewDeliveryLedger returns an empty ledger.
func NewDeliveryLedger() *DeliveryLedger {
	return &DeliveryLedger{keys: make(map[string]struct{})}
}

func (l *DeliveryLedger) Processed(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.keys[key]
	return ok, nil
}

func (l *DeliveryLedger) MarkProcessed(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = struct{}{}
	return nil
}

var _ ports.DeliveryLedger = (*DeliveryLedger)(nil)
