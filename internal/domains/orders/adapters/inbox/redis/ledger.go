package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

const (
	keyPrefix  = "orders:delivery:"
	defaultTTL = 7 * 24 * time.Hour
)

// Ledger remembers processed deliveries in Redis with a bounded retention.
type Ledger struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// NewLedger wires a Redis-backed ledger. A non-positive ttl keeps keys for a week.
func NewLedger(rdb goredis.Cmdable, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Ledger{rdb: rdb, ttl: ttl}
}

// Processed reports whether key was marked before.
func (l *Ledger) Processed(ctx context.Context, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return false, errors.New("redis delivery ledger not configured")
	}
	n, err := l.rdb.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed records key. Marking twice keeps the first timestamp.
func (l *Ledger) MarkProcessed(ctx context.Context, key string) error {
	if l == nil || l.rdb == nil {
		return errors.New("redis delivery ledger not configured")
	}
	return l.rdb.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339Nano), l.ttl).Err()
}

var _ ports.DeliveryLedger = (*Ledger)(nil)
