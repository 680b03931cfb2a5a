package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

var _ ports.DeliveryLedger = (*DeliveryLedger)(nil)

// DeliveryLedger remembers processed notification deliveries in PostgreSQL.
type DeliveryLedger struct {
	db *gorm.DB
}

// DefaultDeliveryRetention bounds how long processed delivery keys are kept.
const DefaultDeliveryRetention = 7 * 24 * time.Hour

// NewDeliveryLedger wires a PostgreSQL-backed ledger.
func NewDeliveryLedger(db *gorm.DB) *DeliveryLedger {
	return &DeliveryLedger{db: db}
}

type deliveryRecord struct {
	Key       string    `gorm:"primaryKey;column:key;size:255"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (deliveryRecord) TableName() string { return "processed_deliveries" }

// Processed reports whether key was marked before.
func (l *DeliveryLedger) Processed(ctx context.Context, key string) (bool, error) {
	if err := l.ensureDB(); err != nil {
		return false, err
	}
	var record deliveryRecord
	if err := l.db.WithContext(ctx).First(&record, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, unavailable(err)
	}
	return true, nil
}

// MarkProcessed records key; marking twice is not an error.
func (l *DeliveryLedger) MarkProcessed(ctx context.Context, key string) error {
	if err := l.ensureDB(); err != nil {
		return err
	}
	record := deliveryRecord{Key: key, CreatedAt: time.Now().UTC()}
	if err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

// PurgeOlderThan deletes keys recorded before cutoff and returns how many were removed.
func (l *DeliveryLedger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := l.ensureDB(); err != nil {
		return 0, err
	}
	result := l.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&deliveryRecord{})
	if result.Error != nil {
		return 0, unavailable(result.Error)
	}
	return result.RowsAffected, nil
}

func (l *DeliveryLedger) ensureDB() error {
	if l == nil || l.db == nil {
		return errors.New("postgres delivery ledger not configured")
	}
	return nil
}
