package migrations

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run applies the order service schema. Adapters never automigrate on their own.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&orderRecord{},
		&deliveryRecord{},
	)
}

// Order schema mirrors the orders Postgres adapter.
type orderRecord struct {
	ID             int64            `gorm:"primaryKey;autoIncrement;column:id"`
	BookISBN       string           `gorm:"column:book_isbn;size:32;not null"`
	BookName       *string          `gorm:"column:book_name"`
	BookPrice      *decimal.Decimal `gorm:"column:book_price;type:numeric(12,2)"`
	Quantity       int              `gorm:"column:quantity;not null"`
	Status         string           `gorm:"column:status;type:varchar(32);not null;index"`
	CreatedBy      string           `gorm:"column:created_by;not null;index"`
	LastModifiedBy string           `gorm:"column:last_modified_by;not null"`
	CreatedAt      time.Time        `gorm:"column:created_at;index"`
	UpdatedAt      time.Time        `gorm:"column:updated_at"`
	Version        int              `gorm:"column:version;not null;default:0"`
}

func (orderRecord) TableName() string { return "orders" }

// Delivery schema mirrors the inbox ledger.
type deliveryRecord struct {
	Key       string    `gorm:"primaryKey;column:key;size:255"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (deliveryRecord) TableName() string { return "processed_deliveries" }
