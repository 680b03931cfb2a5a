package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists orders in PostgreSQL using GORM. Schema is owned by platform/migrations.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type orderRecord struct {
	ID             int64            `gorm:"primaryKey;autoIncrement;column:id"`
	BookISBN       string           `gorm:"column:book_isbn"`
	BookName       *string          `gorm:"column:book_name"`
	BookPrice      *decimal.Decimal `gorm:"column:book_price;type:numeric(12,2)"`
	Quantity       int              `gorm:"column:quantity"`
	Status         string           `gorm:"column:status"`
	CreatedBy      string           `gorm:"column:created_by"`
	LastModifiedBy string           `gorm:"column:last_modified_by"`
	CreatedAt      time.Time        `gorm:"column:created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at"`
	Version        int              `gorm:"column:version"`
}

func (orderRecord) TableName() string { return "orders" }

// Create inserts a new order and lets the database assign its identifier.
func (r *Repository) Create(ctx context.Context, draft *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, errors.New("order is nil")
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	record := toRecord(draft)
	record.ID = 0
	record.Version = 0
	record.LastModifiedBy = record.CreatedBy
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, unavailable(err)
	}
	return record.toDomain()
}

// FindByID fetches an order by identifier.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record orderRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return record.toDomain()
}

// FindAllForSubject lists a subject's orders oldest first.
func (r *Repository) FindAllForSubject(ctx context.Context, subject string) ([]*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []orderRecord
	if err := r.db.WithContext(ctx).
		Where("created_by = ?", subject).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, unavailable(err)
	}
	orders := make([]*domain.Order, 0, len(records))
	for i := range records {
		order, err := records[i].toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Update writes the order only when the stored version still matches order.Version.
func (r *Repository) Update(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	record := toRecord(order)
	changes := map[string]any{
		"book_isbn":  record.BookISBN,
		"book_name":  record.BookName,
		"book_price": record.BookPrice,
		"quantity":   record.Quantity,
		"status":     record.Status,
		"updated_at": time.Now().UTC(),
		"version":    gorm.Expr("version + 1"),
	}
	if record.LastModifiedBy != "" {
		changes["last_modified_by"] = record.LastModifiedBy
	}
	result := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(changes)
	if result.Error != nil {
		return nil, unavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, order.ID); err != nil {
			return nil, err
		}
		return nil, ports.ErrConflict
	}
	return r.FindByID(ctx, order.ID)
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return fmt.Errorf("%w: postgres order repository not configured", ports.ErrStoreUnavailable)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ports.ErrStoreUnavailable, err)
}

func toRecord(order *domain.Order) orderRecord {
	rec := orderRecord{
		ID:             order.ID,
		BookISBN:       order.BookISBN,
		Quantity:       order.Quantity,
		Status:         string(order.Status),
		CreatedBy:      order.OwnerSubject,
		LastModifiedBy: order.LastModifiedBy,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.LastModifiedAt,
		Version:        order.Version,
	}
	if order.BookName != nil {
		name := *order.BookName
		rec.BookName = &name
	}
	if order.BookPrice != nil {
		price := *order.BookPrice
		rec.BookPrice = &price
	}
	return rec
}

func (r orderRecord) toDomain() (*domain.Order, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", r.ID, err)
	}
	return &domain.Order{
		ID:             r.ID,
		BookISBN:       r.BookISBN,
		BookName:       r.BookName,
		BookPrice:      r.BookPrice,
		Quantity:       r.Quantity,
		Status:         status,
		OwnerSubject:   r.CreatedBy,
		LastModifiedBy: r.LastModifiedBy,
		CreatedAt:      r.CreatedAt.UTC(),
		LastModifiedAt: r.UpdatedAt.UTC(),
		Version:        r.Version,
	}, nil
}
