package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates order progression.
type Status string

const (
	StatusAccepted   Status = "ACCEPTED"
	StatusRejected   Status = "REJECTED"
	StatusDispatched Status = "DISPATCHED"
)

var (
	ErrEmptyISBN          = errors.New("book isbn is required")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrInvalidStatus      = errors.New("order status is invalid")
	ErrMissingSubject     = errors.New("owner subject is required")
	ErrIncompleteBookInfo = errors.New("accepted and dispatched orders carry book name and price")
	ErrUnexpectedBookInfo = errors.New("rejected orders carry no book name or price")
	ErrIllegalTransition  = errors.New("order status transition is not allowed")
)

// Order models the bookshop purchase order aggregate.
type Order struct {
	ID             int64
	BookISBN       string
	BookName       *string
	BookPrice      *decimal.Decimal
	Quantity       int
	Status         Status
	OwnerSubject   string
	LastModifiedBy string
	CreatedAt      time.Time
	LastModifiedAt time.Time
	Version        int
}

// PriceScale is the number of decimal places an order keeps for the book price.
const PriceScale = 2

// NewAcceptedOrder builds an order for a book the catalog knows about. The price
// is rounded to PriceScale so every store holds the same value.
func NewAcceptedOrder(book Book, quantity int, owner string) (*Order, error) {
	name := book.DisplayName()
	price := book.Price.Round(PriceScale)
	order := &Order{
		BookISBN:     strings.TrimSpace(book.ISBN),
		BookName:     &name,
		BookPrice:    &price,
		Quantity:     quantity,
		Status:       StatusAccepted,
		OwnerSubject: owner,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// NewRejectedOrder builds an order for a book that could not be found.
func NewRejectedOrder(isbn string, quantity int, owner string) (*Order, error) {
	order := &Order{
		BookISBN:     strings.TrimSpace(isbn),
		Quantity:     quantity,
		Status:       StatusRejected,
		OwnerSubject: owner,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate enforces invariants on the aggregate.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.BookISBN) == "" {
		return ErrEmptyISBN
	}
	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(o.OwnerSubject) == "" {
		return ErrMissingSubject
	}
	switch o.Status {
	case StatusAccepted, StatusDispatched:
		if o.BookName == nil || o.BookPrice == nil {
			return ErrIncompleteBookInfo
		}
	case StatusRejected:
		if o.BookName != nil || o.BookPrice != nil {
			return ErrUnexpectedBookInfo
		}
	default:
		return ErrInvalidStatus
	}
	return nil
}

// CanDispatch reports whether a dispatch notification moves this order forward.
func (o *Order) CanDispatch() bool {
	return o != nil && o.Status == StatusAccepted
}

// Dispatched returns a copy of the order in the DISPATCHED state.
// The receiver is left untouched so callers keep the version they read.
func (o *Order) Dispatched() (*Order, error) {
	if !o.CanDispatch() {
		return nil, ErrIllegalTransition
	}
	next := o.Clone()
	next.Status = StatusDispatched
	return next, nil
}

// Clone deep-copies the order, including optional book fields.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.BookName != nil {
		name := *o.BookName
		clone.BookName = &name
	}
	if o.BookPrice != nil {
		price := *o.BookPrice
		clone.BookPrice = &price
	}
	return &clone
}

// ParseStatus validates a persisted or transported status value.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case StatusAccepted, StatusRejected, StatusDispatched:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}
