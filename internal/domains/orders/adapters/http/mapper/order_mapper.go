package mapper

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

var (
	errMissingISBN     = errors.New("isbn is required")
	errMissingQuantity = errors.New("quantity is required")
	errBadQuantity     = errors.New("quantity must be greater than zero")
)

// OrderRequest is the submission payload. Quantity is a pointer so absence can be told apart from zero.
type OrderRequest struct {
	ISBN     string `json:"isbn"`
	Quantity *int   `json:"quantity"`
}

// Validate checks the payload before it reaches the lifecycle.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.ISBN) == "" {
		return errMissingISBN
	}
	if r.Quantity == nil {
		return errMissingQuantity
	}
	if *r.Quantity <= 0 {
		return errBadQuantity
	}
	return nil
}

// Order is the HTTP representation of a stored order.
type Order struct {
	ID               int64        `json:"id"`
	BookISBN         string       `json:"bookIsbn"`
	BookName         *string      `json:"bookName"`
	BookPrice        *json.Number `json:"bookPrice"`
	Quantity         int          `json:"quantity"`
	Status           string       `json:"status"`
	CreatedDate      time.Time    `json:"createdDate"`
	LastModifiedDate time.Time    `json:"lastModifiedDate"`
	CreatedBy        string       `json:"createdBy"`
	LastModifiedBy   string       `json:"lastModifiedBy"`
	Version          int          `json:"version"`
}

// ToSubmitInput maps a validated request and the caller identity to a lifecycle input.
func ToSubmitInput(req OrderRequest, subject string) ports.SubmitOrderInput {
	input := ports.SubmitOrderInput{
		ISBN:         strings.TrimSpace(req.ISBN),
		OwnerSubject: subject,
	}
	if req.Quantity != nil {
		input.Quantity = *req.Quantity
	}
	return input
}

// FromDomainOrder maps a domain order into its transport shape. Prices keep two decimals.
func FromDomainOrder(o *domain.Order) Order {
	out := Order{
		ID:               o.ID,
		BookISBN:         o.BookISBN,
		Quantity:         o.Quantity,
		Status:           string(o.Status),
		CreatedDate:      o.CreatedAt,
		LastModifiedDate: o.LastModifiedAt,
		CreatedBy:        o.OwnerSubject,
		LastModifiedBy:   o.LastModifiedBy,
		Version:          o.Version,
	}
	if o.BookName != nil {
		name := *o.BookName
		out.BookName = &name
	}
	if o.BookPrice != nil {
		price := json.Number(o.BookPrice.StringFixed(domain.PriceScale))
		out.BookPrice = &price
	}
	return out
}

// FromDomainOrders maps a list, never returning nil so it encodes as [].
func FromDomainOrders(orders []*domain.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o != nil {
			out = append(out, FromDomainOrder(o))
		}
	}
	return out
}
