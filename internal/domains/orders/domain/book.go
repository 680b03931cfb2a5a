package domain

import "github.com/shopspring/decimal"

// Book is the read-only catalog projection returned by a lookup.
type Book struct {
	ISBN   string          `json:"isbn"`
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Price  decimal.Decimal `json:"price"`
}

// DisplayName renders the name stored on accepted orders.
func (b Book) DisplayName() string {
	return b.Title + " - " + b.Author
}
