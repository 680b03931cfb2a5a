package ports

import (
	"context"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
)

// BookCatalog resolves books by ISBN. A nil book with ok=false means the book is
// absent or the catalog could not be reached; implementations never return errors.
type BookCatalog interface {
	Lookup(ctx context.Context, isbn string) (book *domain.Book, ok bool)
}
