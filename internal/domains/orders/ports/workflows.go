package ports

import (
	"context"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
)

// WorkflowOrchestrator runs order submission, durably when a workflow engine is available.
type WorkflowOrchestrator interface {
	SubmitOrder(ctx context.Context, input SubmitOrderInput) (*domain.Order, error)
}
