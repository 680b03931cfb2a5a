package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/application"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

const (
	// SubmitOrderActivityName looks the book up, classifies and persists an order without notifying anyone.
	SubmitOrderActivityName = "orders.activities.SubmitOrder"
	// PublishOrderAcceptedActivityName sends the acceptance notification for a persisted order.
	PublishOrderAcceptedActivityName = "orders.activities.PublishOrderAccepted"

	// InvalidInputErrorType marks submissions rejected by domain validation.
	InvalidInputErrorType = "InvalidOrderInput"
	// StoreUnavailableErrorType marks submissions that failed because the order store was unreachable.
	StoreUnavailableErrorType = "OrderStoreUnavailable"
)

// Activities groups activities that operate on the orders bounded context.
type Activities struct {
	submitter ports.Service
	notifier  ports.Service
}

// NewActivities wires the order collaborators into the Temporal activities bundle.
// submitter must be built without a publisher so acceptance is only sent by PublishOrderAccepted.
// A nil notifier turns publication into a logged no-op.
func NewActivities(submitter ports.Service, notifier ports.Service) *Activities {
	return &Activities{submitter: submitter, notifier: notifier}
}

// SubmitOrder runs the lookup, classification and persistence steps.
func (a *Activities) SubmitOrder(ctx context.Context, input ports.SubmitOrderInput) (*domain.Order, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.submitter == nil {
		logger.Error("order submit activity not initialized", "isbn", input.ISBN)
		return nil, errors.New("order submit activity not initialized")
	}
	logger.Info("SubmitOrder activity started", "isbn", input.ISBN, "quantity", input.Quantity)
	order, err := a.submitter.Submit(ctx, input)
	if err != nil {
		logger.Error("SubmitOrder activity failed", "isbn", input.ISBN, "error", err)
		switch {
		case errors.Is(err, application.ErrInvalidInput):
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), InvalidInputErrorType, err)
		case errors.Is(err, ports.ErrStoreUnavailable):
			return nil, temporal.NewApplicationErrorWithCause(err.Error(), StoreUnavailableErrorType, err)
		}
		return nil, err
	}
	logger.Info("SubmitOrder activity completed", "orderId", order.ID, "status", string(order.Status))
	return order, nil
}

// PublishOrderAccepted sends the acceptance notification. Earlier successful attempts are remembered via heartbeat.
func (a *Activities) PublishOrderAccepted(ctx context.Context, orderID int64) error {
	logger := activity.GetLogger(ctx)
	if a == nil {
		logger.Error("order publish activity not initialized", "orderId", orderID)
		return errors.New("order publish activity not initialized")
	}
	if a.notifier == nil {
		logger.Info("acceptance publisher not configured; skipping", "orderId", orderID)
		return nil
	}

	var hb publishHeartbeat
	if activity.HasHeartbeatDetails(ctx) {
		_ = activity.GetHeartbeatDetails(ctx, &hb)
	}
	if hb.Completed {
		logger.Info("PublishOrderAccepted already completed in prior attempt; skipping", "orderId", orderID)
		return nil
	}

	logger.Info("PublishOrderAccepted activity started", "orderId", orderID)
	if err := a.notifier.PublishAccepted(ctx, orderID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			logger.Warn("PublishOrderAccepted order not found; skipping", "orderId", orderID)
			return nil
		}
		logger.Error("PublishOrderAccepted failed", "orderId", orderID, "error", err)
		return err
	}
	activity.RecordHeartbeat(ctx, publishHeartbeat{Completed: true})
	logger.Info("PublishOrderAccepted activity completed", "orderId", orderID)
	return nil
}

type publishHeartbeat struct {
	Completed bool
}
