package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	orderactivities "github.com/Apurer/bookshop-order-service/internal/platform/temporal/activities/orders"
)

// RunOrderSubmissionSequence persists the order. Creation is not idempotent, so it is attempted once.
func RunOrderSubmissionSequence(ctx workflow.Context, input ports.SubmitOrderInput) (*domain.Order, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("order submission sequence started", "isbn", input.ISBN)
	submitOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}

	var order domain.Order
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, submitOptions), orderactivities.SubmitOrderActivityName, input).Get(ctx, &order)
	if err != nil {
		logger.Error("order submission sequence failed", "isbn", input.ISBN, "error", err)
		return nil, err
	}
	logger.Info("order submission sequence persisted", "orderId", order.ID, "status", string(order.Status))
	return &order, nil
}

// RunAcceptedNotificationSequence publishes the acceptance notification with its own retry policy.
func RunAcceptedNotificationSequence(ctx workflow.Context, orderID int64) error {
	logger := workflow.GetLogger(ctx)
	publishOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    10,
		},
	}
	if err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, publishOptions), orderactivities.PublishOrderAcceptedActivityName, orderID).Get(ctx, nil); err != nil {
		logger.Error("accepted notification sequence failed", "orderId", orderID, "error", err)
		return err
	}
	logger.Info("accepted notification sequence published", "orderId", orderID)
	return nil
}
