package orders

import (
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	"github.com/Apurer/bookshop-order-service/internal/platform/temporal/sequences"
)

const (
	// OrderSubmissionWorkflowName is the public identifier for registering the workflow.
	OrderSubmissionWorkflowName = "orders.workflows.Submission"
	// AcceptedNotificationWorkflowName identifies the child workflow that announces accepted orders.
	AcceptedNotificationWorkflowName = "orders.workflows.AcceptedNotification"
	// OrderSubmissionTaskQueue is the queue consumed by the worker processing order workflows.
	OrderSubmissionTaskQueue = "ORDER_SUBMISSION"
)

// OrderSubmissionWorkflowInput captures the payload required to submit an order.
type OrderSubmissionWorkflowInput struct {
	Command ports.SubmitOrderInput
	TraceID string
}

// AcceptedNotificationWorkflowInput identifies the order to announce.
type AcceptedNotificationWorkflowInput struct {
	OrderID int64
	TraceID string
}

// OrderSubmissionWorkflow persists the order and hands acceptance publication to an abandoned
// child workflow, so the caller gets the order without waiting for the broker.
func OrderSubmissionWorkflow(ctx workflow.Context, input OrderSubmissionWorkflowInput) (*domain.Order, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("OrderSubmissionWorkflow started", withTraceID(input.TraceID, "isbn", input.Command.ISBN)...)
	order, err := sequences.RunOrderSubmissionSequence(ctx, input.Command)
	if err != nil {
		logger.Error("OrderSubmissionWorkflow failed", withTraceID(input.TraceID, "isbn", input.Command.ISBN, "error", err)...)
		return nil, err
	}
	if order.Status == domain.StatusAccepted {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID:        fmt.Sprintf("order-accepted-notification-%d", order.ID),
			TaskQueue:         OrderSubmissionTaskQueue,
			ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_ABANDON,
		})
		child := workflow.ExecuteChildWorkflow(childCtx, AcceptedNotificationWorkflowName,
			AcceptedNotificationWorkflowInput{OrderID: order.ID, TraceID: input.TraceID})
		var execution workflow.Execution
		if err := child.GetChildWorkflowExecution().Get(ctx, &execution); err != nil {
			// The order is durable; a lost notification is logged rather than failing submission.
			logger.Error("accepted notification not scheduled", withTraceID(input.TraceID, "orderId", order.ID, "error", err)...)
		}
	}
	logger.Info("OrderSubmissionWorkflow completed", withTraceID(input.TraceID, "orderId", order.ID, "status", string(order.Status))...)
	return order, nil
}

// AcceptedNotificationWorkflow publishes the acceptance notification until it succeeds or retries run out.
func AcceptedNotificationWorkflow(ctx workflow.Context, input AcceptedNotificationWorkflowInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("AcceptedNotificationWorkflow started", withTraceID(input.TraceID, "orderId", input.OrderID)...)
	return sequences.RunAcceptedNotificationSequence(ctx, input.OrderID)
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
