package orderserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ordermapper "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/http/mapper"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	apierrors "github.com/Apurer/bookshop-order-service/internal/shared/errors"
)

// OrdersAPI wires HTTP transport with the orders bounded context service and workflows.
type OrdersAPI struct {
	service   ports.Service
	workflows ports.WorkflowOrchestrator
}

// NewOrdersAPI creates an OrdersAPI. Submissions go through workflows, listings straight to the service.
func NewOrdersAPI(service ports.Service, workflows ports.WorkflowOrchestrator) OrdersAPI {
	return OrdersAPI{service: service, workflows: workflows}
}

// Post /orders
// Submit an order for a book on behalf of the caller
func (api *OrdersAPI) SubmitOrder(c *gin.Context) {
	subject, ok := SubjectFromContext(c)
	if !ok {
		respondProblem(c, apierrors.ErrUnauthorized)
		return
	}
	var payload ordermapper.OrderRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	if err := payload.Validate(); err != nil {
		respondProblem(c, apierrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	order, err := api.workflows.SubmitOrder(c.Request.Context(), ordermapper.ToSubmitInput(payload, subject))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromDomainOrder(order))
}

// Get /orders
// List the caller's orders
func (api *OrdersAPI) ListOrders(c *gin.Context) {
	subject, ok := SubjectFromContext(c)
	if !ok {
		respondProblem(c, apierrors.ErrUnauthorized)
		return
	}
	orders, err := api.service.ListForSubject(c.Request.Context(), subject)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromDomainOrders(orders))
}
