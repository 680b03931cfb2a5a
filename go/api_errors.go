package orderserver

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/application"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	apierrors "github.com/Apurer/bookshop-order-service/internal/shared/errors"
)

var orderResponder = apierrors.NewResponder("", mapOrderError)

// mapOrderError translates order lifecycle failures. Store internals never reach the body.
func mapOrderError(err error) (apierrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, domain.ErrMissingSubject):
		return apierrors.ErrUnauthorized.WithDetail("caller identity is required"), true
	case errors.Is(err, application.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, ports.ErrStoreUnavailable):
		return apierrors.ErrServiceUnavailable.WithDetail("order store is unavailable"), true
	}
	return apierrors.ProblemDetail{}, false
}

func respondProblem(c *gin.Context, problem apierrors.ProblemDetail) {
	orderResponder.Respond(c, problem)
}

func respondOrderError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	orderResponder.RespondError(c, err)
}
