package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid order input")
	// ErrDispatchRetryable signals the dispatch update lost the optimistic race twice
	// and the notification should be redelivered.
	ErrDispatchRetryable = errors.New("dispatch update should be retried")
	// ErrPublisherNotConfigured is returned when an explicit publish is requested without a gateway.
	ErrPublisherNotConfigured = errors.New("accepted publisher not configured")
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrEmptyISBN) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, domain.ErrMissingSubject) ||
		errors.Is(err, domain.ErrInvalidStatus) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
