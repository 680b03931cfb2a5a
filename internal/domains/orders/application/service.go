package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

// dispatchAttempts bounds the read-modify-write cycle of ApplyDispatch: the first try plus one retry.
const dispatchAttempts = 2

// Service orchestrates the order lifecycle: submission and dispatch updates.
type Service struct {
	repo      ports.Repository
	catalog   ports.BookCatalog
	publisher ports.AcceptedPublisher
	logger    *slog.Logger
}

// Option customises the service.
type Option func(*Service)

// WithPublisher enables acceptance notifications after a successful submission.
func WithPublisher(publisher ports.AcceptedPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithLogger routes lifecycle logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the lifecycle with its collaborators.
func NewService(repo ports.Repository, catalog ports.BookCatalog, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		catalog: catalog,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Submit looks the book up, classifies the order, persists it and announces accepted orders.
func (s *Service) Submit(ctx context.Context, input ports.SubmitOrderInput) (*domain.Order, error) {
	isbn := strings.TrimSpace(input.ISBN)
	if isbn == "" {
		return nil, mapError(domain.ErrEmptyISBN)
	}
	if input.Quantity <= 0 {
		return nil, mapError(domain.ErrInvalidQuantity)
	}
	if strings.TrimSpace(input.OwnerSubject) == "" {
		return nil, mapError(domain.ErrMissingSubject)
	}

	draft, err := s.classify(ctx, isbn, input.Quantity, input.OwnerSubject)
	if err != nil {
		return nil, mapError(err)
	}

	saved, err := s.repo.Create(ctx, draft)
	if err != nil {
		return nil, mapError(err)
	}

	// Publication happens only after the order is durable and never undoes it.
	if saved.Status == domain.StatusAccepted && s.publisher != nil {
		if err := s.publisher.PublishAccepted(ctx, saved.ID); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "acceptance notification not sent",
				slog.Int64("order.id", saved.ID), slog.String("error", err.Error()))
		}
	}
	return saved, nil
}

func (s *Service) classify(ctx context.Context, isbn string, quantity int, owner string) (*domain.Order, error) {
	book, ok := s.catalog.Lookup(ctx, isbn)
	if !ok || book == nil {
		return domain.NewRejectedOrder(isbn, quantity, owner)
	}
	return domain.NewAcceptedOrder(*book, quantity, owner)
}

// ApplyDispatch moves an accepted order to DISPATCHED. Unknown, rejected and already
// dispatched orders are ignored, so duplicate notifications are harmless.
func (s *Service) ApplyDispatch(ctx context.Context, orderID int64) (*domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt < dispatchAttempts; attempt++ {
		current, err := s.repo.FindByID(ctx, orderID)
		if errors.Is(err, ports.ErrNotFound) {
			s.logger.LogAttrs(ctx, slog.LevelInfo, "dispatch notification for unknown order ignored", slog.Int64("order.id", orderID))
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !current.CanDispatch() {
			s.logger.LogAttrs(ctx, slog.LevelInfo, "dispatch notification ignored",
				slog.Int64("order.id", orderID), slog.String("order.status", string(current.Status)))
			return nil, nil
		}
		next, err := current.Dispatched()
		if err != nil {
			return nil, err
		}
		updated, err := s.repo.Update(ctx, next)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ports.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.LogAttrs(ctx, slog.LevelWarn, "dispatch update conflicted",
			slog.Int64("order.id", orderID), slog.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("%w: %w", ErrDispatchRetryable, lastErr)
}

// ListForSubject returns the orders owned by subject.
func (s *Service) ListForSubject(ctx context.Context, subject string) ([]*domain.Order, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, mapError(domain.ErrMissingSubject)
	}
	return s.repo.FindAllForSubject(ctx, subject)
}

// PublishAccepted sends the acceptance notification for a stored order that is still ACCEPTED.
func (s *Service) PublishAccepted(ctx context.Context, orderID int64) error {
	if s.publisher == nil {
		return ErrPublisherNotConfigured
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.StatusAccepted {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "skipping acceptance notification",
			slog.Int64("order.id", orderID), slog.String("order.status", string(order.Status)))
		return nil
	}
	return s.publisher.PublishAccepted(ctx, orderID)
}

var _ ports.Service = (*Service)(nil)
