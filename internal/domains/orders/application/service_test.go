package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	ordersmemory "github.com/Apurer/bookshop-order-service/internal/domains/orders/adapters/memory"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

type fakeCatalog struct {
	books map[string]domain.Book
	calls int
}

func (f *fakeCatalog) Lookup(_ context.Context, isbn string) (*domain.Book, bool) {
	f.calls++
	book, ok := f.books[isbn]
	if !ok {
		return nil, false
	}
	return &book, true
}

type fakePublisher struct {
	mu        sync.Mutex
	published []int64
	err       error
}

func (f *fakePublisher) PublishAccepted(_ context.Context, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, orderID)
	return nil
}

// conflictingRepo lets another writer win the first n updates.
type conflictingRepo struct {
	ports.Repository
	conflicts int
	onConflict func()
}

func (r *conflictingRepo) Update(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if r.conflicts > 0 {
		r.conflicts--
		if r.onConflict != nil {
			r.onConflict()
		}
		return nil, ports.ErrConflict
	}
	return r.Repository.Update(ctx, order)
}

func catalogWithBook() *fakeCatalog {
	return &fakeCatalog{books: map[string]domain.Book{
		"1234567893": {ISBN: "1234567893", Title: "Title", Author: "Author", Price: decimal.RequireFromString("9.90")},
	}}
}

func TestSubmit_BookFoundAcceptsAndPublishes(t *testing.T) {
	repo := ordersmemory.NewRepository()
	publisher := &fakePublisher{}
	svc := NewService(repo, catalogWithBook(), WithPublisher(publisher))

	order, err := svc.Submit(context.Background(), ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, order.Status)
	require.Equal(t, "Title - Author", *order.BookName)
	require.True(t, order.BookPrice.Equal(decimal.RequireFromString("9.90")))
	require.NotZero(t, order.ID)
	require.Equal(t, []int64{order.ID}, publisher.published)
}

func TestSubmit_BookMissingRejectsWithoutPublishing(t *testing.T) {
	repo := ordersmemory.NewRepository()
	publisher := &fakePublisher{}
	svc := NewService(repo, catalogWithBook(), WithPublisher(publisher))

	order, err := svc.Submit(context.Background(), ports.SubmitOrderInput{ISBN: "1234567894", Quantity: 3, OwnerSubject: "bjorn"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, order.Status)
	require.Equal(t, 3, order.Quantity)
	require.Nil(t, order.BookName)
	require.Nil(t, order.BookPrice)
	require.Empty(t, publisher.published)
}

func TestSubmit_PublishFailureKeepsOrder(t *testing.T) {
	repo := ordersmemory.NewRepository()
	publisher := &fakePublisher{err: errors.New("broker down")}
	svc := NewService(repo, catalogWithBook(), WithPublisher(publisher))

	order, err := svc.Submit(context.Background(), ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, order.Status)

	stored, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, stored.ID)
}

func TestSubmit_InvalidInputNeverReachesCatalog(t *testing.T) {
	catalog := catalogWithBook()
	svc := NewService(ordersmemory.NewRepository(), catalog)

	inputs := []ports.SubmitOrderInput{
		{ISBN: " ", Quantity: 1, OwnerSubject: "bjorn"},
		{ISBN: "1234567893", Quantity: 0, OwnerSubject: "bjorn"},
		{ISBN: "1234567893", Quantity: 1},
	}
	for _, input := range inputs {
		_, err := svc.Submit(context.Background(), input)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	require.Zero(t, catalog.calls)
}

func TestApplyDispatch_IsIdempotent(t *testing.T) {
	repo := ordersmemory.NewRepository()
	svc := NewService(repo, catalogWithBook())
	ctx := context.Background()
	order, err := svc.Submit(ctx, ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)

	first, err := svc.ApplyDispatch(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, domain.StatusDispatched, first.Status)
	require.Equal(t, order.Version+1, first.Version)

	second, err := svc.ApplyDispatch(ctx, order.ID)
	require.NoError(t, err)
	require.Nil(t, second)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDispatched, stored.Status)
	require.Equal(t, order.Version+1, stored.Version)
}

func TestApplyDispatch_IgnoresUnknownAndRejected(t *testing.T) {
	repo := ordersmemory.NewRepository()
	svc := NewService(repo, catalogWithBook())
	ctx := context.Background()

	result, err := svc.ApplyDispatch(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, result)

	rejected, err := svc.Submit(ctx, ports.SubmitOrderInput{ISBN: "0000000000", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)
	result, err = svc.ApplyDispatch(ctx, rejected.ID)
	require.NoError(t, err)
	require.Nil(t, result)

	stored, err := repo.FindByID(ctx, rejected.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, stored.Status)
	require.Equal(t, 0, stored.Version)
}

func TestApplyDispatch_RetriesOnceAfterConflict(t *testing.T) {
	inner := ordersmemory.NewRepository()
	repo := &conflictingRepo{Repository: inner, conflicts: 1}
	svc := NewService(repo, catalogWithBook())
	ctx := context.Background()
	order, err := svc.Submit(ctx, ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)

	updated, err := svc.ApplyDispatch(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDispatched, updated.Status)
}

func TestApplyDispatch_ConcurrentWinnerMakesRetryANoop(t *testing.T) {
	inner := ordersmemory.NewRepository()
	ctx := context.Background()
	svc := NewService(inner, catalogWithBook())
	order, err := svc.Submit(ctx, ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)

	// The rival writer dispatches the order between our read and our write.
	repo := &conflictingRepo{Repository: inner, conflicts: 1, onConflict: func() {
		current, err := inner.FindByID(ctx, order.ID)
		require.NoError(t, err)
		next, err := current.Dispatched()
		require.NoError(t, err)
		_, err = inner.Update(ctx, next)
		require.NoError(t, err)
	}}
	racing := NewService(repo, catalogWithBook())

	result, err := racing.ApplyDispatch(ctx, order.ID)
	require.NoError(t, err)
	require.Nil(t, result)

	stored, err := inner.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDispatched, stored.Status)
	require.Equal(t, order.Version+1, stored.Version)
}

func TestApplyDispatch_PersistentConflictIsRetryable(t *testing.T) {
	inner := ordersmemory.NewRepository()
	repo := &conflictingRepo{Repository: inner, conflicts: dispatchAttempts}
	svc := NewService(repo, catalogWithBook())
	ctx := context.Background()
	order, err := svc.Submit(ctx, ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)

	_, err = svc.ApplyDispatch(ctx, order.ID)
	require.ErrorIs(t, err, ErrDispatchRetryable)
	require.ErrorIs(t, err, ports.ErrConflict)

	stored, err := inner.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, stored.Status)
}

func TestListForSubject_ScopesByOwner(t *testing.T) {
	svc := NewService(ordersmemory.NewRepository(), catalogWithBook())
	ctx := context.Background()
	bjorn, err := svc.Submit(ctx, ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "isabelle"})
	require.NoError(t, err)

	list, err := svc.ListForSubject(ctx, "bjorn")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, bjorn.ID, list[0].ID)

	_, err = svc.ListForSubject(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPublishAccepted_OnlyForAcceptedOrders(t *testing.T) {
	repo := ordersmemory.NewRepository()
	publisher := &fakePublisher{}
	ctx := context.Background()
	submitter := NewService(repo, catalogWithBook())
	accepted, err := submitter.Submit(ctx, ports.SubmitOrderInput{ISBN: "1234567893", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)
	rejected, err := submitter.Submit(ctx, ports.SubmitOrderInput{ISBN: "missing", Quantity: 1, OwnerSubject: "bjorn"})
	require.NoError(t, err)

	require.ErrorIs(t, submitter.PublishAccepted(ctx, accepted.ID), ErrPublisherNotConfigured)

	svc := NewService(repo, catalogWithBook(), WithPublisher(publisher))
	require.NoError(t, svc.PublishAccepted(ctx, accepted.ID))
	require.NoError(t, svc.PublishAccepted(ctx, rejected.ID))
	require.ErrorIs(t, svc.PublishAccepted(ctx, 999), ports.ErrNotFound)
	require.Equal(t, []int64{accepted.ID}, publisher.published)
}
