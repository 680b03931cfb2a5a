package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
)

func acceptedDraft(t *testing.T, owner string) *domain.Order {
	t.Helper()
	order, err := domain.NewAcceptedOrder(domain.Book{ISBN: "1234567893", Title: "Title", Author: "Author", Price: decimal.RequireFromString("9.90")}, 1, owner)
	require.NoError(t, err)
	return order
}

func TestCreate_AssignsIdentityAndMetadata(t *testing.T) {
	repo := NewRepository()
	fixed := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	repo.WithClock(func() time.Time { return fixed })

	first, err := repo.Create(context.Background(), acceptedDraft(t, "bjorn"))
	require.NoError(t, err)
	second, err := repo.Create(context.Background(), acceptedDraft(t, "bjorn"))
	require.NoError(t, err)

	require.Equal(t, int64(1), first.ID)
	require.Equal(t, int64(2), second.ID)
	require.Equal(t, 0, first.Version)
	require.Equal(t, fixed, first.CreatedAt)
	require.Equal(t, fixed, first.LastModifiedAt)
	require.Equal(t, "bjorn", first.LastModifiedBy)
}

func TestFindByID_Missing(t *testing.T) {
	repo := NewRepository()
	_, err := repo.FindByID(context.Background(), 397)
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestFindAllForSubject_ScopesToOwner(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	a1, err := repo.Create(ctx, acceptedDraft(t, "bjorn"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, acceptedDraft(t, "isabelle"))
	require.NoError(t, err)
	a2, err := repo.Create(ctx, acceptedDraft(t, "bjorn"))
	require.NoError(t, err)

	list, err := repo.FindAllForSubject(ctx, "bjorn")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, a1.ID, list[0].ID)
	require.Equal(t, a2.ID, list[1].ID)
	for _, order := range list {
		require.Equal(t, "bjorn", order.OwnerSubject)
	}

	empty, err := repo.FindAllForSubject(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestUpdate_BumpsVersionAndRejectsStaleWrites(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, acceptedDraft(t, "bjorn"))
	require.NoError(t, err)

	next, err := created.Dispatched()
	require.NoError(t, err)
	updated, err := repo.Update(ctx, next)
	require.NoError(t, err)
	require.Equal(t, 1, updated.Version)
	require.Equal(t, domain.StatusDispatched, updated.Status)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = repo.Update(ctx, next)
	require.ErrorIs(t, err, ports.ErrConflict)
}

func TestUpdate_ConcurrentWritersOneWins(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	created, err := repo.Create(ctx, acceptedDraft(t, "bjorn"))
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := created.Dispatched()
			if err != nil {
				errs <- err
				return
			}
			_, err = repo.Update(ctx, next)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ports.ErrConflict)
			conflicts++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, writers-1, conflicts)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Version+1, stored.Version)
}
