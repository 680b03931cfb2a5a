//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Apurer/bookshop-order-service/internal/domains/orders/domain"
	"github.com/Apurer/bookshop-order-service/internal/domains/orders/ports"
	"github.com/Apurer/bookshop-order-service/internal/platform/migrations"
)

func setupOrdersPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("orders_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, migrations.Run(db))

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func acceptedDraft(t *testing.T, owner string) *domain.Order {
	t.Helper()
	order, err := domain.NewAcceptedOrder(domain.Book{
		ISBN:   "1234567893",
		Title:  "Title",
		Author: "Author",
		Price:  decimal.RequireFromString("9.90"),
	}, 2, owner)
	require.NoError(t, err)
	return order
}

func TestRepository_CreateAndFind(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	saved, err := repo.Create(ctx, acceptedDraft(t, "bjorn"))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, 0, saved.Version)
	assert.Equal(t, "bjorn", saved.LastModifiedBy)

	fetched, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, fetched.Status)
	assert.Equal(t, "Title - Author", *fetched.BookName)
	assert.True(t, fetched.BookPrice.Equal(decimal.RequireFromString("9.90")))

	rejected, err := domain.NewRejectedOrder("1234567894", 3, "bjorn")
	require.NoError(t, err)
	savedRejected, err := repo.Create(ctx, rejected)
	require.NoError(t, err)
	fetchedRejected, err := repo.FindByID(ctx, savedRejected.ID)
	require.NoError(t, err)
	assert.Nil(t, fetchedRejected.BookName)
	assert.Nil(t, fetchedRejected.BookPrice)

	_, err = repo.FindByID(ctx, 999999)
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_FindAllForSubject(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	first, err := repo.Create(ctx, acceptedDraft(t, "bjorn"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, acceptedDraft(t, "isabelle"))
	require.NoError(t, err)
	second, err := repo.Create(ctx, acceptedDraft(t, "bjorn"))
	require.NoError(t, err)

	list, err := repo.FindAllForSubject(ctx, "bjorn")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	none, err := repo.FindAllForSubject(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_UpdateEnforcesVersion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	repo := NewRepository(db)
	ctx := context.Background()

	saved, err := repo.Create(ctx, acceptedDraft(t, "bjorn"))
	require.NoError(t, err)

	next, err := saved.Dispatched()
	require.NoError(t, err)
	updated, err := repo.Update(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispatched, updated.Status)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, "bjorn", updated.LastModifiedBy)

	_, err = repo.Update(ctx, next)
	require.ErrorIs(t, err, ports.ErrConflict)

	missing := next.Clone()
	missing.ID = 999999
	_, err = repo.Update(ctx, missing)
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestDeliveryLedger_MarkIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	ledger := NewDeliveryLedger(db)
	ctx := context.Background()

	seen, err := ledger.Processed(ctx, "order-dispatched:0:7")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.MarkProcessed(ctx, "order-dispatched:0:7"))
	require.NoError(t, ledger.MarkProcessed(ctx, "order-dispatched:0:7"))

	seen, err = ledger.Processed(ctx, "order-dispatched:0:7")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDeliveryLedger_PurgeOlderThan(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	ledger := NewDeliveryLedger(db)
	ctx := context.Background()

	old := deliveryRecord{Key: "order-dispatched:0:1", CreatedAt: time.Now().UTC().Add(-10 * 24 * time.Hour)}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, ledger.MarkProcessed(ctx, "order-dispatched:0:2"))

	removed, err := ledger.PurgeOlderThan(ctx, time.Now().UTC().Add(-DefaultDeliveryRetention))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	seen, err := ledger.Processed(ctx, "order-dispatched:0:1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = ledger.Processed(ctx, "order-dispatched:0:2")
	require.NoError(t, err)
	assert.True(t, seen)
}
