//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/tests/testutil"
)

// fill adds quantity units of p and waits until the cart record mirrors them
func (a *app) fill(t *testing.T, userID uuid.UUID, p *catalog.Product, quantity int) {
	t.Helper()
	for i := 0; i < quantity; i++ {
		_, err := a.carts.AddLine(context.Background(), userID, p.ID)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		var rec models.CartRecordModel
		err := a.db.DB.Where("user_id = ? AND product_id = ?", userID, p.ID).First(&rec).Error
		return err == nil && rec.Quantity == quantity
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCheckout_Postgres_TakesExactlyTheRemainingStock(t *testing.T) {
	a := newApp(t, NewSharedTestDB(t))
	userID := uuid.New()
	mug := testutil.SeedProduct(t, a.db.DB, "Mug", "4.00", 5)
	a.fill(t, userID, mug, 5)

	result, err := a.orchestrator.Checkout(middleware.WithUser(context.Background(), userID), "")
	require.NoError(t, err)

	assert.Equal(t, checkout.StateSucceeded, result.Attempt.State)
	assert.Equal(t, 0, testutil.ProductStock(t, a.db.DB, mug.ID))
	assert.Equal(t, int64(1), testutil.CountRows(t, a.db.DB, &models.OrderLineModel{}, "order_id = ?", result.OrderID))
	assert.Zero(t, testutil.CountRows(t, a.db.DB, &models.CartRecordModel{}, "user_id = ?", userID))
	assert.Equal(t, int64(1), testutil.CountRows(t, a.db.DB, &models.OutboxEntryModel{},
		"event_type = ? AND aggregate_id = ?", order.EventTypePlaced, result.OrderID))
}

func TestCheckout_Postgres_OutOfStockWritesNothing(t *testing.T) {
	a := newApp(t, NewSharedTestDB(t))
	userID := uuid.New()
	mug := testutil.SeedProduct(t, a.db.DB, "Mug", "4.00", 5)
	a.fill(t, userID, mug, 6)

	_, err := a.orchestrator.Checkout(middleware.WithUser(context.Background(), userID), "")

	require.ErrorIs(t, err, checkout.OutOfStock(mug.ID))
	assert.Equal(t, 5, testutil.ProductStock(t, a.db.DB, mug.ID))
	assert.Zero(t, testutil.CountRows(t, a.db.DB, &models.OrderModel{}, ""))
	assert.Zero(t, testutil.CountRows(t, a.db.DB, &models.OutboxEntryModel{}, ""))
	assert.Equal(t, int64(1), testutil.CountRows(t, a.db.DB, &models.CartRecordModel{}, "user_id = ?", userID))
}

// Row locks on postgres serialise the conditional decrements, so of many
// shoppers racing for the last units exactly stock of them get one.
func TestCheckout_Postgres_ConcurrentShoppersNeverOversell(t *testing.T) {
	const shoppers, stock = 8, 3

	a := newApp(t, NewSharedTestDB(t))
	mug := testutil.SeedProduct(t, a.db.DB, "Mug", "4.00", stock)
	users := make([]uuid.UUID, shoppers)
	for i := range users {
		users[i] = uuid.New()
		a.fill(t, users[i], mug, 1)
	}

	start := make(chan struct{})
	errs := make([]error, shoppers)
	var wg sync.WaitGroup
	for i, user := range users {
		wg.Add(1)
		go func(i int, user uuid.UUID) {
			defer wg.Done()
			<-start
			_, errs[i] = a.orchestrator.Checkout(middleware.WithUser(context.Background(), user), "")
		}(i, user)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, checkout.OutOfStock(mug.ID)):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, 0, testutil.ProductStock(t, a.db.DB, mug.ID))
	assert.Equal(t, int64(stock), testutil.CountRows(t, a.db.DB, &models.OrderModel{}, ""))
	assert.Equal(t, int64(stock), testutil.CountRows(t, a.db.DB, &models.OutboxEntryModel{}, ""))
}

func TestCheckout_Postgres_IdempotencyKeyPlacesOneOrder(t *testing.T) {
	a := newApp(t, NewSharedTestDB(t))
	userID := uuid.New()
	mug := testutil.SeedProduct(t, a.db.DB, "Mug", "4.00", 5)
	a.fill(t, userID, mug, 2)
	ctx := middleware.WithUser(context.Background(), userID)

	first, err := a.orchestrator.Checkout(ctx, "order-key-1")
	require.NoError(t, err)
	second, err := a.orchestrator.Checkout(ctx, "order-key-1")
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, second.Replayed)
	assert.Equal(t, 3, testutil.ProductStock(t, a.db.DB, mug.ID))
	assert.Equal(t, int64(1), testutil.CountRows(t, a.db.DB, &models.OrderModel{}, ""))
}

func TestCart_Postgres_ReconcileAfterRestart(t *testing.T) {
	tdb := NewSharedTestDB(t)
	userID := uuid.New()

	before := newApp(t, tdb)
	mug := testutil.SeedProduct(t, tdb.DB, "Mug", "4.00", 10)
	hat := testutil.SeedProduct(t, tdb.DB, "Hat", "15.25", 10)
	before.fill(t, userID, mug, 3)
	before.fill(t, userID, hat, 1)
	require.NoError(t, before.synchronizer.Close(context.Background()))

	after := newApp(t, tdb)
	resp, err := after.carts.Reconcile(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 4, resp.TotalQuantity)
	assert.Equal(t, "27.25", resp.TotalPrice.StringFixed(2))
	require.Len(t, resp.Lines, 2)
}
