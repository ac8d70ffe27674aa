package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/storefront/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type recordingEventSaver struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (s *recordingEventSaver) Append(_ context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if tx == nil {
		return errors.New("expected a gorm transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func placeOrder(t *testing.T, userID uuid.UUID, quantities map[*catalog.Product]int) *order.Order {
	t.Helper()

	c := cart.New(userID)
	for product, q := range quantities {
		for i := 0; i < q; i++ {
			c.AddLine(product)
		}
	}
	o, err := order.Place(userID, c.Summary())
	require.NoError(t, err)
	return o
}

func seedCartRecords(t *testing.T, db *gorm.DB, o *order.Order) {
	t.Helper()

	repo := NewGormCartRecordRepository(db)
	for _, l := range o.Lines {
		require.NoError(t, repo.Upsert(context.Background(), cart.Record{UserID: o.UserID, ProductID: l.ProductID, Quantity: l.Quantity}))
	}
}

func TestGormCheckoutCommitter_Commit(t *testing.T) {
	ctx := context.Background()

	t.Run("takes exactly the remaining stock", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		events := &recordingEventSaver{}
		committer := NewGormCheckoutCommitter(db, events)

		mug := testutil.SeedProduct(t, db, "Mug", "12.50", 5)
		o := placeOrder(t, uuid.New(), map[*catalog.Product]int{mug: 5})
		seedCartRecords(t, db, o)

		require.NoError(t, committer.Commit(ctx, o))

		assert.Equal(t, 0, testutil.ProductStock(t, db, mug.ID))
		assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.OrderModel{}, "id = ?", o.ID))
		assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.OrderLineModel{}, "order_id = ?", o.ID))
		assert.Zero(t, testutil.CountRows(t, db, &models.CartRecordModel{}, "user_id = ?", o.UserID))

		require.Len(t, events.events, 1)
		assert.Equal(t, order.EventTypePlaced, events.events[0].EventType())
		assert.Empty(t, o.GetDomainEvents())

		stored, err := NewGormOrderRepository(db).FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, stored.Total.Equal(decimal.RequireFromString("62.5")))
		assert.Equal(t, order.StatusPending, stored.Status)
	})

	t.Run("insufficient stock writes nothing", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		committer := NewGormCheckoutCommitter(db, &recordingEventSaver{})

		mug := testutil.SeedProduct(t, db, "Mug", "12.50", 5)
		o := placeOrder(t, uuid.New(), map[*catalog.Product]int{mug: 6})
		seedCartRecords(t, db, o)

		err := committer.Commit(ctx, o)

		require.Error(t, err)
		assert.ErrorIs(t, err, checkout.ErrOutOfStock)
		assert.ErrorIs(t, err, checkout.OutOfStock(mug.ID))
		assert.Equal(t, 5, testutil.ProductStock(t, db, mug.ID))
		assert.Zero(t, testutil.CountRows(t, db, &models.OrderModel{}, ""))
		assert.Zero(t, testutil.CountRows(t, db, &models.OrderLineModel{}, ""))
		assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.CartRecordModel{}, "user_id = ?", o.UserID))
	})

	t.Run("a later rejected product rolls back earlier decrements", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		committer := NewGormCheckoutCommitter(db, nil)

		mug := testutil.SeedProduct(t, db, "Mug", "12.50", 10)
		tee := testutil.SeedProduct(t, db, "Tee", "20", 1)
		o := placeOrder(t, uuid.New(), map[*catalog.Product]int{mug: 2, tee: 2})

		err := committer.Commit(ctx, o)

		assert.ErrorIs(t, err, checkout.OutOfStock(tee.ID))
		assert.Equal(t, 10, testutil.ProductStock(t, db, mug.ID))
		assert.Equal(t, 1, testutil.ProductStock(t, db, tee.ID))
		assert.Zero(t, testutil.CountRows(t, db, &models.OrderModel{}, ""))
	})

	t.Run("product deleted after validation is out of stock", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		committer := NewGormCheckoutCommitter(db, nil)

		mug := testutil.SeedProduct(t, db, "Mug", "12.50", 10)
		o := placeOrder(t, uuid.New(), map[*catalog.Product]int{mug: 1})
		require.NoError(t, db.Delete(&models.ProductModel{}, "id = ?", mug.ID).Error)

		err := committer.Commit(ctx, o)

		assert.ErrorIs(t, err, checkout.OutOfStock(mug.ID))
		assert.NotErrorIs(t, err, checkout.ErrProductNotFound)
		assert.Zero(t, testutil.CountRows(t, db, &models.OrderModel{}, ""))
		assert.Zero(t, testutil.CountRows(t, db, &models.OrderLineModel{}, ""))
	})

	t.Run("outbox failure rolls back and reports persistence error", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		committer := NewGormCheckoutCommitter(db, &recordingEventSaver{err: errors.New("outbox down")})

		mug := testutil.SeedProduct(t, db, "Mug", "12.50", 5)
		o := placeOrder(t, uuid.New(), map[*catalog.Product]int{mug: 1})

		err := committer.Commit(ctx, o)

		require.Error(t, err)
		assert.ErrorIs(t, err, checkout.ErrPersistence)
		assert.Contains(t, err.Error(), "outbox down")
		assert.Equal(t, 5, testutil.ProductStock(t, db, mug.ID))
		assert.Zero(t, testutil.CountRows(t, db, &models.OrderModel{}, ""))
		assert.NotEmpty(t, o.GetDomainEvents())
	})
}

func TestGormCheckoutCommitter_ConcurrentLastUnit(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	committer := NewGormCheckoutCommitter(db, nil)
	ctx := context.Background()

	lamp := testutil.SeedProduct(t, db, "Lamp", "40", 1)
	first := placeOrder(t, uuid.New(), map[*catalog.Product]int{lamp: 1})
	second := placeOrder(t, uuid.New(), map[*catalog.Product]int{lamp: 1})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, o := range []*order.Order{first, second} {
		wg.Add(1)
		go func(i int, o *order.Order) {
			defer wg.Done()
			results[i] = committer.Commit(ctx, o)
		}(i, o)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, checkout.ErrOutOfStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, testutil.ProductStock(t, db, lamp.ID))
	assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.OrderModel{}, ""))
}

func TestGormCheckoutCommitter_ConditionalDecrementSQL(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	product, err := catalog.NewProduct("Mug", decimal.NewFromInt(10), 1)
	require.NoError(t, err)
	o := placeOrder(t, uuid.New(), map[*catalog.Product]int{product: 2})

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "order_lines"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "products" SET .*"stock"=stock - \$1.* WHERE id = \$\d+ AND stock >= \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = NewGormCheckoutCommitter(gormDB, nil).Commit(context.Background(), o)

	assert.ErrorIs(t, err, checkout.OutOfStock(product.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
