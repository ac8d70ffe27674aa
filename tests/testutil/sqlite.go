// Package testutil holds fixtures shared by unit and integration tests:
// sqlite databases, HTTP round trips and event recorders.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
)

// NewSQLiteDB opens a private in-memory sqlite database with the storefront
// schema. The pool holds one connection, so concurrent transactions queue
// instead of failing with SQLITE_BUSY.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "Failed to open sqlite database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...), "Failed to migrate sqlite database")

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SeedProduct stores a product with the given price and stock
func SeedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) *catalog.Product {
	t.Helper()

	product, err := catalog.NewProduct(name, decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	require.NoError(t, db.Create(models.ProductModelFromDomain(product)).Error)
	return product
}

// ProductStock reads the current stock of a product
func ProductStock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()

	var model models.ProductModel
	require.NoError(t, db.First(&model, "id = ?", id).Error)
	return model.Stock
}

// CountRows counts rows of model matching the optional condition
func CountRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()

	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}
