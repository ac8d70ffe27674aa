//go:build integration

package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/infrastructure/persistence/models"
)

func TestMigrations_UpDownUp(t *testing.T) {
	tdb := NewTestDB(t)
	m := tdb.Migrator()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(4), version)
	assert.False(t, dirty)
	for _, model := range models.All() {
		assert.True(t, tdb.DB.Migrator().HasTable(model), "%T", model)
	}

	require.NoError(t, m.Steps(-1))
	assert.False(t, tdb.DB.Migrator().HasTable(&models.OutboxEntryModel{}))

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, tdb.DB.Migrator().HasTable(&models.ProductModel{}))

	require.NoError(t, m.Up())
	assert.True(t, tdb.DB.Migrator().HasTable(&models.OrderLineModel{}))
}

func TestMigrations_StockCannotGoNegative(t *testing.T) {
	tdb := NewSharedTestDB(t)

	err := tdb.DB.Exec(`INSERT INTO products (id, name, price, stock) VALUES (gen_random_uuid(), 'Mug', 4.00, -1)`).Error

	assert.Error(t, err)
}
