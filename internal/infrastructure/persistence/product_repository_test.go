package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormProductRepository_FindByIDs(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	mug := testutil.SeedProduct(t, db, "Mug", "12.50", 5)
	tee := testutil.SeedProduct(t, db, "Tee", "20", 2)

	t.Run("returns existing products and skips unknown ids", func(t *testing.T) {
		products, err := repo.FindByIDs(ctx, []uuid.UUID{mug.ID, uuid.New(), tee.ID})
		require.NoError(t, err)
		require.Len(t, products, 2)

		byID := catalog.IndexByID(products)
		assert.Equal(t, "Mug", byID[mug.ID].Name)
		assert.True(t, byID[mug.ID].Price.Equal(decimal.RequireFromString("12.5")))
		assert.Equal(t, 5, byID[mug.ID].Stock)
		assert.Equal(t, 2, byID[tee.ID].Stock)
	})

	t.Run("empty id list does not query", func(t *testing.T) {
		products, err := repo.FindByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, products)
	})
}

func TestGormProductRepository_FindByID(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	mug := testutil.SeedProduct(t, db, "Mug", "12.50", 5)

	found, err := repo.FindByID(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, mug.ID, found.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProductRepository_Save(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	product, err := catalog.NewProduct("Poster", decimal.NewFromInt(8), 10)
	require.NoError(t, err)
	product.SetImageURL("https://cdn.example.com/poster.png")

	require.NoError(t, repo.Save(ctx, product))

	product.Stock = 3
	require.NoError(t, repo.Save(ctx, product))

	found, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, found.Stock)
	assert.Equal(t, "https://cdn.example.com/poster.png", found.ImageURL)
}

func TestGormProductRepository_List(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	mug := testutil.SeedProduct(t, db, "Coffee Mug", "12.50", 5)
	testutil.SeedProduct(t, db, "Tee", "20", 0)
	poster := testutil.SeedProduct(t, db, "Poster", "8", 3)

	categoryID := uuid.New()
	mug.SetCategory(categoryID)
	require.NoError(t, repo.Save(ctx, mug))

	names := func(products []*catalog.Product) []string {
		out := make([]string, 0, len(products))
		for _, p := range products {
			out = append(out, p.Name)
		}
		return out
	}

	t.Run("defaults to name ascending", func(t *testing.T) {
		products, total, err := repo.List(ctx, catalog.ProductFilter{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []string{"Coffee Mug", "Poster", "Tee"}, names(products))
	})

	t.Run("pages by price descending", func(t *testing.T) {
		products, total, err := repo.List(ctx, catalog.ProductFilter{OrderBy: "price", OrderDir: "desc", Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, []string{"Poster"}, names(products))
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		products, total, err := repo.List(ctx, catalog.ProductFilter{Search: "MUG", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, mug.ID, products[0].ID)
	})

	t.Run("in stock within a category", func(t *testing.T) {
		products, _, err := repo.List(ctx, catalog.ProductFilter{CategoryID: &categoryID, InStock: true, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Coffee Mug"}, names(products))
	})

	t.Run("in stock excludes sold out", func(t *testing.T) {
		_, total, err := repo.List(ctx, catalog.ProductFilter{InStock: true, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("unknown sort column falls back to name", func(t *testing.T) {
		products, _, err := repo.List(ctx, catalog.ProductFilter{OrderBy: "stock; DROP TABLE products", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, poster.ID, products[1].ID)
	})
}
