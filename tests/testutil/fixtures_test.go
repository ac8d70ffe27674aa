package testutil

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSQLiteFixtures(t *testing.T) {
	db := NewSQLiteDB(t)

	mug := SeedProduct(t, db, "Mug", "4.50", 7)

	assert.Equal(t, 7, ProductStock(t, db, mug.ID))
	assert.Equal(t, int64(1), CountRows(t, db, &models.ProductModel{}, ""))
	assert.Equal(t, int64(1), CountRows(t, db, &models.ProductModel{}, "name = ?", "Mug"))
	assert.Zero(t, CountRows(t, db, &models.ProductModel{}, "name = ?", "Hat"))
}

func TestSQLiteDB_Isolated(t *testing.T) {
	first, second := NewSQLiteDB(t), NewSQLiteDB(t)

	SeedProduct(t, first, "Mug", "4.50", 1)

	assert.Zero(t, CountRows(t, second, &models.ProductModel{}, ""))
}

func TestDo(t *testing.T) {
	engine := gin.New()
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, dto.NewErrorResponse("ERR_VALIDATION", err.Error()))
			return
		}
		body["auth"] = c.GetHeader("Authorization")
		body["key"] = c.GetHeader("Idempotency-Key")
		c.JSON(http.StatusOK, dto.NewSuccessResponse(body))
	})

	t.Run("sends json with credentials", func(t *testing.T) {
		w := Do(t, engine, Request{
			Method:  http.MethodPost,
			Path:    "/echo",
			Body:    map[string]string{"name": "mug"},
			Token:   "abc",
			Headers: map[string]string{"Idempotency-Key": "k-1"},
		})

		require.Equal(t, http.StatusOK, w.Code)
		var data map[string]string
		DecodeData(t, w, &data)
		assert.Equal(t, "mug", data["name"])
		assert.Equal(t, "Bearer abc", data["auth"])
		assert.Equal(t, "k-1", data["key"])
	})

	t.Run("error envelope", func(t *testing.T) {
		w := Do(t, engine, Request{Method: http.MethodPost, Path: "/echo"})

		RequireErrorCode(t, w, http.StatusBadRequest, "ERR_VALIDATION")
	})

	t.Run("defaults to GET", func(t *testing.T) {
		w := Do(t, engine, Request{Path: "/echo"})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
