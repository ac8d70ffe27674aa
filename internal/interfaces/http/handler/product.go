package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	catalogapp "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// ProductService looks up catalog products
type ProductService interface {
	List(ctx context.Context, filter catalogapp.ProductListFilter) ([]catalogapp.ProductResponse, int64, error)
	GetByID(ctx context.Context, productID uuid.UUID) (*catalogapp.ProductResponse, error)
}

// ProductHandler serves the public catalog
type ProductHandler struct {
	BaseHandler
	products ProductService
}

// NewProductHandler creates a ProductHandler
func NewProductHandler(products ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// List returns a page of products
// GET /products?search=&category_id=&in_stock=&order_by=&order_dir=&page=&page_size=
func (h *ProductHandler) List(c *gin.Context) {
	var filter catalogapp.ProductListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	products, total, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	size := catalogapp.DefaultPageSize
	if filter.PageSize > 0 {
		size = min(filter.PageSize, catalogapp.MaxPageSize)
	}
	h.page(c, products, total, max(filter.Page, 1), size)
}

// Get returns one product
// GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, product)
}

// RegisterRoutes mounts the catalog routes on rg
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	products.GET("", h.List)
	products.GET("/:id", h.Get)
}
