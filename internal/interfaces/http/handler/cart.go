package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cartapp "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// CartService is the cart use case surface used by CartHandler
type CartService interface {
	Summary(ctx context.Context, userID uuid.UUID) (*cartapp.CartResponse, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*cartapp.CartResponse, error)
	AddLine(ctx context.Context, userID, productID uuid.UUID) (*cartapp.CartResponse, error)
	Increment(ctx context.Context, userID, productID uuid.UUID) (*cartapp.CartResponse, error)
	Decrement(ctx context.Context, userID, productID uuid.UUID) (*cartapp.CartResponse, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*cartapp.CartResponse, error)
	Clear(ctx context.Context, userID uuid.UUID) (*cartapp.CartResponse, error)
}

// CartHandler serves the current user's cart. Every operation answers with
// the resulting cart summary.
type CartHandler struct {
	BaseHandler
	carts CartService
}

// NewCartHandler creates a CartHandler
func NewCartHandler(carts CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// Get returns the cart summary
// GET /cart
func (h *CartHandler) Get(c *gin.Context) {
	h.forUser(c, h.carts.Summary)
}

// Reconcile reloads the cart from its persisted records
// POST /cart/reconcile
func (h *CartHandler) Reconcile(c *gin.Context) {
	h.forUser(c, h.carts.Reconcile)
}

// AddLine adds one unit of a product
// POST /cart/lines
func (h *CartHandler) AddLine(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req cartapp.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.carts.AddLine(c.Request.Context(), userID, req.ProductID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, resp)
}

// Increment adds one unit to an existing line
// POST /cart/lines/:product_id/increment
func (h *CartHandler) Increment(c *gin.Context) {
	h.forLine(c, h.carts.Increment)
}

// Decrement removes one unit, dropping the line at zero
// POST /cart/lines/:product_id/decrement
func (h *CartHandler) Decrement(c *gin.Context) {
	h.forLine(c, h.carts.Decrement)
}

// Remove drops a line
// DELETE /cart/lines/:product_id
func (h *CartHandler) Remove(c *gin.Context) {
	h.forLine(c, h.carts.Remove)
}

// Clear empties the cart
// DELETE /cart
func (h *CartHandler) Clear(c *gin.Context) {
	h.forUser(c, h.carts.Clear)
}

func (h *CartHandler) forUser(c *gin.Context, op func(context.Context, uuid.UUID) (*cartapp.CartResponse, error)) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	resp, err := op(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, resp)
}

func (h *CartHandler) forLine(c *gin.Context, op func(context.Context, uuid.UUID, uuid.UUID) (*cartapp.CartResponse, error)) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	productID, ok := h.pathUUID(c, "product_id")
	if !ok {
		return
	}
	resp, err := op(c.Request.Context(), userID, productID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, resp)
}

// RegisterRoutes mounts the cart routes on rg
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	carts := rg.Group("/cart")
	carts.GET("", h.Get)
	carts.DELETE("", h.Clear)
	carts.POST("/reconcile", h.Reconcile)
	carts.POST("/lines", h.AddLine)
	carts.POST("/lines/:product_id/increment", h.Increment)
	carts.POST("/lines/:product_id/decrement", h.Decrement)
	carts.DELETE("/lines/:product_id", h.Remove)
}
