package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	checkoutapp "github.com/storefront/backend/internal/application/checkout"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader makes a checkout request safe to retry
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// CheckoutService places orders from carts
type CheckoutService interface {
	Checkout(ctx context.Context, idempotencyKey string) (*checkoutapp.Result, error)
}

// CheckoutResponse is the body of a successful checkout
type CheckoutResponse struct {
	OrderID  uuid.UUID `json:"order_id"`
	Replayed bool      `json:"replayed,omitempty"`
}

// CheckoutHandler turns the current cart into an order
type CheckoutHandler struct {
	BaseHandler
	checkout CheckoutService
}

// NewCheckoutHandler creates a CheckoutHandler
func NewCheckoutHandler(checkout CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// Checkout places an order for the cart. A new order answers 201; a replay
// of an earlier Idempotency-Key answers 200 with the same order id.
// POST /checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	key := c.GetHeader(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLength {
		h.badRequest(c, "Idempotency-Key is too long")
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), key)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := CheckoutResponse{OrderID: result.OrderID, Replayed: result.Replayed}
	if result.Replayed {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
		return
	}
	h.created(c, resp)
}

// RegisterRoutes mounts the checkout route on rg
func (h *CheckoutHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/checkout", h.Checkout)
}
