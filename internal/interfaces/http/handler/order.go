package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	orderapp "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// OrderService reads and updates placed orders
type OrderService interface {
	ListByUser(ctx context.Context, userID uuid.UUID, filter orderapp.ListFilter) ([]orderapp.OrderResponse, int64, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*orderapp.OrderResponse, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, req orderapp.UpdateStatusRequest) (*orderapp.OrderResponse, error)
	ListAll(ctx context.Context, filter orderapp.AdminListFilter) ([]orderapp.OrderResponse, int64, error)
}

// OrderHandler serves order history and status changes
type OrderHandler struct {
	BaseHandler
	orders OrderService
}

// NewOrderHandler creates an OrderHandler
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// List returns the current user's orders, newest first
// GET /orders?page=&page_size=
func (h *OrderHandler) List(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var filter orderapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	orders, total, err := h.orders.ListByUser(c.Request.Context(), userID, filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.page(c, orders, total, pageOf(filter), sizeOf(filter))
}

// ListAll returns every user's orders, newest first. Admin only.
// GET /admin/orders?status=&page=&page_size=
func (h *OrderHandler) ListAll(c *gin.Context) {
	var filter orderapp.AdminListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	orders, total, err := h.orders.ListAll(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, orders, total, pageOf(filter.ListFilter), sizeOf(filter.ListFilter))
}

// Get returns one of the current user's orders
// GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}
	orderID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	resp, err := h.orders.Get(c.Request.Context(), userID, orderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, resp)
}

// UpdateStatus moves an order to a new status. Admin only.
// PUT /orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var req orderapp.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	resp, err := h.orders.UpdateStatus(c.Request.Context(), orderID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, resp)
}

// RegisterRoutes mounts the order routes on rg
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	orders.GET("", h.List)
	orders.GET("/:id", h.Get)
	orders.PUT("/:id/status", middleware.RequireRole(auth.RoleAdmin), h.UpdateStatus)

	rg.GET("/admin/orders", middleware.RequireRole(auth.RoleAdmin), h.ListAll)
}

func pageOf(f orderapp.ListFilter) int { return max(f.Page, 1) }

func sizeOf(f orderapp.ListFilter) int {
	if f.PageSize < 1 {
		return orderapp.DefaultPageSize
	}
	return f.PageSize
}
