package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	eventapp "github.com/storefront/backend/internal/application/event"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// OutboxService inspects the order event outbox
type OutboxService interface {
	DeadLetters(ctx context.Context, q eventapp.DeadLetterQuery) ([]eventapp.EntryResponse, int64, error)
	Requeue(ctx context.Context, id uuid.UUID) (*eventapp.EntryResponse, error)
	RequeueAll(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*eventapp.StatsResponse, error)
}

// OutboxHandler serves the admin view of undelivered order events
type OutboxHandler struct {
	BaseHandler
	outbox OutboxService
}

// NewOutboxHandler creates an OutboxHandler
func NewOutboxHandler(outbox OutboxService) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// Stats counts outbox entries per status
// GET /admin/outbox/stats
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, stats)
}

// DeadLetters lists entries that exhausted their retries
// GET /admin/outbox/dead?page=&page_size=
func (h *OutboxHandler) DeadLetters(c *gin.Context) {
	var q eventapp.DeadLetterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	entries, total, err := h.outbox.DeadLetters(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = eventapp.DefaultPageSize
	}
	h.page(c, entries, total, page, size)
}

// Requeue schedules one dead entry for delivery again
// POST /admin/outbox/entries/:id/requeue
func (h *OutboxHandler) Requeue(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	entry, err := h.outbox.Requeue(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, entry)
}

// RequeueAll schedules every dead entry for delivery again
// POST /admin/outbox/requeue
func (h *OutboxHandler) RequeueAll(c *gin.Context) {
	n, err := h.outbox.RequeueAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, gin.H{"requeued": n})
}

// RegisterRoutes mounts the admin outbox routes on rg
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin/outbox", middleware.RequireRole(auth.RoleAdmin))
	admin.GET("/stats", h.Stats)
	admin.GET("/dead", h.DeadLetters)
	admin.POST("/requeue", h.RequeueAll)
	admin.POST("/entries/:id/requeue", h.Requeue)
}
