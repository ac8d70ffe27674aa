package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
)

// PlacedMetrics receives placed orders
type PlacedMetrics interface {
	RecordOrderPlaced(ctx context.Context, total decimal.Decimal)
}

// PlacedHandler handles order.placed events delivered by the outbox
// processor. Delivery is at least once, so it is wrapped in an idempotent
// handler when registered.
type PlacedHandler struct {
	metrics PlacedMetrics
	logger  *zap.Logger
}

// NewPlacedHandler creates a PlacedHandler. metrics may be nil.
func NewPlacedHandler(metrics PlacedMetrics, logger *zap.Logger) *PlacedHandler {
	return &PlacedHandler{metrics: metrics, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *PlacedHandler) EventTypes() []string {
	return []string{order.EventTypePlaced}
}

// Handle records the placed order
func (h *PlacedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	placed, ok := event.(*order.PlacedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", order.EventTypePlaced),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			order.EventTypePlaced, event.EventType())
	}

	units := 0
	for _, l := range placed.Lines {
		units += l.Quantity
	}
	h.logger.Info("order placed",
		zap.String("order_id", placed.OrderID.String()),
		zap.String("user_id", placed.UserID.String()),
		zap.String("total", placed.Total.StringFixed(2)),
		zap.Int("lines", len(placed.Lines)),
		zap.Int("units", units),
	)

	if h.metrics != nil {
		h.metrics.RecordOrderPlaced(ctx, placed.Total)
	}
	return nil
}
