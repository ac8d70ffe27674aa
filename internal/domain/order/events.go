package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// EventTypePlaced is raised once an order has been committed
const EventTypePlaced = "order.placed"

// PlacedLine is the line payload of PlacedEvent
type PlacedLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PlacedEvent is published through the outbox after checkout commits
type PlacedEvent struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID       `json:"order_id"`
	UserID  uuid.UUID       `json:"user_id"`
	Total   decimal.Decimal `json:"total"`
	Lines   []PlacedLine    `json:"lines"`
}

// NewPlacedEvent creates a PlacedEvent for o
func NewPlacedEvent(o *Order) *PlacedEvent {
	lines := make([]PlacedLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, PlacedLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return &PlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePlaced, AggregateType, o.ID),
		OrderID:         o.ID,
		UserID:          o.UserID,
		Total:           o.Total,
		Lines:           lines,
	}
}
