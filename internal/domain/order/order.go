// Package order holds the Order aggregate created by checkout.
package order

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
)

// AggregateType is the aggregate name used on events and outbox entries
const AggregateType = "Order"

// Status represents the fulfilment status of an order
type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusShipped || target == StatusCancelled
	case StatusShipped:
		return target == StatusDelivered
	case StatusDelivered, StatusCancelled:
		return false
	}
	return false
}

// Line is one purchased product. Immutable once created.
type Line struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal // price at purchase
	CreatedAt   time.Time
}

// Amount returns Quantity * UnitPrice
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is created once by checkout; afterwards only Status changes.
type Order struct {
	shared.BaseAggregateRoot
	UserID uuid.UUID
	Total  decimal.Decimal
	Status Status
	Lines  []Line
}

// Place builds a pending order from a cart summary. Total is the cart's
// total price and each line keeps the cart's price snapshot.
func Place(userID uuid.UUID, summary cart.Summary) (*Order, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if len(summary.Lines) == 0 {
		return nil, shared.NewDomainError("EMPTY_CART", "Cannot place an order from an empty cart")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		Total:             summary.TotalPrice,
		Status:            StatusPending,
		Lines:             make([]Line, 0, len(summary.Lines)),
	}

	for _, l := range summary.Lines {
		if l.Quantity < 1 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
		}
		o.Lines = append(o.Lines, Line{
			ID:          uuid.New(),
			OrderID:     o.ID,
			ProductID:   l.ProductID,
			ProductName: l.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			CreatedAt:   o.CreatedAt,
		})
	}

	o.Raise(NewPlacedEvent(o))
	return o, nil
}

// TransitionTo moves the order to target status
func (o *Order) TransitionTo(target Status) error {
	if !target.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown order status: "+string(target))
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", "Cannot move order from "+string(o.Status)+" to "+string(target))
	}
	o.Status = target
	o.Revise()
	return nil
}

// Demand is the quantity of one product an order takes from stock
type Demand struct {
	ProductID uuid.UUID
	Quantity  int
}

// StockDemand sums line quantities per product, ordered by product id so
// that concurrent transactions lock product rows in the same order.
func (o *Order) StockDemand() []Demand {
	totals := make(map[uuid.UUID]int, len(o.Lines))
	for _, l := range o.Lines {
		totals[l.ProductID] += l.Quantity
	}
	demand := make([]Demand, 0, len(totals))
	for id, q := range totals {
		demand = append(demand, Demand{ProductID: id, Quantity: q})
	}
	sort.Slice(demand, func(i, j int) bool {
		return demand[i].ProductID.String() < demand[j].ProductID.String()
	})
	return demand
}

// TotalQuantity returns the number of units ordered
func (o *Order) TotalQuantity() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}
