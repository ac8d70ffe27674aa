package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
)

// OrderModel is the persistence model for the Order aggregate
type OrderModel struct {
	AggregateModel
	UserID uuid.UUID        `gorm:"type:uuid;not null;index"`
	Total  decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Status order.Status     `gorm:"type:varchar(20);not null;default:'pending';index"`
	Lines  []OrderLineModel `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineModel is the persistence model for an order line
type OrderLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo      int             `gorm:"not null;default:0"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.aggregate(),
		UserID:            m.UserID,
		Total:             m.Total,
		Status:            m.Status,
		Lines:             make([]order.Line, 0, len(m.Lines)),
	}
	for _, l := range m.Lines {
		o.Lines = append(o.Lines, l.ToDomain())
	}
	return o
}

// FromDomain populates the model, lines included, from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.setAggregate(o.BaseAggregateRoot)
	m.UserID = o.UserID
	m.Total = o.Total
	m.Status = o.Status
	m.Lines = make([]OrderLineModel, 0, len(o.Lines))
	for i, l := range o.Lines {
		m.Lines = append(m.Lines, OrderLineModelFromDomain(l, i+1))
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// ToDomain converts the persistence model to a domain order Line
func (m *OrderLineModel) ToDomain() order.Line {
	return order.Line{
		ID:          m.ID,
		OrderID:     m.OrderID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		CreatedAt:   m.CreatedAt,
	}
}

// OrderLineModelFromDomain creates a persistence model from a domain order Line.
// lineNo preserves the cart order of the lines.
func OrderLineModelFromDomain(l order.Line, lineNo int) OrderLineModel {
	return OrderLineModel{
		ID:          l.ID,
		OrderID:     l.OrderID,
		LineNo:      lineNo,
		ProductID:   l.ProductID,
		ProductName: l.ProductName,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		CreatedAt:   l.CreatedAt,
	}
}
