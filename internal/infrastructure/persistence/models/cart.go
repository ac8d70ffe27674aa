package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
)

// CartRecordModel mirrors one cart line. The composite key enforces a single
// record per (user, product).
type CartRecordModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Quantity  int       `gorm:"not null;check:chk_cart_records_quantity,quantity > 0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartRecordModel) TableName() string {
	return "cart_records"
}

// ToDomain converts the persistence model to a domain Record
func (m *CartRecordModel) ToDomain() cart.Record {
	return cart.Record{
		UserID:    m.UserID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		UpdatedAt: m.UpdatedAt,
	}
}

// CartRecordModelFromDomain creates a persistence model from a domain Record
func CartRecordModelFromDomain(r cart.Record) *CartRecordModel {
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return &CartRecordModel{
		UserID:    r.UserID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}
