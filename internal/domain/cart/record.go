package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is the persisted mirror of one cart line
type Record struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	UpdatedAt time.Time
}

// RecordRepository persists cart records, one per (user, product)
type RecordRepository interface {
	// Upsert creates the record or overwrites its quantity
	Upsert(ctx context.Context, record Record) error

	// Delete removes the record. A missing record is not an error.
	Delete(ctx context.Context, userID, productID uuid.UUID) error

	// DeleteAllForUser removes every record of the user
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error

	// FindByUser returns the user's records, oldest first
	FindByUser(ctx context.Context, userID uuid.UUID) ([]Record, error)
}
