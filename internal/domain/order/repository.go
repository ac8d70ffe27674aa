package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads orders and persists status changes. Orders are created
// only by the checkout transaction.
type Repository interface {
	// FindByID returns the order with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUser returns the order only if userID owns it
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*Order, error)

	// FindByUser returns the user's orders, newest first
	FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Order, int64, error)

	// FindAll returns every user's orders, newest first. A non-empty status
	// narrows the result to orders in that status.
	FindAll(ctx context.Context, status Status, limit, offset int) ([]*Order, int64, error)

	// UpdateStatus saves the status using optimistic locking on Version
	UpdateStatus(ctx context.Context, o *Order) error
}
