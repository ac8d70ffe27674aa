// Package order serves order history and status changes.
package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
)

// Order history paging
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service reads a user's orders and moves orders through their statuses
type Service struct {
	repo   order.Repository
	logger *zap.Logger
}

// NewService creates an order Service
func NewService(repo order.Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger.Named("orders")}
}

// ListByUser returns a page of userID's orders, newest first, and the total count
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]OrderResponse, int64, error) {
	limit, offset := filter.window()
	orders, total, err := s.repo.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return ToOrderResponses(orders), total, nil
}

// ListAll returns a page of every user's orders, newest first, optionally
// narrowed to one status
func (s *Service) ListAll(ctx context.Context, filter AdminListFilter) ([]OrderResponse, int64, error) {
	status := order.Status(filter.Status)
	if status != "" && !status.IsValid() {
		return nil, 0, shared.NewDomainError("INVALID_STATUS", "Unknown order status: "+filter.Status)
	}
	limit, offset := filter.window()
	orders, total, err := s.repo.FindAll(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return ToOrderResponses(orders), total, nil
}

// window clamps the page into a limit and offset
func (f ListFilter) window() (limit, offset int) {
	page := max(f.Page, 1)
	size := f.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)
	return size, (page - 1) * size
}

// Get returns an order owned by userID. Other users' orders are NOT_FOUND.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error) {
	o, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// UpdateStatus moves an order to status. A concurrent change of the same
// order fails with CONCURRENCY_CONFLICT.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, req UpdateStatusRequest) (*OrderResponse, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := o.Status
	if err := o.TransitionTo(order.Status(req.Status)); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, o); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			s.logger.Info("order status changed concurrently",
				zap.String("order_id", orderID.String()),
				zap.Int("version", o.Version),
			)
		}
		return nil, err
	}

	s.logger.Info("order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("from", from.String()),
		zap.String("to", o.Status.String()),
	)
	resp := ToOrderResponse(o)
	return &resp, nil
}
