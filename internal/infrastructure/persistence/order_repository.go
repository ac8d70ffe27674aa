package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order with its lines
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderLinesInOrder).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUser finds an order owned by userID. Orders of other users are
// reported as not found.
func (r *GormOrderRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderLinesInOrder).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUser returns a page of the user's orders, newest first, and the total count
func (r *GormOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*order.Order, int64, error) {
	return r.page(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}, limit, offset)
}

// FindAll returns a page of all orders, newest first, and the total count
func (r *GormOrderRepository) FindAll(ctx context.Context, status order.Status, limit, offset int) ([]*order.Order, int64, error) {
	return r.page(ctx, func(db *gorm.DB) *gorm.DB {
		if status != "" {
			return db.Where("status = ?", status)
		}
		return db
	}, limit, offset)
}

func (r *GormOrderRepository) page(ctx context.Context, scope func(*gorm.DB) *gorm.DB, limit, offset int) ([]*order.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Scopes(scope).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderLinesInOrder).
		Scopes(scope).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]*order.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].ToDomain())
	}
	return orders, total, nil
}

// UpdateStatus saves a status change with optimistic locking. o.Version must
// already be incremented by the domain transition.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	expected := o.Version - 1
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", o.ID, expected).
		Updates(map[string]interface{}{
			"status":     o.Status,
			"version":    o.Version,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func orderLinesInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}
