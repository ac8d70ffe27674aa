package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCheckoutCommitter writes a placed order and takes its stock in a single
// transaction. Either the order, its lines, every stock decrement, the cart
// cleanup and the outbox entries are all stored, or none are.
type GormCheckoutCommitter struct {
	db     *gorm.DB
	outbox EventOutbox
}

// EventOutbox records domain events as part of an open transaction
type EventOutbox interface {
	Append(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error
}

// NewGormCheckoutCommitter creates a committer. outbox may be nil, in which
// case no order events are recorded.
func NewGormCheckoutCommitter(db *gorm.DB, outbox EventOutbox) *GormCheckoutCommitter {
	return &GormCheckoutCommitter{db: db, outbox: outbox}
}

// Commit persists o. A decrement that matches no row rolls everything back
// and returns checkout.OutOfStock. Any other failure is a checkout.Persistence error.
func (c *GormCheckoutCommitter) Commit(ctx context.Context, o *order.Order) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.OrderModelFromDomain(o)
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if len(model.Lines) > 0 {
			if err := tx.Create(&model.Lines).Error; err != nil {
				return fmt.Errorf("insert order lines: %w", err)
			}
		}

		now := time.Now()
		for _, d := range o.StockDemand() {
			if err := decrementStock(tx, d, now); err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", o.UserID).
			Delete(&models.CartRecordModel{}).Error; err != nil {
			return fmt.Errorf("delete cart records: %w", err)
		}

		if c.outbox != nil {
			if err := c.outbox.Append(ctx, tx, o.GetDomainEvents()...); err != nil {
				return fmt.Errorf("save order events: %w", err)
			}
		}
		return nil
	})
	if err == nil {
		o.ClearDomainEvents()
		return nil
	}

	var failure *checkout.Error
	if errors.As(err, &failure) {
		return failure
	}
	return checkout.Persistence(err)
}

// decrementStock takes d.Quantity units if and only if that many are left.
// A rejected decrement is OutOfStock whatever the cause, a product deleted
// since validation included.
func decrementStock(tx *gorm.DB, d order.Demand, now time.Time) error {
	result := tx.Model(&models.ProductModel{}).
		Where("id = ? AND stock >= ?", d.ProductID, d.Quantity).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", d.Quantity),
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("decrement stock of %s: %w", d.ProductID, result.Error)
	}
	if result.RowsAffected == 0 {
		return checkout.OutOfStock(d.ProductID)
	}
	return nil
}
