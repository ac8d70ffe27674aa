package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCartRecordRepository implements cart.RecordRepository using GORM
type GormCartRecordRepository struct {
	db *gorm.DB
}

// NewGormCartRecordRepository creates a new GormCartRecordRepository
func NewGormCartRecordRepository(db *gorm.DB) *GormCartRecordRepository {
	return &GormCartRecordRepository{db: db}
}

// Upsert inserts the record or overwrites the quantity of the existing one
func (r *GormCartRecordRepository) Upsert(ctx context.Context, record cart.Record) error {
	model := models.CartRecordModelFromDomain(record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(model).Error
}

// Delete removes the record. Deleting a missing record succeeds.
func (r *GormCartRecordRepository) Delete(ctx context.Context, userID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartRecordModel{}).Error
}

// DeleteAllForUser removes every record of the user
func (r *GormCartRecordRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartRecordModel{}).Error
}

// FindByUser returns the user's records, oldest first
func (r *GormCartRecordRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]cart.Record, error) {
	var rows []models.CartRecordModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]cart.Record, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].ToDomain())
	}
	return records, nil
}

// CountForUser returns the number of records the user has
func (r *GormCartRecordRepository) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CartRecordModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
