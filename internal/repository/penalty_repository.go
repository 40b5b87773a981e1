package repository

import (
	"context"
	"errors"

	"relayer-backend/internal/models"

	"gorm.io/gorm"
)

// PenaltyRepository defines data access for forfeited safety deposits
type PenaltyRepository interface {
	Create(ctx context.Context, record *models.PenaltyRecord) error
	GetPendingByOrder(ctx context.Context, orderID string) (*models.PenaltyRecord, error)
	SetRescuer(ctx context.Context, id, rescuer string) error
	MarkClaimed(ctx context.Context, id string) error
	List(ctx context.Context, page, pageSize int) ([]*models.PenaltyRecord, int64, error)
}

type penaltyRepository struct {
	db *gorm.DB
}

// NewPenaltyRepository creates a new PenaltyRepository instance
func NewPenaltyRepository(db *gorm.DB) PenaltyRepository {
	return &penaltyRepository{db: db}
}

// Create persists a new penalty record
func (r *penaltyRepository) Create(ctx context.Context, record *models.PenaltyRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetPendingByOrder returns the most recent unclaimed penalty for an order
func (r *penaltyRepository) GetPendingByOrder(ctx context.Context, orderID string) (*models.PenaltyRecord, error) {
	var record models.PenaltyRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, models.PenaltyStatusPending).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SetRescuer assigns the rescuing resolver to a pending penalty
func (r *penaltyRepository) SetRescuer(ctx context.Context, id, rescuer string) error {
	return r.db.WithContext(ctx).
		Model(&models.PenaltyRecord{}).
		Where("id = ?", id).
		Update("rescuer", rescuer).Error
}

// MarkClaimed marks a penalty as claimed by its rescuer
func (r *penaltyRepository) MarkClaimed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.PenaltyRecord{}).
		Where("id = ?", id).
		Update("status", models.PenaltyStatusClaimed).Error
}

// List retrieves paginated penalty records
func (r *penaltyRepository) List(ctx context.Context, page, pageSize int) ([]*models.PenaltyRecord, int64, error) {
	var records []*models.PenaltyRecord
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.PenaltyRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&records).Error

	return records, total, err
}
