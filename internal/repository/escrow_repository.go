package repository

import (
	"context"
	"errors"
	"time"

	"relayer-backend/internal/models"

	"gorm.io/gorm"
)

// EscrowRepository defines data access for per-side escrow records
type EscrowRepository interface {
	Upsert(ctx context.Context, record *models.EscrowRecord) error
	GetByOrderAndSide(ctx context.Context, orderID string, side models.EscrowSide) (*models.EscrowRecord, error)
	FindByOrder(ctx context.Context, orderID string) ([]*models.EscrowRecord, error)
	MarkFunded(ctx context.Context, orderID string, side models.EscrowSide, observedBalance string) error
}

type escrowRepository struct {
	db *gorm.DB
}

// NewEscrowRepository creates a new EscrowRepository instance
func NewEscrowRepository(db *gorm.DB) EscrowRepository {
	return &escrowRepository{db: db}
}

// Upsert records a reported escrow address. A second report for the same
// order and side is rejected so the address cannot be swapped after the
// fact.
func (r *escrowRepository) Upsert(ctx context.Context, record *models.EscrowRecord) error {
	existing, err := r.GetByOrderAndSide(ctx, record.OrderID, record.Side)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		if existing.EscrowAddress == record.EscrowAddress {
			return nil // idempotent re-report
		}
		return errors.New("escrow address already reported for this side")
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByOrderAndSide retrieves one side's escrow record
func (r *escrowRepository) GetByOrderAndSide(ctx context.Context, orderID string, side models.EscrowSide) (*models.EscrowRecord, error) {
	var record models.EscrowRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND side = ?", orderID, side).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByOrder retrieves all escrow records for an order
func (r *escrowRepository) FindByOrder(ctx context.Context, orderID string) ([]*models.EscrowRecord, error) {
	var records []*models.EscrowRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("side ASC").
		Find(&records).Error
	return records, err
}

// MarkFunded sets funded=true exactly once; a record already funded is
// left untouched (the flag is never reversed)
func (r *escrowRepository) MarkFunded(ctx context.Context, orderID string, side models.EscrowSide, observedBalance string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.EscrowRecord{}).
		Where("order_id = ? AND side = ? AND funded = ?", orderID, side, false).
		Updates(map[string]interface{}{
			"funded":           true,
			"observed_balance": observedBalance,
			"funded_at":        &now,
		})
	return res.Error
}
