package repository

import (
	"context"
	"errors"
	"time"

	"relayer-backend/internal/models"

	"gorm.io/gorm"
)

// CommitmentRepository defines data access for resolver commitments
type CommitmentRepository interface {
	Create(ctx context.Context, commitment *models.Commitment) error
	GetActiveByOrder(ctx context.Context, orderID string) (*models.Commitment, error)
	// GetLatestByOrder returns the most recent commitment regardless of
	// status, for lookups after the order has finished.
	GetLatestByOrder(ctx context.Context, orderID string) (*models.Commitment, error)
	FindExpiredActive(ctx context.Context, now time.Time) ([]*models.Commitment, error)
	UpdateStatus(ctx context.Context, id string, status models.CommitmentStatus) error
	FindByResolver(ctx context.Context, resolver string) ([]*models.Commitment, error)
}

type commitmentRepository struct {
	db *gorm.DB
}

// NewCommitmentRepository creates a new CommitmentRepository instance
func NewCommitmentRepository(db *gorm.DB) CommitmentRepository {
	return &commitmentRepository{db: db}
}

// Create persists a new commitment
func (r *commitmentRepository) Create(ctx context.Context, commitment *models.Commitment) error {
	return r.db.WithContext(ctx).Create(commitment).Error
}

// GetActiveByOrder returns the single active commitment for an order,
// or ErrNotFound when none is active
func (r *commitmentRepository) GetActiveByOrder(ctx context.Context, orderID string) (*models.Commitment, error) {
	var commitment models.Commitment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, models.CommitmentStatusActive).
		Order("committed_at DESC").
		First(&commitment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &commitment, nil
}

// GetLatestByOrder returns the newest commitment for an order in any status
func (r *commitmentRepository) GetLatestByOrder(ctx context.Context, orderID string) (*models.Commitment, error) {
	var commitment models.Commitment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("committed_at DESC").
		First(&commitment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &commitment, nil
}

// FindExpiredActive finds active commitments whose deadline has elapsed
func (r *commitmentRepository) FindExpiredActive(ctx context.Context, now time.Time) ([]*models.Commitment, error) {
	var commitments []*models.Commitment
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline < ?", models.CommitmentStatusActive, now).
		Order("deadline ASC").
		Find(&commitments).Error
	return commitments, err
}

// UpdateStatus updates the status of a commitment
func (r *commitmentRepository) UpdateStatus(ctx context.Context, id string, status models.CommitmentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Commitment{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// FindByResolver finds commitments made by a resolver
func (r *commitmentRepository) FindByResolver(ctx context.Context, resolver string) ([]*models.Commitment, error) {
	var commitments []*models.Commitment
	err := r.db.WithContext(ctx).
		Where("resolver = ?", resolver).
		Order("created_at DESC").
		Find(&commitments).Error
	return commitments, err
}
