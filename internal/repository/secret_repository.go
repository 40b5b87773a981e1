package repository

import (
	"context"
	"errors"
	"time"

	"relayer-backend/internal/models"

	"gorm.io/gorm"
)

// SecretRepository defines data access for sealed order secrets
type SecretRepository interface {
	Create(ctx context.Context, record *models.SecretRecord) error
	GetByOrder(ctx context.Context, orderID string) (*models.SecretRecord, error)
	// MarkRevealed flips the revealed flag exactly once; returns
	// ErrStateConflict if another caller won the race.
	MarkRevealed(ctx context.Context, orderID, revealTxHash string) error
	// SetRevealTxHash records the withdraw transaction after the reveal.
	SetRevealTxHash(ctx context.Context, orderID, revealTxHash string) error
}

type secretRepository struct {
	db *gorm.DB
}

// NewSecretRepository creates a new SecretRepository instance
func NewSecretRepository(db *gorm.DB) SecretRepository {
	return &secretRepository{db: db}
}

// Create persists a sealed secret
func (r *secretRepository) Create(ctx context.Context, record *models.SecretRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByOrder retrieves the secret record for an order
func (r *secretRepository) GetByOrder(ctx context.Context, orderID string) (*models.SecretRecord, error) {
	var record models.SecretRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkRevealed records the reveal transaction, guarded so it happens once
func (r *secretRepository) MarkRevealed(ctx context.Context, orderID, revealTxHash string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.SecretRecord{}).
		Where("order_id = ? AND revealed = ?", orderID, false).
		Updates(map[string]interface{}{
			"revealed":       true,
			"reveal_tx_hash": revealTxHash,
			"revealed_at":    &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// SetRevealTxHash attaches the withdraw transaction to a revealed secret
func (r *secretRepository) SetRevealTxHash(ctx context.Context, orderID, revealTxHash string) error {
	res := r.db.WithContext(ctx).
		Model(&models.SecretRecord{}).
		Where("order_id = ? AND revealed = ?", orderID, true).
		Update("reveal_tx_hash", revealTxHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
