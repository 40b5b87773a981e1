package repository

import (
	"context"
	"errors"
	"time"

	"relayer-backend/internal/models"

	"gorm.io/gorm"
)

// ErrStateConflict returned when a guarded transition loses a race: the
// order was not in the expected state when the update ran.
var ErrStateConflict = errors.New("order state conflict")

// ErrNotFound returned when the requested entity does not exist
var ErrNotFound = errors.New("not found")

// OrderRepository defines data access for swap orders. TransitionState is
// the only way status changes; it is a compare-and-swap so concurrent
// writers cannot both succeed.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	TransitionState(ctx context.Context, orderID string, from, to models.OrderStatus) error
	FindByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]*models.Order, error)
	FindActiveBefore(ctx context.Context, deadline time.Time, statuses ...models.OrderStatus) ([]*models.Order, error)
	List(ctx context.Context, page, pageSize int) ([]*models.Order, int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new OrderRepository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create persists a new order
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID retrieves an order by ID
func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionState performs a guarded compare-and-swap on the status column.
// Exactly one concurrent caller observes success; the rest get
// ErrStateConflict and must re-read.
func (r *orderRepository) TransitionState(ctx context.Context, orderID string, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing order from a lost race
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStateConflict
	}
	return nil
}

// FindByStatus finds orders in any of the given statuses
func (r *orderRepository) FindByStatus(ctx context.Context, statuses ...models.OrderStatus) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// FindActiveBefore finds orders in the given statuses whose fill deadline
// lies before the supplied instant
func (r *orderRepository) FindActiveBefore(ctx context.Context, deadline time.Time, statuses ...models.OrderStatus) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND fill_deadline < ?", statuses, deadline.Unix()).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// List retrieves paginated orders
func (r *orderRepository) List(ctx context.Context, page, pageSize int) ([]*models.Order, int64, error) {
	var orders []*models.Order
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&orders).Error

	return orders, total, err
}
