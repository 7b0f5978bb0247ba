package repository

import (
	"context"
	"errors"

	"meeplehall/internal/models"

	"gorm.io/gorm"
)

// OrderRepository stores checkout orders and their line snapshots.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uint, status string, limit, offset int) ([]models.Order, int64, error)
	ListBySeller(ctx context.Context, sellerID uint, status string, limit, offset int) ([]models.Order, int64, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an OrderRepository.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order together with its Items.
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Buyer", "Seller").Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").Preload("Buyer").Preload("Seller").
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Order", id)
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDForUpdate locks the order row; call it inside a transaction.
func (r *orderRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := forUpdate(r.db.WithContext(ctx)).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Order", id)
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uint, status string, limit, offset int) ([]models.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("buyer_id = ?", buyerID), status, limit, offset)
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID uint, status string, limit, offset int) ([]models.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("seller_id = ?", sellerID), status, limit, offset)
}

func (r *orderRepository) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx), status, limit, offset)
}

func (r *orderRepository) list(_ context.Context, base *gorm.DB, status string, limit, offset int) ([]models.Order, int64, error) {
	base = base.Model(&models.Order{})
	if status != "" {
		base = base.Where("status = ?", status)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	err := base.Preload("Items").Preload("Buyer").Preload("Seller").
		Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit)).Offset(offset).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Order", id)
	}
	return nil
}
