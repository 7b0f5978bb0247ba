package repository

import (
	"context"
	"errors"

	"meeplehall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository stores cart lines, one per (user, listing).
type CartRepository interface {
	List(ctx context.Context, userID uint) ([]models.CartItem, error)
	Get(ctx context.Context, userID, tradeItemID uint) (*models.CartItem, error)
	SetQuantity(ctx context.Context, userID, tradeItemID uint, quantity int) error
	Remove(ctx context.Context, userID, tradeItemID uint) (bool, error)
	Clear(ctx context.Context, userID uint) error
	RemoveListing(ctx context.Context, tradeItemID uint) error
}

type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository creates a CartRepository.
func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) List(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("TradeItem").Preload("TradeItem.Seller").
		Where("user_id = ?", userID).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

// Get returns the cart line, or nil when the listing is not in the cart.
func (r *cartRepository) Get(ctx context.Context, userID, tradeItemID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).Where("user_id = ? AND trade_item_id = ?", userID, tradeItemID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetQuantity upserts the cart line to exactly quantity.
func (r *cartRepository) SetQuantity(ctx context.Context, userID, tradeItemID uint, quantity int) error {
	item := models.CartItem{UserID: userID, TradeItemID: tradeItemID, Quantity: quantity}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "trade_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&item).Error
}

func (r *cartRepository) Remove(ctx context.Context, userID, tradeItemID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND trade_item_id = ?", userID, tradeItemID).Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *cartRepository) Clear(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

// RemoveListing drops a listing from every cart, used when it is sold out or withdrawn.
func (r *cartRepository) RemoveListing(ctx context.Context, tradeItemID uint) error {
	return r.db.WithContext(ctx).Where("trade_item_id = ?", tradeItemID).Delete(&models.CartItem{}).Error
}
