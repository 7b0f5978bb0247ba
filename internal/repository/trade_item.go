package repository

import (
	"context"
	"errors"
	"strings"

	"meeplehall/internal/models"

	"gorm.io/gorm"
)

// TradeItemFilter narrows a marketplace listing query.
type TradeItemFilter struct {
	SellerID  uint
	GameID    uint
	Condition string
	Query     string
	MinCents  int64
	MaxCents  int64
	// Status defaults to active when empty; "all" disables the filter.
	Status string
	// Sort is one of newest, price_asc, price_desc, popular.
	Sort string
}

// TradeItemRepository stores marketplace listings.
type TradeItemRepository interface {
	Create(ctx context.Context, item *models.TradeItem) error
	GetByID(ctx context.Context, id, currentUserID uint) (*models.TradeItem, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*models.TradeItem, error)
	List(ctx context.Context, filter TradeItemFilter, limit, offset int, currentUserID uint) ([]models.TradeItem, int64, error)
	Update(ctx context.Context, item *models.TradeItem) error
	UpdateStock(ctx context.Context, id uint, quantity int, status string) error
	SetStatus(ctx context.Context, id uint, status string) error
}

type tradeItemRepository struct {
	db *gorm.DB
}

// NewTradeItemRepository creates a TradeItemRepository.
func NewTradeItemRepository(db *gorm.DB) TradeItemRepository {
	return &tradeItemRepository{db: db}
}

func (r *tradeItemRepository) withDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	return db.Select(`trade_items.*,
		(SELECT COUNT(*) FROM likes WHERE likes.item_type = ? AND likes.item_id = trade_items.id) AS likes_count,
		EXISTS(SELECT 1 FROM likes WHERE likes.item_type = ? AND likes.item_id = trade_items.id AND likes.user_id = ?) AS liked`,
		models.LikeItemTradeItem, models.LikeItemTradeItem, currentUserID)
}

func (r *tradeItemRepository) Create(ctx context.Context, item *models.TradeItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *tradeItemRepository) GetByID(ctx context.Context, id, currentUserID uint) (*models.TradeItem, error) {
	var item models.TradeItem
	err := r.withDetails(r.db.WithContext(ctx).Model(&models.TradeItem{}), currentUserID).
		Preload("Seller").Preload("Game").
		First(&item, "trade_items.id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("TradeItem", id)
		}
		return nil, err
	}
	return &item, nil
}

// GetByIDForUpdate reads a listing with a row lock; call it inside a transaction.
func (r *tradeItemRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.TradeItem, error) {
	var item models.TradeItem
	if err := forUpdate(r.db.WithContext(ctx)).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("TradeItem", id)
		}
		return nil, err
	}
	return &item, nil
}

func (r *tradeItemRepository) List(ctx context.Context, f TradeItemFilter, limit, offset int, currentUserID uint) ([]models.TradeItem, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.TradeItem{})
	switch f.Status {
	case "":
		base = base.Where("trade_items.status = ?", models.TradeItemActive)
	case "all":
	default:
		base = base.Where("trade_items.status = ?", f.Status)
	}
	if f.SellerID != 0 {
		base = base.Where("trade_items.seller_id = ?", f.SellerID)
	}
	if f.GameID != 0 {
		base = base.Where("trade_items.game_id = ?", f.GameID)
	}
	if f.Condition != "" {
		base = base.Where("trade_items.condition = ?", f.Condition)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := likePattern(q)
		base = base.Where(`(LOWER(trade_items.title) LIKE ? ESCAPE '\' OR LOWER(trade_items.description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if f.MinCents > 0 {
		base = base.Where("trade_items.price_cents >= ?", f.MinCents)
	}
	if f.MaxCents > 0 {
		base = base.Where("trade_items.price_cents <= ?", f.MaxCents)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.withDetails(base, currentUserID).Preload("Seller").Preload("Game")
	switch f.Sort {
	case "price_asc":
		q = q.Order("trade_items.price_cents ASC")
	case "price_desc":
		q = q.Order("trade_items.price_cents DESC")
	case "popular":
		q = q.Order("likes_count DESC")
	}
	var items []models.TradeItem
	err := q.Order("trade_items.created_at DESC").Order("trade_items.id DESC").
		Limit(clampLimit(limit)).Offset(offset).
		Find(&items).Error
	return items, total, err
}

func (r *tradeItemRepository) Update(ctx context.Context, item *models.TradeItem) error {
	return r.db.WithContext(ctx).Model(item).
		Select("title", "description", "price_cents", "currency", "condition", "quantity", "status", "image_url", "game_id").
		Updates(item).Error
}

func (r *tradeItemRepository) UpdateStock(ctx context.Context, id uint, quantity int, status string) error {
	return r.db.WithContext(ctx).Model(&models.TradeItem{}).Where("id = ?", id).
		Updates(map[string]interface{}{"quantity": quantity, "status": status}).Error
}

func (r *tradeItemRepository) SetStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).Model(&models.TradeItem{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("TradeItem", id)
	}
	return nil
}
