package repository

import (
	"context"

	"meeplehall/internal/cache"
	"meeplehall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository stores likes on posts, comments, and trade items.
type LikeRepository interface {
	// Like inserts the like and reports whether a new row was created.
	Like(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (bool, error)
	// Unlike removes the like and reports whether a row was deleted.
	Unlike(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (bool, error)
	IsLiked(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (bool, error)
	Count(ctx context.Context, itemType models.LikeItemType, itemID uint) (int64, error)
	// LikedIDs returns the subset of itemIDs the user has liked.
	LikedIDs(ctx context.Context, userID uint, itemType models.LikeItemType, itemIDs []uint) (map[uint]bool, error)
	DeleteForItem(ctx context.Context, itemType models.LikeItemType, itemID uint) error
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a LikeRepository.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Like(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (bool, error) {
	// ON CONFLICT DO NOTHING keeps concurrent likes from separate instances idempotent.
	like := models.Like{UserID: userID, ItemType: itemType, ItemID: itemID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	if res.Error != nil {
		return false, res.Error
	}
	r.invalidate(ctx, itemType, itemID, res.RowsAffected)
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) Unlike(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND item_type = ? AND item_id = ?", userID, itemType, itemID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	r.invalidate(ctx, itemType, itemID, res.RowsAffected)
	return res.RowsAffected > 0, nil
}

// invalidate drops the cached post when its likes_count changed.
func (r *likeRepository) invalidate(ctx context.Context, itemType models.LikeItemType, itemID uint, affected int64) {
	if affected > 0 && itemType == models.LikeItemPost {
		cache.InvalidatePost(ctx, itemID)
	}
}

func (r *likeRepository) IsLiked(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND item_type = ? AND item_id = ?", userID, itemType, itemID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *likeRepository) Count(ctx context.Context, itemType models.LikeItemType, itemID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("item_type = ? AND item_id = ?", itemType, itemID).
		Count(&count).Error
	return count, err
}

func (r *likeRepository) DeleteForItem(ctx context.Context, itemType models.LikeItemType, itemID uint) error {
	return r.db.WithContext(ctx).
		Where("item_type = ? AND item_id = ?", itemType, itemID).
		Delete(&models.Like{}).Error
}

func (r *likeRepository) LikedIDs(ctx context.Context, userID uint, itemType models.LikeItemType, itemIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(itemIDs))
	if userID == 0 || len(itemIDs) == 0 {
		return out, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND item_type = ? AND item_id IN ?", userID, itemType, itemIDs).
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
