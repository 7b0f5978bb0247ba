package repository

import (
	"context"

	"meeplehall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository stores the directed follow graph.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followingID uint) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	Counts(ctx context.Context, userID uint) (followers, following int64, err error)
	Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error)
	Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a FollowRepository.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Follow(ctx context.Context, followerID, followingID uint) (bool, error) {
	f := models.Follow{FollowerID: followerID, FollowingID: followingID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&f)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	if followerID == 0 || followingID == 0 {
		return false, nil
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&n).Error
	return n > 0, err
}

// Counts only includes live accounts on the other side of each edge.
func (r *followRepository) Counts(ctx context.Context, userID uint) (int64, int64, error) {
	var followers, following int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Joins("JOIN users ON users.id = follows.follower_id AND users.is_deleted = ?", false).
		Where("follows.following_id = ?", userID).
		Count(&followers).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&models.Follow{}).
		Joins("JOIN users ON users.id = follows.following_id AND users.is_deleted = ?", false).
		Where("follows.follower_id = ?", userID).
		Count(&following).Error
	if err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

func (r *followRepository) listUsers(ctx context.Context, joinCol, whereCol string, userID uint, limit, offset int) ([]models.User, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN follows ON follows."+joinCol+" = users.id").
		Where("follows."+whereCol+" = ? AND users.is_deleted = ?", userID, false)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := base.Order("follows.created_at DESC").Limit(clampLimit(limit)).Offset(offset).Find(&users).Error
	return users, total, err
}

func (r *followRepository) Followers(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error) {
	return r.listUsers(ctx, "follower_id", "following_id", userID, limit, offset)
}

func (r *followRepository) Following(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error) {
	return r.listUsers(ctx, "following_id", "follower_id", userID, limit, offset)
}
