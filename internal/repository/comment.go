package repository

import (
	"context"
	"errors"

	"meeplehall/internal/cache"
	"meeplehall/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, currentUserID uint) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	SoftDelete(ctx context.Context, id uint) error
	CountByPost(ctx context.Context, postID uint) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns every comment on the post, oldest first, with like details for currentUserID.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, currentUserID uint) ([]*models.Comment, error) {
	sel := "comments.*, (SELECT COUNT(*) FROM likes WHERE likes.item_type = 'comment' AND likes.item_id = comments.id) AS likes_count"
	q := r.db.WithContext(ctx)
	if currentUserID != 0 {
		q = q.Select(sel+", EXISTS(SELECT 1 FROM likes WHERE likes.item_type = 'comment' AND likes.item_id = comments.id AND likes.user_id = ?) AS liked", currentUserID)
	} else {
		q = q.Select(sel + ", false AS liked")
	}

	var comments []*models.Comment
	err := q.Preload("User").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at ASC").
		Order("comments.id ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("content", content).Error
}

// SoftDelete blanks the comment and flags it deleted so replies keep their parent.
// The parent post's cached comments_count is dropped.
func (r *commentRepository) SoftDelete(ctx context.Context, id uint) error {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Select("id", "post_id").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Comment", id)
		}
		return err
	}
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_deleted": true,
		"content":    "",
	}).Error
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ? AND is_deleted = ?", postID, false).
		Count(&n).Error
	return n, err
}
