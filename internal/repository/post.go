package repository

import (
	"context"
	"errors"
	"strings"

	"meeplehall/internal/cache"
	"meeplehall/internal/models"

	"gorm.io/gorm"
)

// PostFilter narrows a post listing. Zero values mean "no filter".
type PostFilter struct {
	UserID uint
	GameID uint
	// FollowedBy limits the feed to posts by users FollowedBy follows, plus their own.
	FollowedBy    uint
	Query         string
	Sort          string
	IncludeHidden bool
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	List(ctx context.Context, filter PostFilter, limit, offset int, currentUserID uint) ([]*models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	SetHidden(ctx context.Context, id uint, hidden bool) error
	Delete(ctx context.Context, id uint) error
	CountByUser(ctx context.Context, userID uint) (int64, error)
	// ForgetAuthor drops cached posts and feed pages that embed the user.
	ForgetAuthor(ctx context.Context, userID uint)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Create(post).Error
	if err == nil {
		cache.InvalidateFeed(ctx)
	}
	return err
}

func (r *postRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	var post models.Post
	fetch := func() error {
		return r.applyPostDetails(r.db.WithContext(ctx), currentUserID).
			Preload("User").
			Preload("Game").
			First(&post, id).Error
	}

	var err error
	if currentUserID == 0 {
		err = cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, limit, offset int, currentUserID uint) ([]*models.Post, int64, error) {
	base := r.applyFilter(r.db.WithContext(ctx).Model(&models.Post{}), filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []*models.Post
	q := r.applyFilter(r.applyPostDetails(r.db.WithContext(ctx), currentUserID), filter).
		Preload("User").
		Preload("Game")
	err := r.applySort(q, filter.Sort).
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepository) applyFilter(db *gorm.DB, f PostFilter) *gorm.DB {
	if !f.IncludeHidden {
		db = db.Where("posts.is_hidden = ?", false)
	}
	if f.UserID != 0 {
		db = db.Where("posts.user_id = ?", f.UserID)
	}
	if f.GameID != 0 {
		db = db.Where("posts.game_id = ?", f.GameID)
	}
	if f.FollowedBy != 0 {
		db = db.Where("(posts.user_id = ? OR posts.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?))",
			f.FollowedBy, f.FollowedBy)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := likePattern(q)
		db = db.Where(`(LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.content) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return db
}

// applySort appends the ORDER BY clause for the requested sort type.
// likes_count is a SELECT alias from applyPostDetails.
func (r *postRepository) applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "top":
		return db.Order("likes_count DESC").Order("posts.created_at DESC").Order("posts.id DESC")
	default: // "new" and anything unrecognized
		return db.Order("posts.created_at DESC").Order("posts.id DESC")
	}
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_deleted = false) AS comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.item_type = 'post' AND likes.item_id = posts.id) AS likes_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.item_type = 'post' AND likes.item_id = posts.id AND likes.user_id = ?) AS liked", currentUserID)
	}

	return db.Select(selectQuery + ", false AS liked")
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).
		Select("title", "content", "image_url", "game_id").
		Updates(post).Error
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) SetHidden(ctx context.Context, id uint, hidden bool) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Update("is_hidden", hidden)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) ForgetAuthor(ctx context.Context, userID uint) {
	if cache.GetClient() == nil {
		return
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		cache.InvalidateFeed(ctx)
		return
	}
	cache.InvalidateAuthor(ctx, ids...)
}

func (r *postRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("user_id = ? AND is_hidden = ?", userID, false).
		Count(&n).Error
	return n, err
}
