package service

import (
	"context"
	"fmt"

	"meeplehall/internal/cache"
	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/observability"
	"meeplehall/internal/repository"
)

// LikeService mutates like state. Callers serialise requests per
// (user, item type, item) with a keylock before calling the mutators.
type LikeService struct {
	likes    repository.LikeRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	items    repository.TradeItemRepository
	users    repository.UserRepository
	notify   *NotificationService
	rt       Realtime
}

func NewLikeService(
	likes repository.LikeRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	items repository.TradeItemRepository,
	users repository.UserRepository,
	notify *NotificationService,
	rt Realtime,
) *LikeService {
	return &LikeService{
		likes:    likes,
		posts:    posts,
		comments: comments,
		items:    items,
		users:    users,
		notify:   notify,
		rt:       realtimeOrNop(rt),
	}
}

// likeTarget is what a like points at: its owner and a label for notifications.
type likeTarget struct {
	ownerID uint
	label   string
}

func (s *LikeService) resolve(ctx context.Context, itemType models.LikeItemType, itemID uint) (*likeTarget, error) {
	switch itemType {
	case models.LikeItemPost:
		post, err := s.posts.GetByID(ctx, itemID, 0)
		if err != nil {
			return nil, err
		}
		if post.IsHidden {
			return nil, models.NewNotFoundError("Post", itemID)
		}
		return &likeTarget{ownerID: post.UserID, label: fmt.Sprintf("your post %q", post.Title)}, nil
	case models.LikeItemComment:
		comment, err := s.comments.GetByID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if comment.IsDeleted {
			return nil, models.NewNotFoundError("Comment", itemID)
		}
		return &likeTarget{ownerID: comment.UserID, label: "your comment"}, nil
	case models.LikeItemTradeItem:
		item, err := s.items.GetByID(ctx, itemID, 0)
		if err != nil {
			return nil, err
		}
		if item.Status == models.TradeItemRemoved {
			return nil, models.NewNotFoundError("TradeItem", itemID)
		}
		return &likeTarget{ownerID: item.SellerID, label: fmt.Sprintf("your listing %q", item.Title)}, nil
	default:
		return nil, models.NewValidationError("item_type must be one of post, comment, trade_item", "item_type is invalid")
	}
}

// Like is idempotent. Only a new like notifies the item's owner, and only for posts and comments.
func (s *LikeService) Like(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (*models.LikeState, error) {
	target, err := s.resolve(ctx, itemType, itemID)
	if err != nil {
		return nil, err
	}
	created, err := s.likes.Like(ctx, userID, itemType, itemID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if created {
		observability.LikeMutations.WithLabelValues(string(itemType), "like").Inc()
		if itemType == models.LikeItemPost || itemType == models.LikeItemComment {
			s.notifyOwner(ctx, userID, itemType, itemID, target)
		}
	}
	return s.state(ctx, userID, itemType, itemID, true, created)
}

func (s *LikeService) notifyOwner(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint, target *likeTarget) {
	if target.ownerID == userID {
		return
	}
	name := "Someone"
	if u, err := s.users.GetByID(ctx, userID); err == nil {
		name = u.Name()
	}
	s.notify.Notify(ctx, NotifyInput{
		RecipientID: target.ownerID,
		ActorID:     userID,
		Type:        models.NotificationLike,
		TargetType:  string(itemType),
		TargetID:    itemID,
		Message:     fmt.Sprintf("%s liked %s", name, target.label),
	})
}

// Unlike is idempotent and does not require the item to still exist.
func (s *LikeService) Unlike(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (*models.LikeState, error) {
	if !itemType.Valid() {
		return nil, models.NewValidationError("item_type must be one of post, comment, trade_item", "item_type is invalid")
	}
	removed, err := s.likes.Unlike(ctx, userID, itemType, itemID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if removed {
		observability.LikeMutations.WithLabelValues(string(itemType), "unlike").Inc()
	}
	return s.state(ctx, userID, itemType, itemID, false, removed)
}

func (s *LikeService) Toggle(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (*models.LikeState, error) {
	if !itemType.Valid() {
		return nil, models.NewValidationError("item_type must be one of post, comment, trade_item", "item_type is invalid")
	}
	liked, err := s.likes.IsLiked(ctx, userID, itemType, itemID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if liked {
		return s.Unlike(ctx, userID, itemType, itemID)
	}
	return s.Like(ctx, userID, itemType, itemID)
}

// State reads the like status without changing it.
func (s *LikeService) State(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (*models.LikeState, error) {
	if _, err := s.resolve(ctx, itemType, itemID); err != nil {
		return nil, err
	}
	liked, err := s.likes.IsLiked(ctx, userID, itemType, itemID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.state(ctx, userID, itemType, itemID, liked, false)
}

func (s *LikeService) state(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint, liked, changed bool) (*models.LikeState, error) {
	count, err := s.likes.Count(ctx, itemType, itemID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	st := &models.LikeState{ItemType: itemType, ItemID: itemID, Liked: liked, LikesCount: count}
	if changed {
		if itemType == models.LikeItemPost {
			cache.Invalidate(ctx, cache.PostKey(itemID))
		}
		s.rt.ToUser(ctx, userID, notifications.EventLikeUpdated, st)
	}
	return st, nil
}
