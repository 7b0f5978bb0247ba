package service

import (
	"context"
	"fmt"

	"meeplehall/internal/dto"
	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/repository"
)

type FollowService struct {
	follows repository.FollowRepository
	users   repository.UserRepository
	notify  *NotificationService
	rt      Realtime
}

func NewFollowService(follows repository.FollowRepository, users repository.UserRepository, notify *NotificationService, rt Realtime) *FollowService {
	return &FollowService{follows: follows, users: users, notify: notify, rt: realtimeOrNop(rt)}
}

func (s *FollowService) target(ctx context.Context, followerID, targetID uint) (*models.User, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !u.Active() {
		return nil, models.NewNotFoundError("User", targetID)
	}
	return u, nil
}

// Follow is idempotent; only a new edge notifies the target.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID uint) (*models.FollowState, error) {
	if _, err := s.target(ctx, followerID, targetID); err != nil {
		return nil, err
	}
	created, err := s.follows.Follow(ctx, followerID, targetID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if created {
		follower, err := s.users.GetByID(ctx, followerID)
		name := "Someone"
		if err == nil {
			name = follower.Name()
		}
		s.notify.Notify(ctx, NotifyInput{
			RecipientID: targetID,
			ActorID:     followerID,
			Type:        models.NotificationFollow,
			TargetType:  "user",
			TargetID:    followerID,
			Message:     fmt.Sprintf("%s started following you", name),
		})
	}
	return s.state(ctx, followerID, targetID, true, created)
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) (*models.FollowState, error) {
	if followerID == targetID {
		return nil, models.NewValidationError("You cannot unfollow yourself")
	}
	removed, err := s.follows.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.state(ctx, followerID, targetID, false, removed)
}

func (s *FollowService) Toggle(ctx context.Context, followerID, targetID uint) (*models.FollowState, error) {
	following, err := s.follows.IsFollowing(ctx, followerID, targetID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if following {
		return s.Unfollow(ctx, followerID, targetID)
	}
	return s.Follow(ctx, followerID, targetID)
}

// Status reports whether viewerID follows targetID along with the target's counters.
func (s *FollowService) Status(ctx context.Context, viewerID, targetID uint) (*models.FollowState, error) {
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	following, err := s.follows.IsFollowing(ctx, viewerID, targetID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.state(ctx, viewerID, targetID, following, false)
}

func (s *FollowService) state(ctx context.Context, followerID, targetID uint, following, changed bool) (*models.FollowState, error) {
	followers, followingCount, err := s.follows.Counts(ctx, targetID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	st := &models.FollowState{
		UserID:         targetID,
		Following:      following,
		FollowersCount: followers,
		FollowingCount: followingCount,
	}
	if changed {
		s.rt.ToUser(ctx, followerID, notifications.EventFollowChanged, st)
	}
	return st, nil
}

func (s *FollowService) Followers(ctx context.Context, userID uint, limit, offset int) (models.Page[dto.UserSummary], error) {
	return s.list(ctx, s.follows.Followers, userID, limit, offset)
}

func (s *FollowService) Following(ctx context.Context, userID uint, limit, offset int) (models.Page[dto.UserSummary], error) {
	return s.list(ctx, s.follows.Following, userID, limit, offset)
}

func (s *FollowService) list(ctx context.Context, fetch func(context.Context, uint, int, int) ([]models.User, int64, error), userID uint, limit, offset int) (models.Page[dto.UserSummary], error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return models.Page[dto.UserSummary]{}, err
	}
	users, total, err := fetch(ctx, userID, limit, offset)
	if err != nil {
		return models.Page[dto.UserSummary]{}, models.NewInternalError(err)
	}
	out, err := dto.NewUserSummaries(users)
	if err != nil {
		return models.Page[dto.UserSummary]{}, models.NewInternalError(err)
	}
	return models.NewPage(out, limit, offset, total), nil
}
