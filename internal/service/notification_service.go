package service

import (
	"context"
	"log/slog"

	"meeplehall/internal/middleware"
	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/repository"
)

type NotificationService struct {
	repo repository.NotificationRepository
	rt   Realtime
}

func NewNotificationService(repo repository.NotificationRepository, rt Realtime) *NotificationService {
	return &NotificationService{repo: repo, rt: realtimeOrNop(rt)}
}

// NotifyInput describes one inbox entry. Self-notifications are dropped.
type NotifyInput struct {
	RecipientID uint
	ActorID     uint
	Type        string
	TargetType  string
	TargetID    uint
	Message     string
}

// Notify persists a notification and pushes it to the recipient. Failures are
// logged, never returned: a missed notification must not fail the action that caused it.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) {
	if s == nil || in.RecipientID == 0 || in.RecipientID == in.ActorID {
		return
	}
	n := &models.Notification{
		RecipientID: in.RecipientID,
		Type:        in.Type,
		TargetType:  in.TargetType,
		TargetID:    in.TargetID,
		Message:     in.Message,
	}
	if in.ActorID != 0 {
		actor := in.ActorID
		n.ActorID = &actor
	}
	if err := s.repo.Create(ctx, n); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to store notification",
			slog.Uint64("recipient_id", uint64(in.RecipientID)),
			slog.String("type", in.Type),
			slog.String("error", err.Error()))
		return
	}
	s.rt.ToUser(ctx, in.RecipientID, notifications.EventNotification, n)
}

type ListNotificationsInput struct {
	UserID     uint
	UnreadOnly bool
	Limit      int
	Offset     int
}

func (s *NotificationService) List(ctx context.Context, in ListNotificationsInput) (models.Page[models.Notification], error) {
	items, total, err := s.repo.List(ctx, in.UserID, in.UnreadOnly, in.Limit, in.Offset)
	if err != nil {
		return models.Page[models.Notification]{}, models.NewInternalError(err)
	}
	return models.NewPage(items, in.Limit, in.Offset, total), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !ok {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !ok {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}
