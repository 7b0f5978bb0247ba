package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meeplehall/internal/models"
	"meeplehall/internal/repository"
)

type ModerationService struct {
	reports  repository.ModerationRepository
	stats    repository.StatsRepository
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	items    repository.TradeItemRepository
	carts    repository.CartRepository
	notify   *NotificationService
}

// ModerationDeps groups the repositories moderation touches.
type ModerationDeps struct {
	Reports  repository.ModerationRepository
	Stats    repository.StatsRepository
	Users    repository.UserRepository
	Posts    repository.PostRepository
	Comments repository.CommentRepository
	Items    repository.TradeItemRepository
	Carts    repository.CartRepository
}

func NewModerationService(deps ModerationDeps, notify *NotificationService) *ModerationService {
	return &ModerationService{
		reports:  deps.Reports,
		stats:    deps.Stats,
		users:    deps.Users,
		posts:    deps.Posts,
		comments: deps.Comments,
		items:    deps.Items,
		carts:    deps.Carts,
		notify:   notify,
	}
}

type ReportInput struct {
	ReporterID uint
	TargetType string
	TargetID   uint
	Reason     string
	Details    string
}

// targetOwner returns the account responsible for the reported content.
func (s *ModerationService) targetOwner(ctx context.Context, targetType string, targetID uint) (uint, error) {
	switch targetType {
	case models.ReportTargetPost:
		post, err := s.posts.GetByID(ctx, targetID, 0)
		if err != nil {
			return 0, err
		}
		return post.UserID, nil
	case models.ReportTargetComment:
		c, err := s.comments.GetByID(ctx, targetID)
		if err != nil {
			return 0, err
		}
		if c.IsDeleted {
			return 0, models.NewNotFoundError("Comment", targetID)
		}
		return c.UserID, nil
	case models.ReportTargetUser:
		u, err := s.users.GetByID(ctx, targetID)
		if err != nil {
			return 0, err
		}
		if u.IsDeleted {
			return 0, models.NewNotFoundError("User", targetID)
		}
		return u.ID, nil
	case models.ReportTargetTradeItem:
		item, err := s.items.GetByID(ctx, targetID, 0)
		if err != nil {
			return 0, err
		}
		return item.SellerID, nil
	default:
		return 0, models.NewValidationError("target_type must be one of post, comment, user, trade_item")
	}
}

// Report files a complaint. One open report per reporter and target.
func (s *ModerationService) Report(ctx context.Context, in ReportInput) (*models.ModerationReport, error) {
	reason, err := requireText("reason", in.Reason, 100)
	if err != nil {
		return nil, err
	}
	details, err := optionalText("details", in.Details, 2000)
	if err != nil {
		return nil, err
	}
	ownerID, err := s.targetOwner(ctx, in.TargetType, in.TargetID)
	if err != nil {
		return nil, err
	}
	if ownerID == in.ReporterID {
		return nil, models.NewValidationError("You cannot report yourself or your own content")
	}
	existing, err := s.reports.FindOpen(ctx, in.ReporterID, in.TargetType, in.TargetID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if existing != nil {
		return nil, models.NewConflictError("You already have an open report on this item")
	}
	report := &models.ModerationReport{
		ReporterID:     in.ReporterID,
		TargetType:     in.TargetType,
		TargetID:       in.TargetID,
		ReportedUserID: &ownerID,
		Reason:         reason,
		Details:        details,
		Status:         models.ReportOpen,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, models.NewInternalError(err)
	}
	return report, nil
}

func (s *ModerationService) ListReports(ctx context.Context, status string, limit, offset int) (models.Page[models.ModerationReport], error) {
	switch status {
	case "", models.ReportOpen, models.ReportResolved, models.ReportDismissed:
	default:
		return models.Page[models.ModerationReport]{}, models.NewValidationError("status must be one of open, resolved, dismissed")
	}
	reports, total, err := s.reports.List(ctx, status, limit, offset)
	if err != nil {
		return models.Page[models.ModerationReport]{}, models.NewInternalError(err)
	}
	return models.NewPage(reports, limit, offset, total), nil
}

type ResolveInput struct {
	AdminID  uint
	ReportID uint
	Action   string
	Note     string
}

// ResolveReport closes an open report, applying the chosen action first.
func (s *ModerationService) ResolveReport(ctx context.Context, in ResolveInput) (*models.ModerationReport, error) {
	note, err := optionalText("note", in.Note, 1000)
	if err != nil {
		return nil, err
	}
	report, err := s.reports.GetByID(ctx, in.ReportID)
	if err != nil {
		return nil, err
	}
	if report.Status != models.ReportOpen {
		return nil, models.NewConflictError(fmt.Sprintf("Report is already %s", report.Status))
	}

	status := models.ReportResolved
	switch in.Action {
	case models.ResolveDismiss:
		status = models.ReportDismissed
	case models.ResolveHideContent:
		if err := s.hide(ctx, report.TargetType, report.TargetID); err != nil {
			return nil, err
		}
	case models.ResolveBanUser:
		if report.ReportedUserID == nil {
			return nil, models.NewValidationError("Report has no reported user")
		}
		if *report.ReportedUserID == in.AdminID {
			return nil, models.NewValidationError("You cannot ban yourself")
		}
		if err := s.users.UpdateFields(ctx, *report.ReportedUserID, map[string]interface{}{"is_banned": true}); err != nil {
			return nil, err
		}
		s.posts.ForgetAuthor(ctx, *report.ReportedUserID)
	default:
		return nil, models.NewValidationError("action must be one of dismiss, hide_content, ban_user")
	}

	now := time.Now()
	adminID := in.AdminID
	report.Status = status
	report.ResolvedBy = &adminID
	report.ResolvedAt = &now
	report.ResolutionNote = note
	if err := s.reports.Update(ctx, report); err != nil {
		return nil, models.NewInternalError(err)
	}

	s.notify.Notify(ctx, NotifyInput{
		RecipientID: report.ReporterID,
		ActorID:     in.AdminID,
		Type:        models.NotificationModeration,
		TargetType:  "report",
		TargetID:    report.ID,
		Message:     fmt.Sprintf("Your report was %s", status),
	})
	if in.Action != models.ResolveDismiss && report.ReportedUserID != nil {
		s.notify.Notify(ctx, NotifyInput{
			RecipientID: *report.ReportedUserID,
			ActorID:     in.AdminID,
			Type:        models.NotificationModeration,
			TargetType:  report.TargetType,
			TargetID:    report.TargetID,
			Message:     "A moderator took action on your " + strings.ReplaceAll(report.TargetType, "_", " "),
		})
	}
	return report, nil
}

func (s *ModerationService) hide(ctx context.Context, targetType string, targetID uint) error {
	switch targetType {
	case models.ReportTargetPost:
		return s.posts.SetHidden(ctx, targetID, true)
	case models.ReportTargetComment:
		if err := s.comments.SoftDelete(ctx, targetID); err != nil {
			return models.NewInternalError(err)
		}
		return nil
	case models.ReportTargetTradeItem:
		if err := s.items.SetStatus(ctx, targetID, models.TradeItemRemoved); err != nil {
			return err
		}
		if err := s.carts.RemoveListing(ctx, targetID); err != nil {
			return models.NewInternalError(err)
		}
		return nil
	default:
		return models.NewValidationError("hide_content does not apply to " + targetType + " reports")
	}
}

func (s *ModerationService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	stats, err := s.stats.Dashboard(ctx)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return stats, nil
}
