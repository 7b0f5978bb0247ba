package service

import (
	"context"
	"strings"

	"meeplehall/internal/dto"
	"meeplehall/internal/models"
	"meeplehall/internal/repository"
)

type UserService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	posts   repository.PostRepository
	games   repository.GameRepository
}

func NewUserService(users repository.UserRepository, follows repository.FollowRepository, posts repository.PostRepository, games repository.GameRepository) *UserService {
	return &UserService{users: users, follows: follows, posts: posts, games: games}
}

// UpdateMeInput carries a partial profile update. Nil fields are left alone.
type UpdateMeInput struct {
	DisplayName      *string `json:"display_name"`
	Bio              *string `json:"bio"`
	Avatar           *string `json:"avatar"`
	Location         *string `json:"location"`
	FavoriteGameID   *uint   `json:"favorite_game_id"`
	IsProfilePrivate *bool   `json:"is_profile_private"`
	ShowEmail        *bool   `json:"show_email"`
	AllowMessages    *bool   `json:"allow_messages"`
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// IsAdmin reports whether the user is a live admin.
func (s *UserService) IsAdmin(ctx context.Context, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.IsAdmin && u.Active(), nil
}

func (s *UserService) GetMe(ctx context.Context, userID uint) (dto.AccountView, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dto.AccountView{}, err
	}
	if u.IsDeleted {
		return dto.AccountView{}, models.NewNotFoundError("User", userID)
	}
	view, err := dto.NewAccountView(u)
	if err != nil {
		return view, models.NewInternalError(err)
	}
	return view, nil
}

func (s *UserService) UpdateMe(ctx context.Context, userID uint, in UpdateMeInput) (dto.AccountView, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dto.AccountView{}, err
	}
	if in.DisplayName != nil {
		if u.DisplayName, err = optionalText("display_name", *in.DisplayName, 60); err != nil {
			return dto.AccountView{}, err
		}
	}
	if in.Bio != nil {
		if u.Bio, err = optionalText("bio", *in.Bio, 1000); err != nil {
			return dto.AccountView{}, err
		}
	}
	if in.Location != nil {
		if u.Location, err = optionalText("location", *in.Location, 100); err != nil {
			return dto.AccountView{}, err
		}
	}
	if in.Avatar != nil {
		avatar := strings.TrimSpace(*in.Avatar)
		if avatar != "" && !strings.HasPrefix(avatar, "/") && !strings.HasPrefix(avatar, "http://") && !strings.HasPrefix(avatar, "https://") {
			return dto.AccountView{}, models.NewValidationError("avatar must be a URL", "avatar must be a URL")
		}
		u.Avatar = avatar
	}
	if in.FavoriteGameID != nil {
		if *in.FavoriteGameID == 0 {
			u.FavoriteGameID = nil
		} else {
			if _, err := s.games.GetByID(ctx, *in.FavoriteGameID); err != nil {
				return dto.AccountView{}, err
			}
			id := *in.FavoriteGameID
			u.FavoriteGameID = &id
		}
	}
	if in.IsProfilePrivate != nil {
		u.IsProfilePrivate = *in.IsProfilePrivate
	}
	if in.ShowEmail != nil {
		u.ShowEmail = *in.ShowEmail
	}
	if in.AllowMessages != nil {
		u.AllowMessages = *in.AllowMessages
	}
	if err := s.users.Update(ctx, u); err != nil {
		return dto.AccountView{}, err
	}
	s.posts.ForgetAuthor(ctx, u.ID)
	view, err := dto.NewAccountView(u)
	if err != nil {
		return view, models.NewInternalError(err)
	}
	return view, nil
}

// GetProfile returns the profile of id as viewerID may see it. viewerID is 0 for anonymous callers.
func (s *UserService) GetProfile(ctx context.Context, id, viewerID uint) (dto.UserProfileView, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return dto.UserProfileView{}, err
	}
	viewer := dto.Viewer{UserID: viewerID}
	if viewerID != 0 && viewerID != id {
		if viewer.IsAdmin, err = s.IsAdmin(ctx, viewerID); err != nil {
			return dto.UserProfileView{}, err
		}
		if viewer.Follows, err = s.follows.IsFollowing(ctx, viewerID, id); err != nil {
			return dto.UserProfileView{}, models.NewInternalError(err)
		}
	}
	if u.IsDeleted && !viewer.IsAdmin {
		return dto.UserProfileView{}, models.NewNotFoundError("User", id)
	}

	var stats dto.ProfileStats
	if stats.Followers, stats.Following, err = s.follows.Counts(ctx, id); err != nil {
		return dto.UserProfileView{}, models.NewInternalError(err)
	}
	if stats.Posts, err = s.posts.CountByUser(ctx, id); err != nil {
		return dto.UserProfileView{}, models.NewInternalError(err)
	}
	view, err := dto.NewUserProfileView(u, stats, viewer)
	if err != nil {
		return view, models.NewInternalError(err)
	}
	return view, nil
}

func (s *UserService) SearchUsers(ctx context.Context, query string, limit, offset int) (models.Page[dto.UserSummary], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Page[dto.UserSummary]{}, models.NewValidationError("Search query is required")
	}
	users, total, err := s.users.Search(ctx, query, limit, offset)
	if err != nil {
		return models.Page[dto.UserSummary]{}, err
	}
	out, err := dto.NewUserSummaries(users)
	if err != nil {
		return models.Page[dto.UserSummary]{}, models.NewInternalError(err)
	}
	return models.NewPage(out, limit, offset, total), nil
}

// Admin operations.

func (s *UserService) AdminListUsers(ctx context.Context, query string, includeDeleted bool, limit, offset int) (models.Page[dto.AdminUserView], error) {
	users, total, err := s.users.AdminList(ctx, query, includeDeleted, limit, offset)
	if err != nil {
		return models.Page[dto.AdminUserView]{}, err
	}
	views, err := dto.NewAdminUserViews(users)
	if err != nil {
		return models.Page[dto.AdminUserView]{}, models.NewInternalError(err)
	}
	return models.NewPage(views, limit, offset, total), nil
}

func (s *UserService) ListAdmins(ctx context.Context) ([]dto.AdminUserView, error) {
	users, err := s.users.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	views, err := dto.NewAdminUserViews(users)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return views, nil
}

func (s *UserService) SetBanned(ctx context.Context, actorID, targetID uint, banned bool) (*models.User, error) {
	if actorID != 0 && actorID == targetID {
		return nil, models.NewValidationError("You cannot ban yourself")
	}
	return s.setFlag(ctx, targetID, "is_banned", banned)
}

func (s *UserService) SetAdmin(ctx context.Context, actorID, targetID uint, admin bool) (*models.User, error) {
	if !admin && actorID != 0 && actorID == targetID {
		return nil, models.NewValidationError("You cannot remove your own admin rights")
	}
	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if admin && u.IsDeleted {
		return nil, models.NewConflictError("Deleted accounts cannot be promoted")
	}
	return s.setFlag(ctx, targetID, "is_admin", admin)
}

func (s *UserService) setFlag(ctx context.Context, id uint, column string, value bool) (*models.User, error) {
	if err := s.users.UpdateFields(ctx, id, map[string]interface{}{column: value}); err != nil {
		return nil, err
	}
	s.posts.ForgetAuthor(ctx, id)
	return s.users.GetByID(ctx, id)
}

func (s *UserService) SoftDeleteUser(ctx context.Context, actorID, targetID uint) error {
	if actorID != 0 && actorID == targetID {
		return models.NewValidationError("Use account deletion to delete your own account")
	}
	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if u.IsDeleted {
		return nil
	}
	if err := s.users.SoftDelete(ctx, targetID); err != nil {
		return err
	}
	s.posts.ForgetAuthor(ctx, targetID)
	return nil
}

// RestoreUser fails with a conflict when a live account now owns the email or username.
func (s *UserService) RestoreUser(ctx context.Context, targetID uint) (*models.User, error) {
	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !u.IsDeleted {
		return u, nil
	}
	byEmail, err := s.users.GetByEmail(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	byName, err := s.users.GetByUsername(ctx, u.Username)
	if err != nil {
		return nil, err
	}
	if byEmail != nil || byName != nil {
		return nil, models.NewConflictError("Email or username is now used by another account")
	}
	if err := s.users.Restore(ctx, u); err != nil {
		return nil, err
	}
	s.posts.ForgetAuthor(ctx, u.ID)
	return u, nil
}
