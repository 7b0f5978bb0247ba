package server

import (
	"context"

	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/users/me
// @Summary Get my account
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[dto.AccountView]
// @Router /users/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	view, err := s.userService.GetMe(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, view)
}

// UpdateMe handles PUT /api/users/me
// @Summary Update my profile and privacy settings
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateMeInput true "Fields to change"
// @Success 200 {object} models.ApiResponse[dto.AccountView]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /users/me [put]
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	var req service.UpdateMeInput
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	view, err := s.userService.UpdateMe(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, view)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get a user profile
// @Description Private profiles show only public fields to viewers who are not followers
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[dto.UserProfileView]
// @Failure 404 {object} models.ApiResponse[any]
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	view, err := s.userService.GetProfile(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, view)
}

// SearchUsers handles GET /api/users/search?q=...
// @Summary Search users
// @Tags users
// @Produce json
// @Param q query string true "Username or display name"
// @Success 200 {object} models.ApiResponse[models.Page[dto.UserSummary]]
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	page := parsePagination(c)
	res, err := s.userService.SearchUsers(c.UserContext(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// GetFollowers handles GET /api/users/:id/followers
// @Summary List followers
// @Tags follows
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[models.Page[dto.UserSummary]]
// @Router /users/{id}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	page := parsePagination(c)
	res, err := s.followService.Followers(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// GetFollowing handles GET /api/users/:id/following
// @Summary List followed users
// @Tags follows
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[models.Page[dto.UserSummary]]
// @Router /users/{id}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	page := parsePagination(c)
	res, err := s.followService.Following(c.UserContext(), id, page.Limit, page.Offset)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// Follow handles POST /api/follows/:id
// @Summary Follow a user
// @Tags follows
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[models.FollowState]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /follows/{id} [post]
func (s *Server) Follow(c *fiber.Ctx) error {
	return s.followAction(c, s.followService.Follow)
}

// Unfollow handles DELETE /api/follows/:id
// @Summary Unfollow a user
// @Tags follows
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[models.FollowState]
// @Router /follows/{id} [delete]
func (s *Server) Unfollow(c *fiber.Ctx) error {
	return s.followAction(c, s.followService.Unfollow)
}

// ToggleFollow handles POST /api/follows/:id/toggle
// @Summary Toggle following a user
// @Tags follows
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[models.FollowState]
// @Router /follows/{id}/toggle [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	return s.followAction(c, s.followService.Toggle)
}

// GetFollowStatus handles GET /api/follows/:id/status
// @Summary Follow status between me and a user
// @Tags follows
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[models.FollowState]
// @Router /follows/{id}/status [get]
func (s *Server) GetFollowStatus(c *fiber.Ctx) error {
	return s.followAction(c, s.followService.Status)
}

func (s *Server) followAction(c *fiber.Ctx, fn func(ctx context.Context, viewerID, targetID uint) (*models.FollowState, error)) error {
	target, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	st, err := fn(c.UserContext(), currentUserID(c), target)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, st)
}
