package server

import (
	"log/slog"

	"meeplehall/internal/dto"
	"meeplehall/internal/middleware"
	"meeplehall/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AdminListUsers handles GET /api/admin/users
// @Summary List accounts
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param q query string false "Username or email"
// @Param include_deleted query bool false "Include soft-deleted accounts"
// @Success 200 {object} models.ApiResponse[models.Page[dto.AdminUserView]]
// @Router /admin/users [get]
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	page := parsePagination(c)
	res, err := s.userService.AdminListUsers(c.UserContext(), c.Query("q"), c.QueryBool("include_deleted", false), page.Limit, page.Offset)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

func (s *Server) adminUserAction(c *fiber.Ctx, action string, fn func(actorID, targetID uint) (*models.User, error)) error {
	target, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	actor := currentUserID(c)
	user, err := fn(actor, target)
	if err != nil {
		return models.HandleError(c, err)
	}
	middleware.Logger.InfoContext(c.UserContext(), "admin user action",
		slog.String("action", action),
		slog.Uint64("actor_id", uint64(actor)),
		slog.Uint64("target_id", uint64(target)),
	)
	view, err := dto.NewAdminUserView(user)
	if err != nil {
		return models.HandleError(c, models.NewInternalError(err))
	}
	return models.RespondOK(c, view)
}

// BanUser handles POST /api/admin/users/:id/ban
// @Summary Ban an account
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[dto.AdminUserView]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /admin/users/{id}/ban [post]
func (s *Server) BanUser(c *fiber.Ctx) error {
	return s.adminUserAction(c, "ban", func(actor, target uint) (*models.User, error) {
		return s.userService.SetBanned(c.UserContext(), actor, target, true)
	})
}

// UnbanUser handles POST /api/admin/users/:id/unban
// @Summary Lift a ban
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[dto.AdminUserView]
// @Router /admin/users/{id}/unban [post]
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	return s.adminUserAction(c, "unban", func(actor, target uint) (*models.User, error) {
		return s.userService.SetBanned(c.UserContext(), actor, target, false)
	})
}

// PromoteAdmin handles POST /api/admin/users/:id/promote
// @Summary Grant admin rights
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[dto.AdminUserView]
// @Router /admin/users/{id}/promote [post]
func (s *Server) PromoteAdmin(c *fiber.Ctx) error {
	return s.adminUserAction(c, "promote", func(actor, target uint) (*models.User, error) {
		return s.userService.SetAdmin(c.UserContext(), actor, target, true)
	})
}

// DemoteAdmin handles POST /api/admin/users/:id/demote
// @Summary Revoke admin rights
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[dto.AdminUserView]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /admin/users/{id}/demote [post]
func (s *Server) DemoteAdmin(c *fiber.Ctx) error {
	return s.adminUserAction(c, "demote", func(actor, target uint) (*models.User, error) {
		return s.userService.SetAdmin(c.UserContext(), actor, target, false)
	})
}

// RestoreUser handles POST /api/admin/users/:id/restore
// @Summary Restore a soft-deleted account
// @Description Fails with 409 when the email or username has been taken since
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[dto.AdminUserView]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /admin/users/{id}/restore [post]
func (s *Server) RestoreUser(c *fiber.Ctx) error {
	return s.adminUserAction(c, "restore", func(_, target uint) (*models.User, error) {
		return s.userService.RestoreUser(c.UserContext(), target)
	})
}

// AdminDeleteUser handles DELETE /api/admin/users/:id
// @Summary Soft-delete an account
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /admin/users/{id} [delete]
func (s *Server) AdminDeleteUser(c *fiber.Ctx) error {
	target, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.userService.SoftDeleteUser(c.UserContext(), currentUserID(c), target); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "User deleted")
}

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Configured feature flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[object]
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return models.RespondOK(c, fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}

// SetFeatureFlag handles PUT /api/admin/feature-flags/:name
// @Summary Override a feature flag until restart
// @Description value is on, off, or a rollout percentage such as 25%
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Flag name"
// @Param request body object{value=string} true "Value"
// @Success 200 {object} models.ApiResponse[object]
// @Router /admin/feature-flags/{name} [put]
func (s *Server) SetFeatureFlag(c *fiber.Ctx) error {
	var req struct {
		Value string `json:"value" validate:"required,max=10"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	name := c.Params("name")
	s.featureFlags.Set(name, req.Value)
	middleware.Logger.InfoContext(c.UserContext(), "feature flag changed",
		slog.String("flag", name),
		slog.String("value", req.Value),
		slog.Uint64("actor_id", uint64(currentUserID(c))),
	)
	return s.GetFeatureFlags(c)
}

// GetMyFeatureFlags handles GET /api/feature-flags
// @Summary Feature flags evaluated for me
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[map[string]bool]
// @Router /feature-flags [get]
func (s *Server) GetMyFeatureFlags(c *fiber.Ctx) error {
	return models.RespondOK(c, s.featureFlags.Snapshot(currentUserID(c)))
}
