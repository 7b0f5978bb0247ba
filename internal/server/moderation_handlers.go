package server

import (
	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateReport handles POST /api/reports
// @Summary Report content or a user
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{target_type=string,target_id=int,reason=string,details=string} true "Report"
// @Success 201 {object} models.ApiResponse[models.ModerationReport]
// @Failure 400 {object} models.ApiResponse[any]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /reports [post]
func (s *Server) CreateReport(c *fiber.Ctx) error {
	var req struct {
		TargetType string `json:"target_type" validate:"required,oneof=post comment user trade_item"`
		TargetID   uint   `json:"target_id" validate:"required"`
		Reason     string `json:"reason" validate:"required,max=100"`
		Details    string `json:"details" validate:"max=2000"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	report, err := s.moderationService.Report(c.UserContext(), service.ReportInput{
		ReporterID: currentUserID(c),
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
		Details:    req.Details,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, report, "Report submitted")
}

// GetReports handles GET /api/admin/reports
// @Summary Moderation queue
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "open, resolved, dismissed or all"
// @Success 200 {object} models.ApiResponse[models.Page[models.ModerationReport]]
// @Router /admin/reports [get]
func (s *Server) GetReports(c *fiber.Ctx) error {
	page := parsePagination(c)
	status := c.Query("status", models.ReportOpen)
	if status == "all" {
		status = ""
	}
	res, err := s.moderationService.ListReports(c.UserContext(), status, page.Limit, page.Offset)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// ResolveReport handles POST /api/admin/reports/:id/resolve
// @Summary Resolve a report
// @Description action is dismiss, hide_content or ban_user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Report ID"
// @Param request body object{action=string,note=string} true "Resolution"
// @Success 200 {object} models.ApiResponse[models.ModerationReport]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /admin/reports/{id}/resolve [post]
func (s *Server) ResolveReport(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Action string `json:"action" validate:"required,oneof=dismiss hide_content ban_user"`
		Note   string `json:"note" validate:"max=1000"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	report, err := s.moderationService.ResolveReport(c.UserContext(), service.ResolveInput{
		AdminID:  currentUserID(c),
		ReportID: id,
		Action:   req.Action,
		Note:     req.Note,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, report)
}

// GetDashboard handles GET /api/admin/dashboard
// @Summary Community totals for the admin dashboard
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[models.DashboardStats]
// @Router /admin/dashboard [get]
func (s *Server) GetDashboard(c *fiber.Ctx) error {
	stats, err := s.moderationService.Dashboard(c.UserContext())
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, stats)
}
