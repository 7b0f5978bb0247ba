package server

import (
	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
// @Summary My notifications, newest first
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread_only query bool false "Only unread"
// @Success 200 {object} models.ApiResponse[models.Page[models.Notification]]
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page := parsePagination(c)
	res, err := s.notificationService.List(c.UserContext(), service.ListNotificationsInput{
		UserID:     currentUserID(c),
		UnreadOnly: c.QueryBool("unread_only", false),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// GetUnreadNotificationCount handles GET /api/notifications/unread-count
// @Summary Number of unread notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[object]
// @Router /notifications/unread-count [get]
func (s *Server) GetUnreadNotificationCount(c *fiber.Ctx) error {
	n, err := s.notificationService.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, fiber.Map{"count": n})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
// @Summary Mark one notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} models.ApiResponse[any]
// @Failure 404 {object} models.ApiResponse[any]
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.notificationService.MarkRead(c.UserContext(), currentUserID(c), id); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Notification marked as read")
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[object]
// @Router /notifications/read-all [post]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, fiber.Map{"updated": n})
}

// DeleteNotification handles DELETE /api/notifications/:id
// @Summary Delete a notification
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /notifications/{id} [delete]
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.notificationService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Notification deleted")
}
