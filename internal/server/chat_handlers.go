package server

import (
	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateConversation handles POST /api/conversations
// @Summary Start a conversation
// @Description A single participant makes a direct conversation, which is reused if it already exists
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{participant_ids=[]int,title=string} true "Participants"
// @Success 201 {object} models.ApiResponse[models.Conversation]
// @Failure 403 {object} models.ApiResponse[any]
// @Router /conversations [post]
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	var req struct {
		ParticipantIDs []uint `json:"participant_ids" validate:"required,min=1,max=50"`
		Title          string `json:"title" validate:"max=100"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	conv, err := s.chatService.CreateConversation(c.UserContext(), service.CreateConversationInput{
		CreatorID:      currentUserID(c),
		ParticipantIDs: req.ParticipantIDs,
		Title:          req.Title,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, conv)
}

// GetConversations handles GET /api/conversations
// @Summary My conversations, most recent first
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[[]models.Conversation]
// @Router /conversations [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	convs, err := s.chatService.ListConversations(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, convs)
}

// GetConversation handles GET /api/conversations/:id
// @Summary Get a conversation I take part in
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.ApiResponse[models.Conversation]
// @Failure 404 {object} models.ApiResponse[any]
// @Router /conversations/{id} [get]
func (s *Server) GetConversation(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	conv, err := s.chatService.GetConversation(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, conv)
}

// GetMessages handles GET /api/conversations/:id/messages
// @Summary Message history
// @Description Newest messages first; pass before_id to page backwards
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param limit query int false "Max messages (default 50)"
// @Param before_id query int false "Only messages older than this id"
// @Success 200 {object} models.ApiResponse[[]models.Message]
// @Router /conversations/{id}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}
	before := c.QueryInt("before_id", 0)
	if before < 0 {
		before = 0
	}
	msgs, err := s.chatService.GetMessages(c.UserContext(), id, currentUserID(c), limit, uint(before))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, msgs)
}

// SendMessage handles POST /api/conversations/:id/messages
// @Summary Send a message
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Param request body object{content=string} true "Message"
// @Success 201 {object} models.ApiResponse[models.Message]
// @Failure 403 {object} models.ApiResponse[any]
// @Router /conversations/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Content string `json:"content" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	msg, err := s.chatService.SendMessage(c.UserContext(), id, currentUserID(c), req.Content)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, msg)
}

// MarkConversationRead handles POST /api/conversations/:id/read
// @Summary Mark a conversation read
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /conversations/{id}/read [post]
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.chatService.MarkRead(c.UserContext(), id, currentUserID(c)); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Conversation marked as read")
}

// LeaveConversation handles DELETE /api/conversations/:id
// @Summary Leave a conversation
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param id path int true "Conversation ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /conversations/{id} [delete]
func (s *Server) LeaveConversation(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	userID := currentUserID(c)
	if err := s.chatService.LeaveConversation(c.UserContext(), id, userID); err != nil {
		return models.HandleError(c, err)
	}
	s.chatHub.LeaveConversation(userID, id)
	return models.Respond[any](c, fiber.StatusOK, nil, "Left conversation")
}

// GetUnreadMessages handles GET /api/conversations/unread-count
// @Summary Unread messages across my conversations
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[object]
// @Router /conversations/unread-count [get]
func (s *Server) GetUnreadMessages(c *fiber.Ctx) error {
	n, err := s.chatService.UnreadTotal(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, fiber.Map{"count": n})
}
