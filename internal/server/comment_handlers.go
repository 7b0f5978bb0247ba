package server

import (
	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
// @Summary Threaded comments of a post
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.ApiResponse[[]models.Comment]
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID, s.optionalUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Description A reply to a reply is attached to the top-level comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{content=string,parent_id=int} true "Comment"
// @Success 201 {object} models.ApiResponse[models.Comment]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:   currentUserID(c),
		PostID:   postID,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, comment)
}

// UpdateComment handles PUT /api/comments/:id
// @Summary Edit my comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body object{content=string} true "New content"
// @Success 200 {object} models.ApiResponse[models.Comment]
// @Router /comments/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	comment, err := s.commentService.UpdateComment(c.UserContext(), currentUserID(c), id, req.Content)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, comment)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a comment
// @Description Allowed for the comment author, the post author and admins
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.commentService.DeleteComment(c.UserContext(), currentUserID(c), id); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Comment deleted")
}
