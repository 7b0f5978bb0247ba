package server

import (
	"context"

	"meeplehall/internal/models"

	"github.com/gofiber/fiber/v2"
)

type likeRequest struct {
	ItemType string `json:"item_type" validate:"required"`
	ItemID   uint   `json:"item_id" validate:"required"`
}

type likeMutation func(ctx context.Context, userID uint, itemType models.LikeItemType, itemID uint) (*models.LikeState, error)

// likeTarget reads the item from the JSON body.
func likeTarget(c *fiber.Ctx) (models.LikeItemType, uint, error) {
	var req likeRequest
	if err := bindJSON(c, &req); err != nil {
		return "", 0, err
	}
	t := models.LikeItemType(req.ItemType)
	if !t.Valid() {
		return "", 0, models.NewValidationError("item_type must be one of post, comment, trade_item")
	}
	return t, req.ItemID, nil
}

// likePathTarget reads the item from /:itemType/:itemId.
func likePathTarget(c *fiber.Ctx) (models.LikeItemType, uint, bool) {
	t := models.LikeItemType(c.Params("itemType"))
	if !t.Valid() {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("item_type must be one of post, comment, trade_item"))
		return "", 0, false
	}
	id, ok := parseID(c, "itemId")
	return t, id, ok
}

func (s *Server) mutateLike(c *fiber.Ctx, t models.LikeItemType, id uint, fn likeMutation) error {
	userID := currentUserID(c)
	return s.withLikeLock(c, t, id, func(ctx context.Context) (*models.LikeState, error) {
		return fn(ctx, userID, t, id)
	})
}

func (s *Server) mutateLikeFromBody(c *fiber.Ctx, fn likeMutation) error {
	t, id, err := likeTarget(c)
	if err != nil {
		return models.HandleError(c, err)
	}
	return s.mutateLike(c, t, id, fn)
}

func (s *Server) mutateLikeFromPath(c *fiber.Ctx, fn likeMutation) error {
	t, id, ok := likePathTarget(c)
	if !ok {
		return nil
	}
	return s.mutateLike(c, t, id, fn)
}

// Like handles POST /api/likes
// @Summary Like an item
// @Description Idempotent. Concurrent requests for the same item by the same user are serialised; a request that waits too long fails with 409 BUSY.
// @Tags likes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body likeRequest true "Item"
// @Success 200 {object} models.ApiResponse[models.LikeState]
// @Failure 404 {object} models.ApiResponse[any]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /likes [post]
func (s *Server) Like(c *fiber.Ctx) error {
	return s.mutateLikeFromBody(c, s.likeService.Like)
}

// Unlike handles DELETE /api/likes
// @Summary Unlike an item
// @Tags likes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body likeRequest true "Item"
// @Success 200 {object} models.ApiResponse[models.LikeState]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /likes [delete]
func (s *Server) Unlike(c *fiber.Ctx) error {
	return s.mutateLikeFromBody(c, s.likeService.Unlike)
}

// ToggleLike handles POST /api/likes/toggle
// @Summary Toggle a like
// @Tags likes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body likeRequest true "Item"
// @Success 200 {object} models.ApiResponse[models.LikeState]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /likes/toggle [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	return s.mutateLikeFromBody(c, s.likeService.Toggle)
}

// LikeByPath handles POST /api/likes/:itemType/:itemId
// @Summary Like an item
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param itemType path string true "post, comment or trade_item"
// @Param itemId path int true "Item ID"
// @Success 200 {object} models.ApiResponse[models.LikeState]
// @Router /likes/{itemType}/{itemId} [post]
func (s *Server) LikeByPath(c *fiber.Ctx) error {
	return s.mutateLikeFromPath(c, s.likeService.Like)
}

// UnlikeByPath handles DELETE /api/likes/:itemType/:itemId
// @Summary Unlike an item
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param itemType path string true "post, comment or trade_item"
// @Param itemId path int true "Item ID"
// @Success 200 {object} models.ApiResponse[models.LikeState]
// @Router /likes/{itemType}/{itemId} [delete]
func (s *Server) UnlikeByPath(c *fiber.Ctx) error {
	return s.mutateLikeFromPath(c, s.likeService.Unlike)
}

// GetLikeState handles GET /api/likes/:itemType/:itemId
// @Summary My like state for an item
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param itemType path string true "post, comment or trade_item"
// @Param itemId path int true "Item ID"
// @Success 200 {object} models.ApiResponse[models.LikeState]
// @Router /likes/{itemType}/{itemId} [get]
func (s *Server) GetLikeState(c *fiber.Ctx) error {
	t, id, ok := likePathTarget(c)
	if !ok {
		return nil
	}
	st, err := s.likeService.State(c.UserContext(), currentUserID(c), t, id)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, st)
}
