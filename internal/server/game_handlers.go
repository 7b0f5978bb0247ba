package server

import (
	"meeplehall/internal/featureflags"
	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetGames handles GET /api/games
// @Summary Browse the game encyclopedia
// @Tags games
// @Produce json
// @Param q query string false "Text search"
// @Param category query string false "Category"
// @Param players query int false "Supports this player count"
// @Success 200 {object} models.ApiResponse[models.Page[models.Game]]
// @Router /games [get]
func (s *Server) GetGames(c *fiber.Ctx) error {
	page := parsePagination(c)
	uid := s.optionalUserID(c)
	res, err := s.gameService.ListGames(c.UserContext(), service.ListGamesInput{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Players:  c.QueryInt("players", 0),
		Limit:    page.Limit,
		Offset:   page.Offset,
		SQLOnly:  !s.featureFlags.Enabled(featureflags.GameSearch, uid),
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// SearchGames handles GET /api/games/search?q=...
// @Summary Search games by name, designer or description
// @Tags games
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {object} models.ApiResponse[models.Page[models.Game]]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /games/search [get]
func (s *Server) SearchGames(c *fiber.Ctx) error {
	if c.Query("q") == "" {
		return models.HandleError(c, models.NewValidationError("Search query is required", "q is required"))
	}
	return s.GetGames(c)
}

// GetGame handles GET /api/games/:idOrSlug
// @Summary Get a game by id or slug
// @Tags games
// @Produce json
// @Param idOrSlug path string true "Game ID or slug"
// @Success 200 {object} models.ApiResponse[models.Game]
// @Failure 404 {object} models.ApiResponse[any]
// @Router /games/{idOrSlug} [get]
func (s *Server) GetGame(c *fiber.Ctx) error {
	game, err := s.gameService.GetGame(c.UserContext(), c.Params("idOrSlug"), s.optionalUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, game)
}

// RateGame handles PUT /api/games/:id/rating
// @Summary Rate a game from 1 to 10
// @Description Re-rating replaces the previous score
// @Tags games
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Game ID"
// @Param request body object{score=int} true "Score"
// @Success 200 {object} models.ApiResponse[models.Game]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /games/{id}/rating [put]
func (s *Server) RateGame(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Score int `json:"score" validate:"required,min=1,max=10"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	game, err := s.gameService.RateGame(c.UserContext(), currentUserID(c), id, req.Score)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, game)
}

// DeleteRating handles DELETE /api/games/:id/rating
// @Summary Remove my rating
// @Tags games
// @Produce json
// @Security BearerAuth
// @Param id path int true "Game ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /games/{id}/rating [delete]
func (s *Server) DeleteRating(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.gameService.DeleteRating(c.UserContext(), currentUserID(c), id); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Rating removed")
}

// CreateGame handles POST /api/admin/games
// @Summary Add a game to the encyclopedia
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.GameInput true "Game"
// @Success 201 {object} models.ApiResponse[models.Game]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /admin/games [post]
func (s *Server) CreateGame(c *fiber.Ctx) error {
	var req service.GameInput
	if err := parseBody(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	game, err := s.gameService.CreateGame(c.UserContext(), req)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, game)
}

// UpdateGame handles PUT /api/admin/games/:id
// @Summary Edit a game
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Game ID"
// @Param request body service.GameInput true "Game"
// @Success 200 {object} models.ApiResponse[models.Game]
// @Router /admin/games/{id} [put]
func (s *Server) UpdateGame(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req service.GameInput
	if err := parseBody(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	game, err := s.gameService.UpdateGame(c.UserContext(), id, req)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, game)
}

// DeleteGame handles DELETE /api/admin/games/:id
// @Summary Remove a game
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Game ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /admin/games/{id} [delete]
func (s *Server) DeleteGame(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.gameService.DeleteGame(c.UserContext(), id); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Game deleted")
}

// ReindexGames handles POST /api/admin/games/reindex
// @Summary Rebuild the game search index
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[object]
// @Router /admin/games/reindex [post]
func (s *Server) ReindexGames(c *fiber.Ctx) error {
	n, err := s.gameService.Reindex(c.UserContext())
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, fiber.Map{"indexed": n})
}
