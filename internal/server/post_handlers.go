package server

import (
	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	ImageURL *string `json:"image_url" validate:"omitempty,max=2000"`
	GameID   *uint   `json:"game_id"`
}

func (s *Server) listPosts(c *fiber.Ctx, in service.ListPostsInput) error {
	page := parsePagination(c)
	in.Limit = page.Limit
	in.Offset = page.Offset
	in.Sort = c.Query("sort", "new")
	in.CurrentUserID = s.optionalUserID(c)

	res, err := s.postService.ListPosts(c.UserContext(), in)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// GetPosts handles GET /api/posts
// @Summary Global feed
// @Tags posts
// @Produce json
// @Param page query int false "Page (1-based)"
// @Param pageSize query int false "Page size (max 50)"
// @Param sort query string false "new or top"
// @Success 200 {object} models.ApiResponse[models.Page[models.Post]]
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	return s.listPosts(c, service.ListPostsInput{})
}

// GetFollowingFeed handles GET /api/posts/feed
// @Summary Posts from followed users and myself
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[models.Page[models.Post]]
// @Router /posts/feed [get]
func (s *Server) GetFollowingFeed(c *fiber.Ctx) error {
	return s.listPosts(c, service.ListPostsInput{FollowedBy: currentUserID(c)})
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary Posts by a user
// @Tags posts
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.ApiResponse[models.Page[models.Post]]
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	return s.listPosts(c, service.ListPostsInput{UserID: id})
}

// GetGamePosts handles GET /api/games/:id/posts
// @Summary Posts about a game
// @Tags posts
// @Produce json
// @Param id path int true "Game ID"
// @Success 200 {object} models.ApiResponse[models.Page[models.Post]]
// @Router /games/{id}/posts [get]
func (s *Server) GetGamePosts(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	return s.listPosts(c, service.ListPostsInput{GameID: id})
}

// SearchPosts handles GET /api/posts/search?q=...
// @Summary Search posts
// @Tags posts
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {object} models.ApiResponse[models.Page[models.Post]]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page := parsePagination(c)
	res, err := s.postService.SearchPosts(c.UserContext(), service.ListPostsInput{
		Query:         c.Query("q"),
		Sort:          c.Query("sort", "new"),
		Limit:         page.Limit,
		Offset:        page.Offset,
		CurrentUserID: s.optionalUserID(c),
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.ApiResponse[models.Post]
// @Failure 404 {object} models.ApiResponse[any]
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, post)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,content=string,image_url=string,game_id=int} true "Post"
// @Success 201 {object} models.ApiResponse[models.Post]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	in := service.CreatePostInput{UserID: currentUserID(c), GameID: req.GameID}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Content != nil {
		in.Content = *req.Content
	}
	if req.ImageURL != nil {
		in.ImageURL = *req.ImageURL
	}
	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Edit my post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{title=string,content=string,image_url=string,game_id=int} true "Fields to change"
// @Success 200 {object} models.ApiResponse[models.Post]
// @Failure 403 {object} models.ApiResponse[any]
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req postRequest
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:   currentUserID(c),
		PostID:   id,
		Title:    req.Title,
		Content:  req.Content,
		ImageURL: req.ImageURL,
		GameID:   req.GameID,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Authors delete their own posts; admins may delete any
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Post deleted")
}
