package server

import (
	"math"
	"strconv"

	"meeplehall/internal/models"
	"meeplehall/internal/repository"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// parsePriceCents reads a decimal price ("12.50") from the query string.
func parsePriceCents(c *fiber.Ctx, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, models.NewValidationError("Invalid "+key, key+" must be a non-negative number")
	}
	return int64(math.Round(f * 100)), nil
}

func listingFilter(c *fiber.Ctx) (repository.TradeItemFilter, error) {
	minCents, err := parsePriceCents(c, "min_price")
	if err != nil {
		return repository.TradeItemFilter{}, err
	}
	maxCents, err := parsePriceCents(c, "max_price")
	if err != nil {
		return repository.TradeItemFilter{}, err
	}
	return repository.TradeItemFilter{
		SellerID:  uint(c.QueryInt("seller_id", 0)),
		GameID:    uint(c.QueryInt("game_id", 0)),
		Condition: c.Query("condition"),
		Query:     c.Query("q"),
		MinCents:  minCents,
		MaxCents:  maxCents,
		Sort:      c.Query("sort", "newest"),
	}, nil
}

// GetListings handles GET /api/market/listings
// @Summary Browse active trade listings
// @Tags market
// @Produce json
// @Param q query string false "Text search"
// @Param game_id query int false "Game"
// @Param condition query string false "new, like_new, good, fair or poor"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param seller_id query int false "Seller"
// @Param sort query string false "newest, price_asc, price_desc or popular"
// @Success 200 {object} models.ApiResponse[models.Page[models.TradeItem]]
// @Router /market/listings [get]
func (s *Server) GetListings(c *fiber.Ctx) error {
	filter, err := listingFilter(c)
	if err != nil {
		return models.HandleError(c, err)
	}
	return s.listListings(c, filter)
}

// GetMyListings handles GET /api/market/my-listings
// @Summary My listings in every status
// @Tags market
// @Produce json
// @Security BearerAuth
// @Param status query string false "active, sold, removed or all"
// @Success 200 {object} models.ApiResponse[models.Page[models.TradeItem]]
// @Router /market/my-listings [get]
func (s *Server) GetMyListings(c *fiber.Ctx) error {
	return s.listListings(c, repository.TradeItemFilter{
		SellerID: currentUserID(c),
		Status:   c.Query("status", "all"),
		Sort:     "newest",
	})
}

func (s *Server) listListings(c *fiber.Ctx, filter repository.TradeItemFilter) error {
	page := parsePagination(c)
	res, err := s.marketService.ListListings(c.UserContext(), service.ListListingsInput{
		Filter:   filter,
		ViewerID: s.optionalUserID(c),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// GetListing handles GET /api/market/listings/:id
// @Summary Get a listing
// @Tags market
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} models.ApiResponse[models.TradeItem]
// @Failure 404 {object} models.ApiResponse[any]
// @Router /market/listings/{id} [get]
func (s *Server) GetListing(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	item, err := s.marketService.GetListing(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, item)
}

// CreateListing handles POST /api/market/listings
// @Summary List a game for sale
// @Tags market
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ListingInput true "Listing"
// @Success 201 {object} models.ApiResponse[models.TradeItem]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /market/listings [post]
func (s *Server) CreateListing(c *fiber.Ctx) error {
	var req service.ListingInput
	if err := parseBody(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	item, err := s.marketService.CreateListing(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, item)
}

// UpdateListing handles PUT /api/market/listings/:id
// @Summary Edit my listing
// @Tags market
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Param request body service.ListingInput true "Listing"
// @Success 200 {object} models.ApiResponse[models.TradeItem]
// @Failure 403 {object} models.ApiResponse[any]
// @Router /market/listings/{id} [put]
func (s *Server) UpdateListing(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req service.ListingInput
	if err := parseBody(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	item, err := s.marketService.UpdateListing(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, item)
}

// RemoveListing handles DELETE /api/market/listings/:id
// @Summary Withdraw a listing
// @Tags market
// @Produce json
// @Security BearerAuth
// @Param id path int true "Listing ID"
// @Success 200 {object} models.ApiResponse[any]
// @Router /market/listings/{id} [delete]
func (s *Server) RemoveListing(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	if err := s.marketService.RemoveListing(c.UserContext(), currentUserID(c), id); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Listing removed")
}

// GetCart handles GET /api/cart
// @Summary My cart grouped by seller
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[models.Cart]
// @Router /cart [get]
func (s *Server) GetCart(c *fiber.Ctx) error {
	cart, err := s.marketService.GetCart(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, cart)
}

// AddToCart handles POST /api/cart/items
// @Summary Add a listing to my cart
// @Description Adding an item already in the cart increases its quantity
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{trade_item_id=int,quantity=int} true "Item"
// @Success 200 {object} models.ApiResponse[models.Cart]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /cart/items [post]
func (s *Server) AddToCart(c *fiber.Ctx) error {
	var req struct {
		TradeItemID uint `json:"trade_item_id" validate:"required"`
		Quantity    int  `json:"quantity" validate:"omitempty,min=1,max=1000"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := s.marketService.AddToCart(c.UserContext(), currentUserID(c), req.TradeItemID, req.Quantity)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, cart)
}

// UpdateCartItem handles PUT /api/cart/items/:itemId
// @Summary Set the quantity of a cart line
// @Description A quantity of zero removes the line
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param itemId path int true "Listing ID"
// @Param request body object{quantity=int} true "Quantity"
// @Success 200 {object} models.ApiResponse[models.Cart]
// @Router /cart/items/{itemId} [put]
func (s *Server) UpdateCartItem(c *fiber.Ctx) error {
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return nil
	}
	var req struct {
		Quantity int `json:"quantity" validate:"min=0,max=1000"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	cart, err := s.marketService.UpdateCartItem(c.UserContext(), currentUserID(c), itemID, req.Quantity)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, cart)
}

// RemoveFromCart handles DELETE /api/cart/items/:itemId
// @Summary Remove a line from my cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Param itemId path int true "Listing ID"
// @Success 200 {object} models.ApiResponse[models.Cart]
// @Router /cart/items/{itemId} [delete]
func (s *Server) RemoveFromCart(c *fiber.Ctx) error {
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return nil
	}
	cart, err := s.marketService.RemoveFromCart(c.UserContext(), currentUserID(c), itemID)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, cart)
}

// ClearCart handles DELETE /api/cart
// @Summary Empty my cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[any]
// @Router /cart [delete]
func (s *Server) ClearCart(c *fiber.Ctx) error {
	if err := s.marketService.ClearCart(c.UserContext(), currentUserID(c)); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Cart cleared")
}
