package server

import (
	"context"

	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Checkout handles POST /api/orders/checkout
// @Summary Check out my cart
// @Description Creates one order per seller and reserves stock. Fails with 409 when any line is no longer available.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{shipping_address=string,note=string} true "Shipping details"
// @Success 201 {object} models.ApiResponse[[]models.Order]
// @Failure 400 {object} models.ApiResponse[any]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /orders/checkout [post]
func (s *Server) Checkout(c *fiber.Ctx) error {
	var req struct {
		ShippingAddress string `json:"shipping_address" validate:"required,max=1000"`
		Note            string `json:"note" validate:"max=1000"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	orders, err := s.orderService.Checkout(c.UserContext(), service.CheckoutInput{
		BuyerID:         currentUserID(c),
		ShippingAddress: req.ShippingAddress,
		Note:            req.Note,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, orders, "Order placed")
}

func (s *Server) listOrders(c *fiber.Ctx, userID uint, fn func(context.Context, service.ListOrdersInput) (models.Page[models.Order], error)) error {
	page := parsePagination(c)
	res, err := fn(c.UserContext(), service.ListOrdersInput{
		UserID: userID,
		Status: c.Query("status"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// GetMyOrders handles GET /api/orders
// @Summary Orders I placed
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param status query string false "Order status"
// @Success 200 {object} models.ApiResponse[models.Page[models.Order]]
// @Router /orders [get]
func (s *Server) GetMyOrders(c *fiber.Ctx) error {
	return s.listOrders(c, currentUserID(c), s.orderService.ListMyOrders)
}

// GetMySales handles GET /api/orders/sales
// @Summary Orders placed with me as seller
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param status query string false "Order status"
// @Success 200 {object} models.ApiResponse[models.Page[models.Order]]
// @Router /orders/sales [get]
func (s *Server) GetMySales(c *fiber.Ctx) error {
	return s.listOrders(c, currentUserID(c), s.orderService.ListSales)
}

// AdminListOrders handles GET /api/admin/orders
// @Summary All orders
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Order status"
// @Success 200 {object} models.ApiResponse[models.Page[models.Order]]
// @Router /admin/orders [get]
func (s *Server) AdminListOrders(c *fiber.Ctx) error {
	return s.listOrders(c, 0, s.orderService.ListAll)
}

// GetOrder handles GET /api/orders/:id
// @Summary Get an order I bought or sold
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Success 200 {object} models.ApiResponse[models.Order]
// @Failure 404 {object} models.ApiResponse[any]
// @Router /orders/{id} [get]
func (s *Server) GetOrder(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	order, err := s.orderService.GetOrder(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, order)
}

// UpdateOrderStatus handles PATCH /api/orders/:id/status
// @Summary Move an order through its lifecycle
// @Description Sellers confirm, ship and complete; buyers cancel pending orders and complete shipped ones. Cancelling restores stock.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Order ID"
// @Param request body object{status=string} true "Target status"
// @Success 200 {object} models.ApiResponse[models.Order]
// @Failure 403 {object} models.ApiResponse[any]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /orders/{id}/status [patch]
func (s *Server) UpdateOrderStatus(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return nil
	}
	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	order, err := s.orderService.UpdateStatus(c.UserContext(), currentUserID(c), id, req.Status)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, order)
}
