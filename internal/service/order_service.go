package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/observability"
	"meeplehall/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderService runs checkout and the order status machine. Both need several
// repositories inside one transaction, so it keeps the database handle.
type OrderService struct {
	db      *gorm.DB
	orders  repository.OrderRepository
	isAdmin AdminCheck
	notify  *NotificationService
	rt      Realtime
}

func NewOrderService(db *gorm.DB, isAdmin AdminCheck, notify *NotificationService, rt Realtime) *OrderService {
	return &OrderService{
		db:      db,
		orders:  repository.NewOrderRepository(db),
		isAdmin: isAdmin,
		notify:  notify,
		rt:      realtimeOrNop(rt),
	}
}

type CheckoutInput struct {
	BuyerID         uint
	ShippingAddress string
	Note            string
}

// Checkout turns the buyer's cart into one pending order per seller. Every
// listing is re-read under a row lock; if any line cannot be filled nothing changes.
func (s *OrderService) Checkout(ctx context.Context, in CheckoutInput) ([]*models.Order, error) {
	address, err := requireText("shipping_address", in.ShippingAddress, 1000)
	if err != nil {
		return nil, err
	}
	note, err := optionalText("note", in.Note, 1000)
	if err != nil {
		return nil, err
	}

	var created []*models.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := repository.NewTradeItemRepository(tx)
		carts := repository.NewCartRepository(tx)
		orders := repository.NewOrderRepository(tx)

		lines, err := carts.List(ctx, in.BuyerID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return models.NewValidationError("Your cart is empty")
		}

		var (
			unavailable []string
			sellerOrder []uint
			bySeller    = map[uint]*models.Order{}
			soldOut     []uint
		)
		for _, line := range lines {
			item, err := items.GetByIDForUpdate(ctx, line.TradeItemID)
			if err != nil {
				var appErr *models.AppError
				if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
					unavailable = append(unavailable, line.TradeItem.Title)
					continue
				}
				return err
			}
			if item.Status != models.TradeItemActive || item.Quantity < line.Quantity || item.SellerID == in.BuyerID {
				unavailable = append(unavailable, item.Title)
				continue
			}

			order, ok := bySeller[item.SellerID]
			if !ok {
				order = &models.Order{
					Number:          newOrderNumber(),
					BuyerID:         in.BuyerID,
					SellerID:        item.SellerID,
					Status:          models.OrderPending,
					Currency:        item.Currency,
					ShippingAddress: address,
					Note:            note,
				}
				bySeller[item.SellerID] = order
				sellerOrder = append(sellerOrder, item.SellerID)
			}
			order.Items = append(order.Items, models.OrderItem{
				TradeItemID:    item.ID,
				Title:          item.Title,
				Quantity:       line.Quantity,
				UnitPriceCents: item.PriceCents,
			})
			order.TotalCents += item.PriceCents * int64(line.Quantity)

			remaining := item.Quantity - line.Quantity
			status := models.TradeItemActive
			if remaining == 0 {
				status = models.TradeItemSold
				soldOut = append(soldOut, item.ID)
			}
			if err := items.UpdateStock(ctx, item.ID, remaining, status); err != nil {
				return err
			}
		}
		if len(unavailable) > 0 {
			return models.NewConflictError("Some items are no longer available: " + strings.Join(unavailable, ", "))
		}

		for _, sellerID := range sellerOrder {
			order := bySeller[sellerID]
			if err := orders.Create(ctx, order); err != nil {
				return err
			}
			created = append(created, order)
		}
		if err := carts.Clear(ctx, in.BuyerID); err != nil {
			return err
		}
		for _, id := range soldOut {
			if err := carts.RemoveListing(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, models.NewInternalError(fmt.Errorf("checkout: %w", err))
	}

	observability.OrdersPlaced.Add(float64(len(created)))
	out := make([]*models.Order, 0, len(created))
	for _, o := range created {
		full, err := s.orders.GetByID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, full)
		s.notify.Notify(ctx, NotifyInput{
			RecipientID: o.SellerID,
			ActorID:     o.BuyerID,
			Type:        models.NotificationOrderPlaced,
			TargetType:  "order",
			TargetID:    o.ID,
			Message:     fmt.Sprintf("New order %s from %s", o.Number, full.Buyer.Name()),
		})
		s.rt.ToUser(ctx, o.SellerID, notifications.EventOrderUpdated, full)
	}
	return out, nil
}

func newOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "MH-" + strings.ToUpper(id[:12])
}

// orderRole is who is acting on an order.
type orderRole int

const (
	roleNone orderRole = iota
	roleBuyer
	roleSeller
	roleAdmin
)

// transitions maps a target status to the statuses it may be entered from and the roles allowed to do it.
var transitions = map[string]struct {
	from  []string
	roles []orderRole
}{
	models.OrderPaid:      {from: []string{models.OrderPending}, roles: []orderRole{roleBuyer, roleAdmin}},
	models.OrderShipped:   {from: []string{models.OrderPaid}, roles: []orderRole{roleSeller}},
	models.OrderCompleted: {from: []string{models.OrderShipped}, roles: []orderRole{roleBuyer}},
	models.OrderCancelled: {from: []string{models.OrderPending, models.OrderPaid}, roles: []orderRole{roleBuyer, roleAdmin}},
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (s *OrderService) role(ctx context.Context, order *models.Order, userID uint) (orderRole, error) {
	switch userID {
	case order.BuyerID:
		return roleBuyer, nil
	case order.SellerID:
		return roleSeller, nil
	}
	if s.isAdmin != nil && userID != 0 {
		admin, err := s.isAdmin(ctx, userID)
		if err != nil {
			return roleNone, err
		}
		if admin {
			return roleAdmin, nil
		}
	}
	return roleNone, nil
}

// UpdateStatus moves an order along pending → paid → shipped → completed, or
// cancels it from pending or paid. Cancelling puts the stock back.
func (s *OrderService) UpdateStatus(ctx context.Context, actorID, orderID uint, status string) (*models.Order, error) {
	rule, ok := transitions[status]
	if !ok {
		return nil, models.NewValidationError("status must be one of paid, shipped, completed, cancelled")
	}

	var role orderRole
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := repository.NewOrderRepository(tx)
		order, err := orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if role, err = s.role(ctx, order, actorID); err != nil {
			return err
		}
		if role == roleNone {
			return models.NewNotFoundError("Order", orderID)
		}
		if !contains(rule.roles, role) {
			return models.NewForbiddenError(fmt.Sprintf("You cannot mark this order %s", status))
		}
		if !contains(rule.from, order.Status) {
			return models.NewConflictError(fmt.Sprintf("Order is %s and cannot become %s", order.Status, status))
		}
		if status == models.OrderCancelled {
			if err := restoreStock(ctx, repository.NewTradeItemRepository(tx), order.Items); err != nil {
				return err
			}
		}
		return orders.UpdateStatus(ctx, orderID, status)
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}

	observability.OrderTransitions.WithLabelValues(status).Inc()
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, order, actorID, role)
	return order, nil
}

func restoreStock(ctx context.Context, items repository.TradeItemRepository, lines []models.OrderItem) error {
	for _, line := range lines {
		item, err := items.GetByIDForUpdate(ctx, line.TradeItemID)
		if err != nil {
			var appErr *models.AppError
			if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
				continue
			}
			return err
		}
		status := item.Status
		if status == models.TradeItemSold {
			status = models.TradeItemActive
		}
		if err := items.UpdateStock(ctx, item.ID, item.Quantity+line.Quantity, status); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderService) announce(ctx context.Context, order *models.Order, actorID uint, role orderRole) {
	var recipients []uint
	switch role {
	case roleBuyer:
		recipients = []uint{order.SellerID}
	case roleSeller:
		recipients = []uint{order.BuyerID}
	default:
		recipients = []uint{order.BuyerID, order.SellerID}
	}
	for _, id := range recipients {
		s.notify.Notify(ctx, NotifyInput{
			RecipientID: id,
			ActorID:     actorID,
			Type:        models.NotificationOrderStatus,
			TargetType:  "order",
			TargetID:    order.ID,
			Message:     fmt.Sprintf("Order %s is now %s", order.Number, order.Status),
		})
		s.rt.ToUser(ctx, id, notifications.EventOrderUpdated, order)
	}
}

// GetOrder is visible to the buyer, the seller, and admins.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	role, err := s.role(ctx, order, userID)
	if err != nil {
		return nil, err
	}
	if role == roleNone {
		return nil, models.NewNotFoundError("Order", orderID)
	}
	return order, nil
}

func validOrderStatus(status string) bool {
	_, ok := transitions[status]
	return ok || status == models.OrderPending
}

type ListOrdersInput struct {
	UserID uint
	Status string
	Limit  int
	Offset int
}

func (s *OrderService) ListMyOrders(ctx context.Context, in ListOrdersInput) (models.Page[models.Order], error) {
	return s.list(in, func() ([]models.Order, int64, error) {
		return s.orders.ListByBuyer(ctx, in.UserID, in.Status, in.Limit, in.Offset)
	})
}

func (s *OrderService) ListSales(ctx context.Context, in ListOrdersInput) (models.Page[models.Order], error) {
	return s.list(in, func() ([]models.Order, int64, error) {
		return s.orders.ListBySeller(ctx, in.UserID, in.Status, in.Limit, in.Offset)
	})
}

func (s *OrderService) ListAll(ctx context.Context, in ListOrdersInput) (models.Page[models.Order], error) {
	return s.list(in, func() ([]models.Order, int64, error) {
		return s.orders.ListAll(ctx, in.Status, in.Limit, in.Offset)
	})
}

func (s *OrderService) list(in ListOrdersInput, fetch func() ([]models.Order, int64, error)) (models.Page[models.Order], error) {
	if in.Status != "" && !validOrderStatus(in.Status) {
		return models.Page[models.Order]{}, models.NewValidationError("status must be one of pending, paid, shipped, completed, cancelled")
	}
	orders, total, err := fetch()
	if err != nil {
		return models.Page[models.Order]{}, models.NewInternalError(err)
	}
	return models.NewPage(orders, in.Limit, in.Offset, total), nil
}
