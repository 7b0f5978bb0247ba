package service

import (
	"context"
	"fmt"
	"strings"

	"meeplehall/internal/models"
	"meeplehall/internal/repository"
	"meeplehall/internal/validation"
)

// MarketService manages listings and carts.
type MarketService struct {
	items   repository.TradeItemRepository
	carts   repository.CartRepository
	games   repository.GameRepository
	isAdmin AdminCheck
}

func NewMarketService(items repository.TradeItemRepository, carts repository.CartRepository, games repository.GameRepository, isAdmin AdminCheck) *MarketService {
	return &MarketService{items: items, carts: carts, games: games, isAdmin: isAdmin}
}

// ListingInput is the payload for creating or replacing a listing.
type ListingInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
	PriceCents  int64  `json:"price_cents" validate:"gt=0,lte=100000000"`
	Currency    string `json:"currency" validate:"omitempty,currency"`
	Condition   string `json:"condition" validate:"required,condition"`
	Quantity    int    `json:"quantity" validate:"gte=1,lte=1000"`
	GameID      *uint  `json:"game_id"`
	ImageURL    string `json:"image_url" validate:"omitempty,max=2000"`
}

func (s *MarketService) validateListing(ctx context.Context, in *ListingInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.GameID != nil {
		if *in.GameID == 0 {
			in.GameID = nil
		} else if _, err := s.games.GetByID(ctx, *in.GameID); err != nil {
			return err
		}
	}
	return nil
}

func (s *MarketService) CreateListing(ctx context.Context, sellerID uint, in ListingInput) (*models.TradeItem, error) {
	if err := s.validateListing(ctx, &in); err != nil {
		return nil, err
	}
	item := &models.TradeItem{
		SellerID:    sellerID,
		GameID:      in.GameID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		PriceCents:  in.PriceCents,
		Currency:    in.Currency,
		Condition:   in.Condition,
		Quantity:    in.Quantity,
		Status:      models.TradeItemActive,
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.items.GetByID(ctx, item.ID, sellerID)
}

// GetListing hides removed listings from everyone except the seller and admins.
func (s *MarketService) GetListing(ctx context.Context, id, viewerID uint) (*models.TradeItem, error) {
	item, err := s.items.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if item.Status == models.TradeItemRemoved && item.SellerID != viewerID {
		admin, err := s.admin(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, models.NewNotFoundError("TradeItem", id)
		}
	}
	return item, nil
}

type ListListingsInput struct {
	Filter   repository.TradeItemFilter
	ViewerID uint
	Limit    int
	Offset   int
}

// ListListings shows active listings only, unless a seller is browsing their own.
func (s *MarketService) ListListings(ctx context.Context, in ListListingsInput) (models.Page[models.TradeItem], error) {
	f := in.Filter
	if f.SellerID == 0 || f.SellerID != in.ViewerID {
		f.Status = ""
	} else if f.Status != "" && f.Status != "all" && f.Status != models.TradeItemActive &&
		f.Status != models.TradeItemSold && f.Status != models.TradeItemRemoved {
		return models.Page[models.TradeItem]{}, models.NewValidationError("status must be one of active, sold, removed, all")
	}
	switch f.Sort {
	case "", "new", "newest":
		f.Sort = "newest"
	case "price_asc", "price_desc", "popular":
	default:
		return models.Page[models.TradeItem]{}, models.NewValidationError("sort must be one of new, price_asc, price_desc, popular")
	}
	if f.Condition != "" && !models.ValidCondition(f.Condition) {
		return models.Page[models.TradeItem]{}, models.NewValidationError("condition must be one of new, like_new, good, fair, poor")
	}
	items, total, err := s.items.List(ctx, f, in.Limit, in.Offset, in.ViewerID)
	if err != nil {
		return models.Page[models.TradeItem]{}, models.NewInternalError(err)
	}
	return models.NewPage(items, in.Limit, in.Offset, total), nil
}

func (s *MarketService) UpdateListing(ctx context.Context, sellerID, id uint, in ListingInput) (*models.TradeItem, error) {
	item, err := s.items.GetByID(ctx, id, sellerID)
	if err != nil {
		return nil, err
	}
	if item.SellerID != sellerID {
		return nil, models.NewForbiddenError("You can only edit your own listings")
	}
	if item.Status != models.TradeItemActive {
		return nil, models.NewConflictError("Only active listings can be edited")
	}
	if err := s.validateListing(ctx, &in); err != nil {
		return nil, err
	}
	item.Title = in.Title
	item.Description = strings.TrimSpace(in.Description)
	item.PriceCents = in.PriceCents
	item.Currency = in.Currency
	item.Condition = in.Condition
	item.Quantity = in.Quantity
	item.GameID = in.GameID
	item.ImageURL = strings.TrimSpace(in.ImageURL)
	item.Game = nil
	if err := s.items.Update(ctx, item); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.items.GetByID(ctx, id, sellerID)
}

// RemoveListing withdraws a listing and drops it from every cart.
func (s *MarketService) RemoveListing(ctx context.Context, userID, id uint) error {
	item, err := s.items.GetByID(ctx, id, 0)
	if err != nil {
		return err
	}
	if item.SellerID != userID {
		admin, err := s.admin(ctx, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only remove your own listings")
		}
	}
	if item.Status == models.TradeItemRemoved {
		return nil
	}
	if err := s.items.SetStatus(ctx, id, models.TradeItemRemoved); err != nil {
		return err
	}
	if err := s.carts.RemoveListing(ctx, id); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *MarketService) admin(ctx context.Context, userID uint) (bool, error) {
	if s.isAdmin == nil || userID == 0 {
		return false, nil
	}
	return s.isAdmin(ctx, userID)
}

// GetCart builds the cart view with per-seller subtotals in first-added order.
func (s *MarketService) GetCart(ctx context.Context, userID uint) (*models.Cart, error) {
	lines, err := s.carts.List(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	cart := &models.Cart{Items: lines, Sellers: []models.CartSellerGroup{}, Currency: "USD"}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	groups := map[uint]int{}
	for _, line := range lines {
		sub := line.TradeItem.PriceCents * int64(line.Quantity)
		cart.ItemCount += line.Quantity
		cart.SubtotalCents += sub
		if line.TradeItem.Currency != "" {
			cart.Currency = line.TradeItem.Currency
		}
		idx, ok := groups[line.TradeItem.SellerID]
		if !ok {
			idx = len(cart.Sellers)
			groups[line.TradeItem.SellerID] = idx
			cart.Sellers = append(cart.Sellers, models.CartSellerGroup{
				SellerID:   line.TradeItem.SellerID,
				SellerName: line.TradeItem.Seller.Name(),
			})
		}
		cart.Sellers[idx].ItemCount += line.Quantity
		cart.Sellers[idx].SubtotalCents += sub
	}
	return cart, nil
}

// AddToCart increments an existing line, capping at the listing's stock.
func (s *MarketService) AddToCart(ctx context.Context, userID, itemID uint, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		quantity = 1
	}
	item, err := s.purchasable(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	existing, err := s.carts.Get(ctx, userID, itemID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if existing == nil {
		if err := s.checkCurrency(ctx, userID, item); err != nil {
			return nil, err
		}
	} else {
		quantity += existing.Quantity
	}
	if quantity > item.Quantity {
		quantity = item.Quantity
	}
	if err := s.carts.SetQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.GetCart(ctx, userID)
}

// UpdateCartItem sets the quantity of a line exactly; zero removes it.
func (s *MarketService) UpdateCartItem(ctx context.Context, userID, itemID uint, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, models.NewValidationError("quantity must not be negative")
	}
	if quantity == 0 {
		return s.RemoveFromCart(ctx, userID, itemID)
	}
	existing, err := s.carts.Get(ctx, userID, itemID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if existing == nil {
		return nil, models.NewNotFoundError("CartItem", itemID)
	}
	item, err := s.purchasable(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if quantity > item.Quantity {
		return nil, models.NewValidationError(fmt.Sprintf("Only %d left in stock", item.Quantity))
	}
	if err := s.carts.SetQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.GetCart(ctx, userID)
}

func (s *MarketService) RemoveFromCart(ctx context.Context, userID, itemID uint) (*models.Cart, error) {
	removed, err := s.carts.Remove(ctx, userID, itemID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !removed {
		return nil, models.NewNotFoundError("CartItem", itemID)
	}
	return s.GetCart(ctx, userID)
}

func (s *MarketService) ClearCart(ctx context.Context, userID uint) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *MarketService) purchasable(ctx context.Context, buyerID, itemID uint) (*models.TradeItem, error) {
	item, err := s.items.GetByID(ctx, itemID, 0)
	if err != nil {
		return nil, err
	}
	if item.SellerID == buyerID {
		return nil, models.NewValidationError("You cannot buy your own listing")
	}
	if item.Status != models.TradeItemActive || item.Quantity <= 0 {
		return nil, models.NewConflictError("This listing is no longer available")
	}
	return item, nil
}

func (s *MarketService) checkCurrency(ctx context.Context, userID uint, item *models.TradeItem) error {
	lines, err := s.carts.List(ctx, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	for _, line := range lines {
		if line.TradeItem.Currency != "" && line.TradeItem.Currency != item.Currency {
			return models.NewConflictError("All items in a cart must use the same currency")
		}
	}
	return nil
}
