package models

import (
	"time"
)

// Listing conditions.
const (
	ConditionNew     = "new"
	ConditionLikeNew = "like_new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionPoor    = "poor"
)

// Listing statuses.
const (
	TradeItemActive  = "active"
	TradeItemSold    = "sold"
	TradeItemRemoved = "removed"
)

// ValidCondition reports whether c is a known listing condition.
func ValidCondition(c string) bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// TradeItem is a marketplace listing. Prices are integer minor units (cents).
type TradeItem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SellerID    uint   `gorm:"not null;index" json:"seller_id"`
	Seller      User   `gorm:"foreignKey:SellerID" json:"seller"`
	GameID      *uint  `gorm:"index" json:"game_id,omitempty"`
	Game        *Game  `gorm:"foreignKey:GameID" json:"game,omitempty"`
	Title       string `gorm:"not null;size:200" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	PriceCents  int64  `gorm:"not null" json:"price_cents"`
	Currency    string `gorm:"not null;size:3;default:USD" json:"currency"`
	Condition   string `gorm:"not null;size:20" json:"condition"`
	Quantity    int    `gorm:"not null;default:1" json:"quantity"`
	Status      string `gorm:"not null;size:20;default:active;index" json:"status"`
	ImageURL    string `json:"image_url"`

	LikesCount int  `gorm:"->;-:migration" json:"likes_count"`
	Liked      bool `gorm:"->;-:migration" json:"liked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartItem is a line in a user's cart.
type CartItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_cart_items_pair" json:"user_id"`
	TradeItemID uint      `gorm:"not null;uniqueIndex:idx_cart_items_pair" json:"trade_item_id"`
	TradeItem   TradeItem `gorm:"foreignKey:TradeItemID" json:"trade_item"`
	Quantity    int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Cart is the computed view of a user's cart.
type Cart struct {
	Items         []CartItem        `json:"items"`
	Sellers       []CartSellerGroup `json:"sellers"`
	ItemCount     int               `json:"item_count"`
	SubtotalCents int64             `json:"subtotal_cents"`
	Currency      string            `json:"currency"`
}

// CartSellerGroup totals the lines that will become one order at checkout.
type CartSellerGroup struct {
	SellerID      uint   `json:"seller_id"`
	SellerName    string `json:"seller_name"`
	ItemCount     int    `json:"item_count"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

// Order statuses.
const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderShipped   = "shipped"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Order is a purchase from a single seller, created at checkout.
type Order struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	Number          string      `gorm:"not null;size:40;uniqueIndex" json:"number"`
	BuyerID         uint        `gorm:"not null;index" json:"buyer_id"`
	Buyer           User        `gorm:"foreignKey:BuyerID" json:"buyer"`
	SellerID        uint        `gorm:"not null;index" json:"seller_id"`
	Seller          User        `gorm:"foreignKey:SellerID" json:"seller"`
	Status          string      `gorm:"not null;size:20;default:pending;index" json:"status"`
	TotalCents      int64       `gorm:"not null" json:"total_cents"`
	Currency        string      `gorm:"not null;size:3" json:"currency"`
	ShippingAddress string      `gorm:"type:text" json:"shipping_address"`
	Note            string      `gorm:"size:1000" json:"note"`
	Items           []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem snapshots a listing's title and price at checkout.
type OrderItem struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrderID        uint   `gorm:"not null;index" json:"order_id"`
	TradeItemID    uint   `gorm:"not null;index" json:"trade_item_id"`
	Title          string `gorm:"not null;size:200" json:"title"`
	Quantity       int    `gorm:"not null" json:"quantity"`
	UnitPriceCents int64  `gorm:"not null" json:"unit_price_cents"`
}
