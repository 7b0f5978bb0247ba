package models

import "time"

// LikeItemType names the kinds of content that can be liked.
type LikeItemType string

const (
	LikeItemPost      LikeItemType = "post"
	LikeItemComment   LikeItemType = "comment"
	LikeItemTradeItem LikeItemType = "trade_item"
)

// Valid reports whether t is a likeable item type.
func (t LikeItemType) Valid() bool {
	switch t {
	case LikeItemPost, LikeItemComment, LikeItemTradeItem:
		return true
	}
	return false
}

// Like records one user's like of one item. A user likes an item at most once.
type Like struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_likes_user_item" json:"user_id"`
	ItemType  LikeItemType `gorm:"not null;size:20;uniqueIndex:idx_likes_user_item;index:idx_likes_item" json:"item_type"`
	ItemID    uint         `gorm:"not null;uniqueIndex:idx_likes_user_item;index:idx_likes_item" json:"item_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// LikeState is the authoritative like status returned after every like mutation.
type LikeState struct {
	ItemType   LikeItemType `json:"item_type"`
	ItemID     uint         `json:"item_id"`
	Liked      bool         `json:"liked"`
	LikesCount int64        `json:"likes_count"`
}
