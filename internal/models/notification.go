package models

import "time"

// Notification types.
const (
	NotificationLike        = "like"
	NotificationComment     = "comment"
	NotificationReply       = "reply"
	NotificationFollow      = "follow"
	NotificationOrderPlaced = "order_placed"
	NotificationOrderStatus = "order_status"
	NotificationMessage     = "message"
	NotificationModeration  = "moderation"
)

// Notification is an inbox entry for RecipientID about something ActorID did.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"not null;index:idx_notifications_recipient" json:"recipient_id"`
	ActorID     *uint     `json:"actor_id,omitempty"`
	Actor       *User     `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Type        string    `gorm:"not null;size:30" json:"type"`
	TargetType  string    `gorm:"size:30" json:"target_type,omitempty"`
	TargetID    uint      `json:"target_id,omitempty"`
	Message     string    `gorm:"size:500" json:"message"`
	IsRead      bool      `gorm:"not null;default:false;index:idx_notifications_recipient" json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
