package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation is a direct or group chat.
type Conversation struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"size:100" json:"title,omitempty"`
	IsGroup      bool           `gorm:"not null;default:false" json:"is_group"`
	CreatedBy    uint           `gorm:"not null" json:"created_by"`
	Participants []User         `gorm:"many2many:conversation_participants;" json:"participants,omitempty"`
	LastMessage  *Message       `gorm:"-" json:"last_message,omitempty"`
	UnreadCount  int64          `gorm:"-" json:"unread_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// ConversationParticipant is the join row between users and conversations.
type ConversationParticipant struct {
	ConversationID uint       `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint       `gorm:"primaryKey" json:"user_id"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
}

// Message is one chat line.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint      `gorm:"not null" json:"sender_id"`
	Sender         *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
