package models

import (
	"time"
)

// Comment is a reply to a post. ParentID threads a reply under a top-level comment.
// Deleted comments stay in place with blank content so the thread keeps its shape.
type Comment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PostID    uint       `gorm:"not null;index" json:"post_id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	User      User       `gorm:"foreignKey:UserID" json:"user"`
	ParentID  *uint      `gorm:"index" json:"parent_id,omitempty"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	IsDeleted bool       `gorm:"not null;default:false" json:"is_deleted"`
	Replies   []*Comment `gorm:"-" json:"replies,omitempty"`

	LikesCount int  `gorm:"->;-:migration" json:"likes_count"`
	Liked      bool `gorm:"->;-:migration" json:"liked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
