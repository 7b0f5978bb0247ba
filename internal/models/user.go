// Package models contains the domain entities persisted by gorm and the API envelope types.
package models

import (
	"time"
)

// User is a community member's account. When a User is embedded as an author,
// seller or participant only its public identity is serialized; profile and
// account fields are exposed through the dto views, which apply privacy rules.
// Deleted accounts keep their row with IsDeleted set; the unique indexes only
// cover live accounts so a deleted user's email and username can be registered again.
type User struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Username       string `gorm:"not null;size:30;uniqueIndex:idx_users_username_active,where:is_deleted = false" json:"username"`
	Email          string `gorm:"not null;size:254;uniqueIndex:idx_users_email_active,where:is_deleted = false" json:"-"`
	Password       string `gorm:"not null" json:"-"`
	DisplayName    string `gorm:"size:60" json:"display_name"`
	Bio            string `gorm:"size:1000" json:"-"`
	Avatar         string `json:"avatar"`
	Location       string `gorm:"size:100" json:"-"`
	FavoriteGameID *uint  `json:"-"`

	IsProfilePrivate bool `gorm:"not null;default:false" json:"-"`
	ShowEmail        bool `gorm:"not null;default:false" json:"-"`
	AllowMessages    bool `gorm:"not null;default:true" json:"-"`

	IsAdmin   bool       `gorm:"not null;default:false" json:"is_admin"`
	IsBanned  bool       `gorm:"not null;default:false" json:"-"`
	IsDeleted bool       `gorm:"not null;default:false;index" json:"-"`
	DeletedOn *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// Active reports whether the account can sign in and be interacted with.
func (u *User) Active() bool {
	return u != nil && !u.IsDeleted && !u.IsBanned
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
