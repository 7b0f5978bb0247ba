// Package dto maps persisted models to the views returned by the API.
package dto

import (
	"fmt"
	"time"

	"meeplehall/internal/models"

	"github.com/jinzhu/copier"
)

// ProfileStats are the social counters shown on a profile.
type ProfileStats struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
	Posts     int64 `json:"posts"`
}

// Viewer describes who is looking at a profile.
type Viewer struct {
	UserID  uint
	IsAdmin bool
	// Follows is true when the viewer follows the profile owner.
	Follows bool
}

// UserProfileView is the public profile of a user as seen by a particular viewer.
type UserProfileView struct {
	ID               uint          `json:"id"`
	Username         string        `json:"username"`
	DisplayName      string        `json:"display_name"`
	Avatar           string        `json:"avatar"`
	Email            string        `json:"email,omitempty"`
	Bio              string        `json:"bio,omitempty"`
	Location         string        `json:"location,omitempty"`
	FavoriteGameID   *uint         `json:"favorite_game_id,omitempty"`
	IsProfilePrivate bool          `json:"is_profile_private"`
	AllowMessages    bool          `json:"allow_messages"`
	IsAdmin          bool          `json:"is_admin"`
	CreatedAt        time.Time     `json:"created_at"`
	Stats            *ProfileStats `json:"stats,omitempty"`
	IsFollowing      bool          `json:"is_following"`
	IsSelf           bool          `json:"is_self"`
	// Restricted is set when privacy settings hid part of the profile.
	Restricted bool `json:"restricted"`
}

// NewUserProfileView builds the profile of u as v is allowed to see it.
// Email is shown to the owner, admins, or anyone when ShowEmail is set.
// A private profile hides bio, location, favourite game, and stats from
// viewers who are not the owner, an admin, or a follower.
func NewUserProfileView(u *models.User, stats ProfileStats, v Viewer) (UserProfileView, error) {
	var view UserProfileView
	if err := copier.Copy(&view, u); err != nil {
		return view, fmt.Errorf("copy user profile: %w", err)
	}

	view.IsSelf = v.UserID != 0 && v.UserID == u.ID
	view.IsFollowing = v.Follows && !view.IsSelf
	privileged := view.IsSelf || v.IsAdmin

	if !u.ShowEmail && !privileged {
		view.Email = ""
	}

	if u.IsProfilePrivate && !privileged && !v.Follows {
		view.Bio = ""
		view.Location = ""
		view.FavoriteGameID = nil
		view.Restricted = true
		return view, nil
	}

	s := stats
	view.Stats = &s
	return view, nil
}

// AccountView is the signed-in user's own account, including private settings.
type AccountView struct {
	ID               uint      `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name"`
	Bio              string    `json:"bio"`
	Avatar           string    `json:"avatar"`
	Location         string    `json:"location"`
	FavoriteGameID   *uint     `json:"favorite_game_id,omitempty"`
	IsProfilePrivate bool      `json:"is_profile_private"`
	ShowEmail        bool      `json:"show_email"`
	AllowMessages    bool      `json:"allow_messages"`
	IsAdmin          bool      `json:"is_admin"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewAccountView copies u into an AccountView.
func NewAccountView(u *models.User) (AccountView, error) {
	var view AccountView
	if err := copier.Copy(&view, u); err != nil {
		return view, fmt.Errorf("copy account: %w", err)
	}
	return view, nil
}

// AdminUserView is a user row in the admin back office.
type AdminUserView struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	IsAdmin     bool       `json:"is_admin"`
	IsBanned    bool       `json:"is_banned"`
	IsDeleted   bool       `json:"is_deleted"`
	DeletedOn   *time.Time `json:"deleted_on,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewAdminUserView copies one user for an admin action response.
func NewAdminUserView(u *models.User) (AdminUserView, error) {
	var view AdminUserView
	if err := copier.Copy(&view, u); err != nil {
		return view, fmt.Errorf("copy admin user: %w", err)
	}
	return view, nil
}

// NewAdminUserViews copies a page of users for the admin listing.
func NewAdminUserViews(users []models.User) ([]AdminUserView, error) {
	views := make([]AdminUserView, 0, len(users))
	if err := copier.Copy(&views, &users); err != nil {
		return nil, fmt.Errorf("copy admin users: %w", err)
	}
	return views, nil
}

// UserSummary is the minimal public identity used in lists.
type UserSummary struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// NewUserSummaries copies users into summaries.
func NewUserSummaries(users []models.User) ([]UserSummary, error) {
	out := make([]UserSummary, 0, len(users))
	if err := copier.Copy(&out, &users); err != nil {
		return nil, fmt.Errorf("copy user summaries: %w", err)
	}
	return out, nil
}
