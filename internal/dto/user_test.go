package dto

import (
	"testing"
	"time"

	"meeplehall/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func privateUser() *models.User {
	fav := uint(3)
	return &models.User{
		ID:               10,
		Username:         "dicequeen",
		Email:            "queen@example.com",
		DisplayName:      "Dice Queen",
		Bio:              "Eurogames only",
		Location:         "Essen",
		FavoriteGameID:   &fav,
		IsProfilePrivate: true,
		AllowMessages:    true,
		CreatedAt:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProfileView_StrangerSeesRestrictedProfile(t *testing.T) {
	u := privateUser()
	got, err := NewUserProfileView(u, ProfileStats{Followers: 4, Following: 2, Posts: 9}, Viewer{UserID: 99})
	require.NoError(t, err)

	want := UserProfileView{
		ID:               10,
		Username:         "dicequeen",
		DisplayName:      "Dice Queen",
		IsProfilePrivate: true,
		AllowMessages:    true,
		CreatedAt:        u.CreatedAt,
		Restricted:       true,
	}
	assert.Empty(t, cmp.Diff(want, got))
}

func TestProfileView_FollowerSeesPrivateDetailsButNotEmail(t *testing.T) {
	u := privateUser()
	got, err := NewUserProfileView(u, ProfileStats{Followers: 4}, Viewer{UserID: 99, Follows: true})
	require.NoError(t, err)

	assert.Equal(t, "Eurogames only", got.Bio)
	assert.Equal(t, "Essen", got.Location)
	assert.Empty(t, got.Email)
	assert.True(t, got.IsFollowing)
	require.NotNil(t, got.Stats)
	assert.Equal(t, int64(4), got.Stats.Followers)
	assert.False(t, got.Restricted)
}

func TestProfileView_SelfAndAdminSeeEverything(t *testing.T) {
	u := privateUser()
	stats := ProfileStats{Followers: 1, Following: 1, Posts: 1}

	self, err := NewUserProfileView(u, stats, Viewer{UserID: 10})
	require.NoError(t, err)
	admin, err := NewUserProfileView(u, stats, Viewer{UserID: 1, IsAdmin: true})
	require.NoError(t, err)

	assert.True(t, self.IsSelf)
	assert.Empty(t, cmp.Diff(self, admin, cmp.FilterPath(func(p cmp.Path) bool {
		return p.String() == "IsSelf"
	}, cmp.Ignore())))
	assert.Equal(t, "queen@example.com", admin.Email)
}

func TestProfileView_ShowEmailIsPublic(t *testing.T) {
	u := privateUser()
	u.IsProfilePrivate = false
	u.ShowEmail = true

	got, err := NewUserProfileView(u, ProfileStats{}, Viewer{})
	require.NoError(t, err)
	assert.Equal(t, "queen@example.com", got.Email)
	assert.NotNil(t, got.Stats)
	assert.False(t, got.IsFollowing)
}

func TestAccountAndAdminViews(t *testing.T) {
	u := privateUser()
	u.ShowEmail = true

	acct, err := NewAccountView(u)
	require.NoError(t, err)
	assert.Equal(t, "queen@example.com", acct.Email)
	assert.True(t, acct.ShowEmail)

	rows, err := NewAdminUserViews([]models.User{*u, {ID: 11, Username: "gone", Email: "deleted_11@deleted.local", IsDeleted: true}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "queen@example.com", rows[0].Email)
	assert.True(t, rows[1].IsDeleted)

	sums, err := NewUserSummaries([]models.User{*u})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff([]UserSummary{{ID: 10, Username: "dicequeen", DisplayName: "Dice Queen"}}, sums))
}
