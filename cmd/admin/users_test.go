package main

import (
	"context"
	"testing"

	"meeplehall/internal/repository"
	"meeplehall/internal/service"
	"meeplehall/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T) *app {
	t.Helper()
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	return &app{
		db:    db,
		users: users,
		svc: service.NewUserService(users, repository.NewFollowRepository(db),
			repository.NewPostRepository(db), repository.NewGameRepository(db)),
	}
}

func TestResolveUser(t *testing.T) {
	a := testApp(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, a.db, "alice")

	byID, err := resolveUser(ctx, a, "1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byID.ID)

	byName, err := resolveUser(ctx, a, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	_, err = resolveUser(ctx, a, "nobody")
	assert.ErrorContains(t, err, `no user named "nobody"`)
}

func TestPromoteAndBanCommands(t *testing.T) {
	deps = testApp(t)
	t.Cleanup(func() { deps = nil })
	bob := testutil.CreateUser(t, deps.db, "bob")

	rootCmd.SetArgs([]string{"promote", "bob"})
	require.NoError(t, rootCmd.Execute())
	rootCmd.SetArgs([]string{"ban", "bob"})
	require.NoError(t, rootCmd.Execute())

	u, err := deps.users.GetByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.True(t, u.IsBanned)

	admins, err := deps.svc.ListAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "bob", admins[0].Username)
}

func TestRestoreRejectsUsernames(t *testing.T) {
	deps = testApp(t)
	t.Cleanup(func() { deps = nil })

	rootCmd.SetArgs([]string{"restore", "bob"})
	assert.ErrorContains(t, rootCmd.Execute(), "invalid user id")
}
