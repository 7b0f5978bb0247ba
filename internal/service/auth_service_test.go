package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"meeplehall/internal/email"
	"meeplehall/internal/middleware"
	"meeplehall/internal/models"
	"meeplehall/internal/repository"
	"meeplehall/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Tabletop#Night42"

func newAuth(t *testing.T) (*AuthService, *miniredis.Miniredis, *email.LogSender, repository.UserRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := repository.NewUserRepository(testutil.NewDB(t))
	mailer := email.NewLogSender(middleware.Logger)
	svc := NewAuthService(users, rdb, mailer, AuthConfig{
		JWTSecret:     "test-secret-that-is-long-enough",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		PublicBaseURL: "https://meeplehall.test",
	})
	return svc, mr, mailer, users
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	svc, _, mailer, _ := newAuth(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "Bearer", res.TokenType)
	require.Len(t, mailer.Sent(), 1)

	claims, err := svc.ParseAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)

	// Refresh tokens are not access tokens.
	_, err = svc.ParseAccessToken(res.RefreshToken)
	requireCode(t, err, models.CodeUnauthorized)

	byName, err := svc.Login(ctx, "alice", testPassword)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, byName.User.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	requireCode(t, err, models.CodeUnauthorized)
}

func TestAuth_RegisterConflictsAndValidation(t *testing.T) {
	svc, _, _, _ := newAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: testPassword})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "bobby", Email: "bob@example.com", Password: testPassword})
	requireCode(t, err, models.CodeConflict)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "other@example.com", Password: testPassword})
	requireCode(t, err, models.CodeConflict)

	_, err = svc.Register(ctx, RegisterInput{Username: "carol", Email: "carol@example.com", Password: "short"})
	requireCode(t, err, models.CodeValidation)
}

func TestAuth_SoftDeletedAccountCannotLoginButCanBeReRegistered(t *testing.T) {
	svc, _, _, users := newAuth(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Username: "dora", Email: "dora@example.com", Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, users.SoftDelete(ctx, first.User.ID))

	_, err = svc.Login(ctx, "dora@example.com", testPassword)
	requireCode(t, err, models.CodeUnauthorized)

	second, err := svc.Register(ctx, RegisterInput{Username: "dora", Email: "dora@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.NotEqual(t, first.User.ID, second.User.ID)

	again, err := svc.Login(ctx, "dora", testPassword)
	require.NoError(t, err)
	assert.Equal(t, second.User.ID, again.User.ID)
}

func TestAuth_BannedUserIsForbidden(t *testing.T) {
	svc, _, _, users := newAuth(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "eve", Email: "eve@example.com", Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, users.UpdateFields(ctx, res.User.ID, map[string]interface{}{"is_banned": true}))

	_, err = svc.Login(ctx, "eve", testPassword)
	requireCode(t, err, models.CodeForbidden)
}

func TestAuth_RefreshIsSingleUse(t *testing.T) {
	svc, _, _, _ := newAuth(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "finn", Email: "finn@example.com", Password: testPassword})
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)

	_, err = svc.Refresh(ctx, res.RefreshToken)
	requireCode(t, err, models.CodeUnauthorized)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestAuth_LogoutBlacklistsToken(t *testing.T) {
	svc, mr, _, _ := newAuth(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "gina", Email: "gina@example.com", Password: testPassword})
	require.NoError(t, err)
	claims, err := svc.ParseAccessToken(res.AccessToken)
	require.NoError(t, err)

	revoked, err := svc.IsRevoked(ctx, claims.JTI)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.Logout(ctx, res.AccessToken))
	revoked, err = svc.IsRevoked(ctx, claims.JTI)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("blacklist:"+claims.JTI))
	assert.Greater(t, mr.TTL("blacklist:"+claims.JTI), time.Duration(0))
}

func TestAuth_WSTicketIsSingleUse(t *testing.T) {
	svc, _, _, _ := newAuth(t)
	ctx := context.Background()

	ticket, err := svc.IssueWSTicket(ctx, 7)
	require.NoError(t, err)

	id, err := svc.RedeemWSTicket(ctx, ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = svc.RedeemWSTicket(ctx, ticket)
	requireCode(t, err, models.CodeUnauthorized)
}

func TestAuth_WSTicketWithoutRedis(t *testing.T) {
	users := repository.NewUserRepository(testutil.NewDB(t))
	svc := NewAuthService(users, nil, nil, AuthConfig{JWTSecret: "secret"})

	ticket, err := svc.IssueWSTicket(context.Background(), 9)
	require.NoError(t, err)
	id, err := svc.RedeemWSTicket(context.Background(), ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(9), id)
}

func TestAuth_PasswordReset(t *testing.T) {
	svc, mr, mailer, _ := newAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "hank", Email: "hank@example.com", Password: testPassword})
	require.NoError(t, err)

	// Unknown addresses are accepted silently.
	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	require.NoError(t, svc.RequestPasswordReset(ctx, "hank@example.com"))

	var token string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "reset:") {
			token = strings.TrimPrefix(k, "reset:")
		}
	}
	require.NotEmpty(t, token)
	sent := mailer.Sent()
	assert.Contains(t, sent[len(sent)-1].Text, token)

	const newPassword = "Brand-New#Pass99"
	require.NoError(t, svc.ResetPassword(ctx, token, newPassword))
	requireCode(t, svc.ResetPassword(ctx, token, newPassword), models.CodeValidation)

	_, err = svc.Login(ctx, "hank", testPassword)
	requireCode(t, err, models.CodeUnauthorized)
	_, err = svc.Login(ctx, "hank", newPassword)
	require.NoError(t, err)
}

func TestAuth_DeleteAccountRequiresPassword(t *testing.T) {
	svc, _, _, _ := newAuth(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "ivy", Email: "ivy@example.com", Password: testPassword})
	require.NoError(t, err)

	requireCode(t, svc.DeleteAccount(ctx, res.User.ID, "nope", res.AccessToken), models.CodeUnauthorized)
	require.NoError(t, svc.DeleteAccount(ctx, res.User.ID, testPassword, res.AccessToken))

	claims, err := svc.ParseAccessToken(res.AccessToken)
	require.NoError(t, err)
	revoked, err := svc.IsRevoked(ctx, claims.JTI)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = svc.Login(ctx, "ivy", testPassword)
	requireCode(t, err, models.CodeUnauthorized)
}
