package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"meeplehall/internal/config"
	"meeplehall/internal/keylock"
	"meeplehall/internal/models"
	"meeplehall/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "Tabletop#Night42"

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Errors     []string        `json:"errors"`
	StatusCode int             `json:"statusCode"`
}

type testServer struct {
	t   *testing.T
	s   *Server
	app *fiber.App
	db  *gorm.DB
	rdb *redis.Client
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWTSecret:             "server-test-secret-0123456789abcdef",
		Env:                   "test",
		PublicBaseURL:         "http://localhost:5173",
		StorageLocalDir:       t.TempDir(),
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLHours:  24,
		LikeLockWaitMillis:    50,
		LikeLockIdleMinutes:   5,
	}
	for _, m := range mutate {
		m(cfg)
	}

	db := testutil.NewDB(t)
	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testServer{t: t, s: s, app: s.NewApp(), db: db, rdb: rdb}
}

func (ts *testServer) do(method, path, token string, body any) (*http.Response, envelope) {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(ts.t, err)

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	_ = resp.Body.Close()
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return resp, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type registered struct {
	ID    uint
	Token string
}

func (ts *testServer) register(name string) registered {
	ts.t.Helper()
	resp, env := ts.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": testPassword,
	})
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode, env.Message)
	res := decode[struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID uint `json:"id"`
		} `json:"user"`
	}](ts.t, env)
	return registered{ID: res.User.ID, Token: res.AccessToken}
}

func (ts *testServer) makeAdmin(id uint) {
	ts.t.Helper()
	require.NoError(ts.t, ts.db.Model(&models.User{}).Where("id = ?", id).Update("is_admin", true).Error)
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	resp, env := ts.do(http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, http.StatusUnauthorized, env.StatusCode)
	assert.Equal(t, "Authorization required", env.Message)
	assert.Contains(t, env.Errors, models.CodeUnauthorized)

	resp, _ = ts.do(http.MethodGet, "/api/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublicRoutesAllowAnonymous(t *testing.T) {
	ts := newTestServer(t)

	resp, env := ts.do(http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[models.Page[models.Post]](t, env)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Page)

	resp, _ = ts.do(http.MethodGet, "/api/games", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterLoginLogout(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register("alice")

	resp, env := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"login": "alice", "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, env = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)

	resp, env = ts.do(http.MethodGet, "/api/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}](t, env)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@example.com", me.Email)

	resp, _ = ts.do(http.MethodPost, "/api/auth/logout", alice.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = ts.do(http.MethodGet, "/api/users/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has been revoked", env.Message)
}

func TestDeletedAccountCannotLoginAndIdentityIsReusable(t *testing.T) {
	ts := newTestServer(t)
	dora := ts.register("dora")

	resp, env := ts.do(http.MethodDelete, "/api/auth/account", dora.Token, map[string]string{"password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, _ = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"login": "dora@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(http.MethodGet, "/api/users/me", dora.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	again := ts.register("dora")
	assert.NotEqual(t, dora.ID, again.ID)

	resp, _ = ts.do(http.MethodGet, fmt.Sprintf("/api/users/%d", dora.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBannedAccountIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.register("admin")
	ts.makeAdmin(admin.ID)
	eve := ts.register("eve")

	resp, env := ts.do(http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", eve.ID), admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, env = ts.do(http.MethodGet, "/api/users/me", eve.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Account is banned", env.Message)

	resp, _ = ts.do(http.MethodGet, "/api/admin/dashboard", eve.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	ts := newTestServer(t)
	bob := ts.register("bob")

	resp, env := ts.do(http.MethodGet, "/api/admin/dashboard", bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Admin access required", env.Message)
}

func createPost(t *testing.T, ts *testServer, token, title string) models.Post {
	t.Helper()
	resp, env := ts.do(http.MethodPost, "/api/posts", token, map[string]string{
		"title":   title,
		"content": "Opening night at the club",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	return decode[models.Post](t, env)
}

func TestLikeToggleAndIdempotence(t *testing.T) {
	ts := newTestServer(t)
	author := ts.register("author")
	fan := ts.register("fan")
	post := createPost(t, ts, author.Token, "Brass: Birmingham night")

	body := map[string]any{"item_type": "post", "item_id": post.ID}

	resp, env := ts.do(http.MethodPost, "/api/likes", fan.Token, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	st := decode[models.LikeState](t, env)
	assert.True(t, st.Liked)
	assert.Equal(t, int64(1), st.LikesCount)

	// Liking again changes nothing.
	_, env = ts.do(http.MethodPost, "/api/likes", fan.Token, body)
	st = decode[models.LikeState](t, env)
	assert.True(t, st.Liked)
	assert.Equal(t, int64(1), st.LikesCount)

	_, env = ts.do(http.MethodPost, "/api/likes/toggle", fan.Token, body)
	st = decode[models.LikeState](t, env)
	assert.False(t, st.Liked)
	assert.Equal(t, int64(0), st.LikesCount)

	resp, env = ts.do(http.MethodGet, fmt.Sprintf("/api/likes/post/%d", post.ID), fan.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.LikeState](t, env).Liked)

	resp, env = ts.do(http.MethodPost, "/api/likes", fan.Token, map[string]any{"item_type": "game", "item_id": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, env.Errors, models.CodeValidation)

	resp, _ = ts.do(http.MethodPost, "/api/likes", fan.Token, map[string]any{"item_type": "post", "item_id": 9999})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLikeReturnsBusyWhileKeyIsHeld(t *testing.T) {
	ts := newTestServer(t)
	author := ts.register("author")
	fan := ts.register("fan")
	post := createPost(t, ts, author.Token, "Azul tournament")

	release, err := ts.s.likeLocks.Acquire(context.Background(), keylock.LikeKey(fan.ID, "post", post.ID))
	require.NoError(t, err)

	resp, env := ts.do(http.MethodPost, "/api/likes/toggle", fan.Token, map[string]any{"item_type": "post", "item_id": post.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, env.Errors, models.CodeBusy)

	// Another user's key is independent.
	resp, _ = ts.do(http.MethodPost, "/api/likes/toggle", author.Token, map[string]any{"item_type": "post", "item_id": post.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	release()
	resp, env = ts.do(http.MethodPost, "/api/likes/toggle", fan.Token, map[string]any{"item_type": "post", "item_id": post.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[models.LikeState](t, env)
	assert.True(t, st.Liked)
	assert.Equal(t, int64(2), st.LikesCount)
}

func TestPrivateProfileHidesDetailsFromStrangers(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner")
	friend := ts.register("friend")

	resp, env := ts.do(http.MethodPut, "/api/users/me", owner.Token, map[string]any{
		"bio":                "Worker placement fan",
		"is_profile_private": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	type profile struct {
		Bio        string `json:"bio"`
		Restricted bool   `json:"restricted"`
		Stats      *struct {
			Followers int64 `json:"followers"`
		} `json:"stats"`
	}
	path := fmt.Sprintf("/api/users/%d", owner.ID)

	_, env = ts.do(http.MethodGet, path, "", nil)
	p := decode[profile](t, env)
	assert.True(t, p.Restricted)
	assert.Empty(t, p.Bio)
	assert.Nil(t, p.Stats)

	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/api/follows/%d", owner.ID), friend.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, env = ts.do(http.MethodGet, path, friend.Token, nil)
	p = decode[profile](t, env)
	assert.False(t, p.Restricted)
	assert.Equal(t, "Worker placement fan", p.Bio)
	require.NotNil(t, p.Stats)
	assert.Equal(t, int64(1), p.Stats.Followers)
}

func TestEmbeddedAuthorsOmitPrivateProfile(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.register("owner")

	resp, env := ts.do(http.MethodPut, "/api/users/me", owner.Token, map[string]any{
		"bio":                "Hoards Kickstarter pledges",
		"location":           "Essen",
		"is_profile_private": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	post := createPost(t, ts, owner.Token, "Shelf of shame")
	commentsPath := fmt.Sprintf("/api/posts/%d/comments", post.ID)
	resp, env = ts.do(http.MethodPost, commentsPath, owner.Token, map[string]any{"content": "Still shrink wrapped"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	for _, path := range []string{"/api/posts", fmt.Sprintf("/api/posts/%d", post.ID), commentsPath} {
		resp, env = ts.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		body := string(env.Data)
		assert.Contains(t, body, `"username":"owner"`, path)
		assert.NotContains(t, body, "Hoards Kickstarter pledges", path)
		assert.NotContains(t, body, "Essen", path)
		assert.NotContains(t, body, "is_profile_private", path)
		assert.NotContains(t, body, "is_banned", path)
	}

	resp, env = ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{"login": "owner", "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	account := decode[struct {
		User struct {
			Bio              string `json:"bio"`
			Location         string `json:"location"`
			IsProfilePrivate bool   `json:"is_profile_private"`
		} `json:"user"`
	}](t, env)
	assert.Equal(t, "Hoards Kickstarter pledges", account.User.Bio)
	assert.Equal(t, "Essen", account.User.Location)
	assert.True(t, account.User.IsProfilePrivate)
}

func TestCheckoutAndCancelRestoresStock(t *testing.T) {
	ts := newTestServer(t)
	seller := ts.register("seller")
	buyer := ts.register("buyer")

	resp, env := ts.do(http.MethodPost, "/api/market/listings", seller.Token, map[string]any{
		"title":       "Terraforming Mars, sleeved",
		"price_cents": 4500,
		"condition":   models.ConditionLikeNew,
		"quantity":    2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	item := decode[models.TradeItem](t, env)

	resp, env = ts.do(http.MethodPost, "/api/cart/items", buyer.Token, map[string]any{"trade_item_id": item.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, env = ts.do(http.MethodPost, "/api/orders/checkout", buyer.Token, map[string]any{"shipping_address": "1 Meeple Lane"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	orders := decode[[]models.Order](t, env)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderPending, orders[0].Status)
	assert.Equal(t, int64(9000), orders[0].TotalCents)

	_, env = ts.do(http.MethodGet, fmt.Sprintf("/api/market/listings/%d", item.ID), "", nil)
	assert.Equal(t, 0, decode[models.TradeItem](t, env).Quantity)

	resp, env = ts.do(http.MethodPatch, fmt.Sprintf("/api/orders/%d/status", orders[0].ID), buyer.Token, map[string]string{"status": models.OrderCancelled})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	assert.Equal(t, models.OrderCancelled, decode[models.Order](t, env).Status)

	_, env = ts.do(http.MethodGet, fmt.Sprintf("/api/market/listings/%d", item.ID), "", nil)
	restored := decode[models.TradeItem](t, env)
	assert.Equal(t, 2, restored.Quantity)
	assert.Equal(t, models.TradeItemActive, restored.Status)

	resp, _ = ts.do(http.MethodPost, "/api/orders/checkout", buyer.Token, map[string]any{"shipping_address": "1 Meeple Lane"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeatureFlagGatesMarketplace(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.FeatureFlags = "marketplace=off" })
	admin := ts.register("admin")
	ts.makeAdmin(admin.ID)

	resp, env := ts.do(http.MethodGet, "/api/market/listings", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, env.Errors, models.CodeNotFound)

	_, env = ts.do(http.MethodGet, "/api/feature-flags", admin.Token, nil)
	flags := decode[map[string]bool](t, env)
	assert.False(t, flags["marketplace"])
	assert.True(t, flags["chat"])

	resp, env = ts.do(http.MethodPut, "/api/admin/feature-flags/marketplace", admin.Token, map[string]string{"value": "on"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, _ = ts.do(http.MethodGet, "/api/market/listings", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketTicketIsSingleUse(t *testing.T) {
	ts := newTestServer(t)
	carol := ts.register("carol")

	resp, env := ts.do(http.MethodPost, "/api/ws/ticket", carol.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	ticket := decode[struct {
		Ticket string `json:"ticket"`
	}](t, env).Ticket
	require.NotEmpty(t, ticket)

	ticketApp := fiber.New()
	ticketApp.Get("/api/ws/check", ts.s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": currentUserID(c)})
	})

	resp, err := ticketApp.Test(httptest.NewRequest(http.MethodGet, "/api/ws/check?ticket="+ticket, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		UserID uint `json:"user_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, carol.ID, got.UserID)

	resp, err = ticketApp.Test(httptest.NewRequest(http.MethodGet, "/api/ws/check?ticket="+ticket, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Bearer tokens are not accepted on socket paths.
	req := httptest.NewRequest(http.MethodGet, "/api/ws/check", nil)
	req.Header.Set("Authorization", "Bearer "+carol.Token)
	resp, err = ticketApp.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestCommentThreadOnPost(t *testing.T) {
	ts := newTestServer(t)
	author := ts.register("author")
	reader := ts.register("reader")
	post := createPost(t, ts, author.Token, "Spirit Island solo")

	path := fmt.Sprintf("/api/posts/%d/comments", post.ID)
	resp, env := ts.do(http.MethodPost, path, reader.Token, map[string]any{"content": "Which spirit?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	top := decode[models.Comment](t, env)

	resp, env = ts.do(http.MethodPost, path, author.Token, map[string]any{"content": "River", "parent_id": top.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	resp, env = ts.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	comments := decode[[]models.Comment](t, env)
	require.Len(t, comments, 1)
	assert.Len(t, comments[0].Replies, 1)

	resp, _ = ts.do(http.MethodPut, fmt.Sprintf("/api/comments/%d", top.ID), author.Token, map[string]any{"content": "edited"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(http.MethodDelete, fmt.Sprintf("/api/comments/%d", top.ID), author.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
