package service

import (
	"context"
	"sync"
	"testing"

	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/repository"
	"meeplehall/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingRealtime captures pushed events for assertions.
type recordingRealtime struct {
	mu     sync.Mutex
	toUser map[uint][]string
	toAll  []string
	chat   []notifications.ChatEvent
}

func newRecordingRealtime() *recordingRealtime {
	return &recordingRealtime{toUser: map[uint][]string{}}
}

func (r *recordingRealtime) ToUser(_ context.Context, userID uint, eventType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toUser[userID] = append(r.toUser[userID], eventType)
}

func (r *recordingRealtime) ToAll(_ context.Context, eventType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toAll = append(r.toAll, eventType)
}

func (r *recordingRealtime) ToConversation(_ context.Context, _ uint, event notifications.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, event)
}

func (r *recordingRealtime) userEvents(userID uint) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.toUser[userID]...)
}

// fixture wires every service against one sqlite database.
type fixture struct {
	db       *gorm.DB
	rt       *recordingRealtime
	notify   *NotificationService
	users    *UserService
	follows  *FollowService
	posts    *PostService
	comments *CommentService
	likes    *LikeService
	games    *GameService
	market   *MarketService
	orders   *OrderService
	chat     *ChatService
	mod      *ModerationService
	notifRep repository.NotificationRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	rt := newRecordingRealtime()

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	gameRepo := repository.NewGameRepository(db)
	itemRepo := repository.NewTradeItemRepository(db)
	cartRepo := repository.NewCartRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	f := &fixture{db: db, rt: rt, notifRep: notifRepo}
	f.notify = NewNotificationService(notifRepo, rt)
	f.users = NewUserService(userRepo, followRepo, postRepo, gameRepo)
	f.follows = NewFollowService(followRepo, userRepo, f.notify, rt)
	f.posts = NewPostService(postRepo, likeRepo, gameRepo, f.users.IsAdmin, rt)
	f.comments = NewCommentService(commentRepo, postRepo, f.notify, f.users.IsAdmin, rt)
	f.likes = NewLikeService(likeRepo, postRepo, commentRepo, itemRepo, userRepo, f.notify, rt)
	f.games = NewGameService(gameRepo, nil)
	f.market = NewMarketService(itemRepo, cartRepo, gameRepo, f.users.IsAdmin)
	f.orders = NewOrderService(db, f.users.IsAdmin, f.notify, rt)
	f.chat = NewChatService(repository.NewChatRepository(db), userRepo, followRepo, f.notify, rt, nil)
	f.mod = NewModerationService(ModerationDeps{
		Reports:  repository.NewModerationRepository(db),
		Stats:    repository.NewStatsRepository(db),
		Users:    userRepo,
		Posts:    postRepo,
		Comments: commentRepo,
		Items:    itemRepo,
		Carts:    cartRepo,
	}, f.notify)
	return f
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	return testutil.CreateUser(t, f.db, name)
}

func (f *fixture) admin(t *testing.T, name string) *models.User {
	t.Helper()
	u := testutil.CreateUser(t, f.db, name)
	require.NoError(t, f.db.Model(u).Update("is_admin", true).Error)
	u.IsAdmin = true
	return u
}

func (f *fixture) post(t *testing.T, author *models.User, title string) *models.Post {
	t.Helper()
	p, err := f.posts.CreatePost(context.Background(), CreatePostInput{UserID: author.ID, Title: title, Content: "body of " + title})
	require.NoError(t, err)
	return p
}

func (f *fixture) listing(t *testing.T, seller *models.User, title string, price int64, qty int) *models.TradeItem {
	t.Helper()
	item, err := f.market.CreateListing(context.Background(), seller.ID, ListingInput{
		Title:      title,
		PriceCents: price,
		Condition:  models.ConditionGood,
		Quantity:   qty,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	page, err := f.notify.List(context.Background(), ListNotificationsInput{UserID: userID, Limit: 100})
	require.NoError(t, err)
	return page.Items
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code, appErr.Message)
}
