package service

import (
	"context"
	"testing"

	"meeplehall/internal/models"
	"meeplehall/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresence map[[2]uint]bool

func (p fakePresence) IsUserActive(userID, conversationID uint) bool {
	return p[[2]uint{userID, conversationID}]
}

func TestChat_DirectConversationIsReused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "amy")
	b := f.user(t, "bo")

	c1, err := f.chat.CreateConversation(ctx, CreateConversationInput{CreatorID: a.ID, ParticipantIDs: []uint{b.ID, b.ID, a.ID}})
	require.NoError(t, err)
	assert.False(t, c1.IsGroup)

	c2, err := f.chat.CreateConversation(ctx, CreateConversationInput{CreatorID: b.ID, ParticipantIDs: []uint{a.ID}})
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)

	_, err = f.chat.CreateConversation(ctx, CreateConversationInput{CreatorID: a.ID, ParticipantIDs: []uint{a.ID}})
	requireCode(t, err, models.CodeValidation)
}

func TestChat_AllowMessagesRequiresRecipientToFollowSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiet := f.user(t, "quiet")
	friend := f.user(t, "friend")
	stranger := f.user(t, "stranger")
	require.NoError(t, f.db.Model(quiet).Update("allow_messages", false).Error)
	_, err := f.follows.Follow(ctx, quiet.ID, friend.ID)
	require.NoError(t, err)

	_, err = f.chat.CreateConversation(ctx, CreateConversationInput{CreatorID: stranger.ID, ParticipantIDs: []uint{quiet.ID}})
	requireCode(t, err, models.CodeForbidden)

	conv, err := f.chat.CreateConversation(ctx, CreateConversationInput{CreatorID: friend.ID, ParticipantIDs: []uint{quiet.ID}})
	require.NoError(t, err)

	_, err = f.chat.SendMessage(ctx, conv.ID, friend.ID, "Game night Friday?")
	require.NoError(t, err)

	// Once the recipient unfollows, the existing direct conversation is closed to the sender.
	_, err = f.follows.Unfollow(ctx, quiet.ID, friend.ID)
	require.NoError(t, err)
	_, err = f.chat.SendMessage(ctx, conv.ID, friend.ID, "Hello?")
	requireCode(t, err, models.CodeForbidden)
}

func TestChat_SendMessageNotifiesAbsentParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "host")
	b := f.user(t, "guest1")
	c := f.user(t, "guest2")

	conv, err := f.chat.CreateConversation(ctx, CreateConversationInput{CreatorID: a.ID, ParticipantIDs: []uint{b.ID, c.ID}, Title: "Saturday group"})
	require.NoError(t, err)
	assert.True(t, conv.IsGroup)
	f.chat.presence = fakePresence{{b.ID, conv.ID}: true}

	msg, err := f.chat.SendMessage(ctx, conv.ID, a.ID, "Bring snacks")
	require.NoError(t, err)
	assert.Equal(t, "Bring snacks", msg.Content)

	assert.Empty(t, f.notificationsFor(t, b.ID))
	assert.Len(t, f.notificationsFor(t, c.ID), 1)
	assert.Contains(t, f.rt.userEvents(b.ID), notifications.EventMessageReceived)
	require.NotEmpty(t, f.rt.chat)

	unread, err := f.chat.UnreadTotal(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
	require.NoError(t, f.chat.MarkRead(ctx, conv.ID, c.ID))
	unread, err = f.chat.UnreadTotal(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	outsider := f.user(t, "outsider")
	_, err = f.chat.GetMessages(ctx, conv.ID, outsider.ID, 50, 0)
	requireCode(t, err, models.CodeNotFound)

	_, err = f.chat.SendMessage(ctx, conv.ID, a.ID, "   ")
	requireCode(t, err, models.CodeValidation)
}

func TestModeration_ReportAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "troll")
	reporter := f.user(t, "citizen")
	admin := f.admin(t, "sheriff")
	post := f.post(t, author, "Flame bait")

	_, err := f.mod.Report(ctx, ReportInput{ReporterID: author.ID, TargetType: models.ReportTargetPost, TargetID: post.ID, Reason: "spam"})
	requireCode(t, err, models.CodeValidation)

	report, err := f.mod.Report(ctx, ReportInput{ReporterID: reporter.ID, TargetType: models.ReportTargetPost, TargetID: post.ID, Reason: "spam"})
	require.NoError(t, err)
	require.NotNil(t, report.ReportedUserID)
	assert.Equal(t, author.ID, *report.ReportedUserID)

	_, err = f.mod.Report(ctx, ReportInput{ReporterID: reporter.ID, TargetType: models.ReportTargetPost, TargetID: post.ID, Reason: "again"})
	requireCode(t, err, models.CodeConflict)

	_, err = f.mod.Report(ctx, ReportInput{ReporterID: reporter.ID, TargetType: "game", TargetID: 1, Reason: "x"})
	requireCode(t, err, models.CodeValidation)

	open, err := f.mod.ListReports(ctx, models.ReportOpen, 10, 0)
	require.NoError(t, err)
	assert.Len(t, open.Items, 1)

	resolved, err := f.mod.ResolveReport(ctx, ResolveInput{AdminID: admin.ID, ReportID: report.ID, Action: models.ResolveHideContent, Note: "hidden"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportResolved, resolved.Status)

	_, err = f.posts.GetPost(ctx, post.ID, reporter.ID)
	requireCode(t, err, models.CodeNotFound)

	_, err = f.mod.ResolveReport(ctx, ResolveInput{AdminID: admin.ID, ReportID: report.ID, Action: models.ResolveDismiss})
	requireCode(t, err, models.CodeConflict)

	assert.Len(t, f.notificationsFor(t, reporter.ID), 1)
	assert.Len(t, f.notificationsFor(t, author.ID), 1)
}

func TestModeration_BanUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := f.user(t, "spammer")
	reporter := f.user(t, "watcher")
	admin := f.admin(t, "judge")

	report, err := f.mod.Report(ctx, ReportInput{ReporterID: reporter.ID, TargetType: models.ReportTargetUser, TargetID: bad.ID, Reason: "spam"})
	require.NoError(t, err)
	_, err = f.mod.ResolveReport(ctx, ResolveInput{AdminID: admin.ID, ReportID: report.ID, Action: models.ResolveBanUser})
	require.NoError(t, err)

	u, err := f.users.GetByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.True(t, u.IsBanned)

	stats, err := f.mod.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.BannedUsers)
}

func TestGame_SlugsAndRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rater := f.user(t, "rater")

	_, err := f.games.CreateGame(ctx, GameInput{Name: "Bad", MinPlayers: 4, MaxPlayers: 2})
	requireCode(t, err, models.CodeValidation)

	g1, err := f.games.CreateGame(ctx, GameInput{Name: "Ticket to Ride", MinPlayers: 2, MaxPlayers: 5, Categories: "Family, Trains"})
	require.NoError(t, err)
	assert.Equal(t, "ticket-to-ride", g1.Slug)
	assert.Equal(t, "family,trains", g1.Categories)

	g2, err := f.games.CreateGame(ctx, GameInput{Name: "Ticket to Ride", MinPlayers: 2, MaxPlayers: 5})
	require.NoError(t, err)
	assert.Equal(t, "ticket-to-ride-2", g2.Slug)

	_, err = f.games.CreateGame(ctx, GameInput{Name: "Search", Slug: "search", MinPlayers: 1, MaxPlayers: 1})
	requireCode(t, err, models.CodeValidation)

	bySlug, err := f.games.GetGame(ctx, "Ticket-To-Ride", 0)
	require.NoError(t, err)
	assert.Equal(t, g1.ID, bySlug.ID)

	_, err = f.games.RateGame(ctx, rater.ID, g1.ID, 11)
	requireCode(t, err, models.CodeValidation)
	rated, err := f.games.RateGame(ctx, rater.ID, g1.ID, 8)
	require.NoError(t, err)
	require.NotNil(t, rated.MyRating)
	assert.Equal(t, 8, *rated.MyRating)
	assert.Equal(t, int64(1), rated.RatingCount)

	require.NoError(t, f.games.DeleteRating(ctx, rater.ID, g1.ID))
	requireCode(t, f.games.DeleteRating(ctx, rater.ID, g1.ID), models.CodeNotFound)

	page, err := f.games.ListGames(ctx, ListGamesInput{Query: "ticket", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
}
