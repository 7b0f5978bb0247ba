package service

import (
	"context"
	"testing"

	"meeplehall/internal/models"
	"meeplehall/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLike_ToggleAndIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "author")
	fan := f.user(t, "fan")
	post := f.post(t, author, "Catan night")

	st, err := f.likes.Like(ctx, fan.ID, models.LikeItemPost, post.ID)
	require.NoError(t, err)
	assert.True(t, st.Liked)
	assert.Equal(t, int64(1), st.LikesCount)

	// A second like changes nothing and sends no second notification.
	st, err = f.likes.Like(ctx, fan.ID, models.LikeItemPost, post.ID)
	require.NoError(t, err)
	assert.True(t, st.Liked)
	assert.Equal(t, int64(1), st.LikesCount)
	assert.Len(t, f.notificationsFor(t, author.ID), 1)

	st, err = f.likes.Toggle(ctx, fan.ID, models.LikeItemPost, post.ID)
	require.NoError(t, err)
	assert.False(t, st.Liked)
	assert.Equal(t, int64(0), st.LikesCount)

	st, err = f.likes.Unlike(ctx, fan.ID, models.LikeItemPost, post.ID)
	require.NoError(t, err)
	assert.False(t, st.Liked)

	st, err = f.likes.Toggle(ctx, fan.ID, models.LikeItemPost, post.ID)
	require.NoError(t, err)
	assert.True(t, st.Liked)

	assert.Contains(t, f.rt.userEvents(fan.ID), notifications.EventLikeUpdated)
}

func TestLike_OwnContentDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "selfie")
	post := f.post(t, author, "My collection")

	_, err := f.likes.Like(ctx, author.ID, models.LikeItemPost, post.ID)
	require.NoError(t, err)
	assert.Empty(t, f.notificationsFor(t, author.ID))
}

func TestLike_MissingOrInvalidTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "liker")

	_, err := f.likes.Like(ctx, u.ID, models.LikeItemPost, 999)
	requireCode(t, err, models.CodeNotFound)

	_, err = f.likes.Like(ctx, u.ID, models.LikeItemType("game"), 1)
	requireCode(t, err, models.CodeValidation)
}

func TestLike_TradeItemAndComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.user(t, "seller")
	buyer := f.user(t, "buyer")
	item := f.listing(t, seller, "Wingspan", 4500, 1)

	st, err := f.likes.Like(ctx, buyer.ID, models.LikeItemTradeItem, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.LikesCount)
	// Listing likes are bookmarks and do not notify the seller.
	assert.Empty(t, f.notificationsFor(t, seller.ID))

	post := f.post(t, seller, "Selling my copy")
	c, err := f.comments.CreateComment(ctx, CreateCommentInput{UserID: seller.ID, PostID: post.ID, Content: "DM me"})
	require.NoError(t, err)
	st, err = f.likes.Like(ctx, buyer.ID, models.LikeItemComment, c.ID)
	require.NoError(t, err)
	assert.True(t, st.Liked)
	assert.Len(t, f.notificationsFor(t, seller.ID), 1)
}

func TestFollow_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "ann")
	b := f.user(t, "ben")

	_, err := f.follows.Follow(ctx, a.ID, a.ID)
	requireCode(t, err, models.CodeValidation)

	st, err := f.follows.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, st.Following)
	assert.Equal(t, int64(1), st.FollowersCount)

	_, err = f.follows.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Len(t, f.notificationsFor(t, b.ID), 1)

	followers, err := f.follows.Followers(ctx, b.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, followers.Items, 1)
	assert.Equal(t, "ann", followers.Items[0].Username)

	st, err = f.follows.Toggle(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, st.Following)
	assert.Equal(t, int64(0), st.FollowersCount)
}

func TestComment_RepliesThreadOneLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "op")
	c1 := f.user(t, "commenter")
	c2 := f.user(t, "replier")
	post := f.post(t, author, "Best two player games?")

	top, err := f.comments.CreateComment(ctx, CreateCommentInput{UserID: c1.ID, PostID: post.ID, Content: "Patchwork"})
	require.NoError(t, err)
	reply, err := f.comments.CreateComment(ctx, CreateCommentInput{UserID: c2.ID, PostID: post.ID, Content: "Agreed", ParentID: &top.ID})
	require.NoError(t, err)
	nested, err := f.comments.CreateComment(ctx, CreateCommentInput{UserID: author.ID, PostID: post.ID, Content: "Thanks", ParentID: &reply.ID})
	require.NoError(t, err)
	require.NotNil(t, nested.ParentID)
	assert.Equal(t, top.ID, *nested.ParentID)

	threads, err := f.comments.ListComments(ctx, post.ID, 0)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Len(t, threads[0].Replies, 2)

	// The commenter was replied to twice; the post author heard about both foreign comments.
	assert.Len(t, f.notificationsFor(t, c1.ID), 2)
	assert.Len(t, f.notificationsFor(t, author.ID), 2)

	requireCode(t, f.comments.DeleteComment(ctx, c2.ID, top.ID), models.CodeForbidden)
	require.NoError(t, f.comments.DeleteComment(ctx, author.ID, top.ID))
}

func TestPost_HiddenVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "writer")
	other := f.user(t, "reader")
	admin := f.admin(t, "mod")
	post := f.post(t, author, "Spoilers")
	require.NoError(t, f.db.Model(&models.Post{}).Where("id = ?", post.ID).Update("is_hidden", true).Error)

	_, err := f.posts.GetPost(ctx, post.ID, other.ID)
	requireCode(t, err, models.CodeNotFound)
	_, err = f.posts.GetPost(ctx, post.ID, author.ID)
	require.NoError(t, err)
	_, err = f.posts.GetPost(ctx, post.ID, admin.ID)
	require.NoError(t, err)

	requireCode(t, f.posts.DeletePost(ctx, other.ID, post.ID), models.CodeForbidden)
}

func TestPost_CreateValidatesAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "poster")

	_, err := f.posts.CreatePost(ctx, CreatePostInput{UserID: author.ID, Title: "  ", Content: "x"})
	requireCode(t, err, models.CodeValidation)

	missing := uint(404)
	_, err = f.posts.CreatePost(ctx, CreatePostInput{UserID: author.ID, Title: "t", Content: "c", GameID: &missing})
	requireCode(t, err, models.CodeNotFound)

	p := f.post(t, author, "Hello hall")
	assert.Equal(t, "Hello hall", p.Title)
	assert.Contains(t, f.rt.toAll, notifications.EventPostCreated)
}

func TestProfile_PrivacyAndSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "private")
	stranger := f.user(t, "stranger")
	follower := f.user(t, "follower")
	admin := f.admin(t, "boss")
	require.NoError(t, f.db.Model(owner).Updates(map[string]interface{}{
		"is_profile_private": true,
		"bio":                "I collect Euro games",
	}).Error)
	_, err := f.follows.Follow(ctx, follower.ID, owner.ID)
	require.NoError(t, err)

	view, err := f.users.GetProfile(ctx, owner.ID, stranger.ID)
	require.NoError(t, err)
	assert.True(t, view.Restricted)
	assert.Empty(t, view.Bio)
	assert.Empty(t, view.Email)

	view, err = f.users.GetProfile(ctx, owner.ID, follower.ID)
	require.NoError(t, err)
	assert.False(t, view.Restricted)
	assert.Equal(t, "I collect Euro games", view.Bio)

	view, err = f.users.GetProfile(ctx, owner.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, view.IsSelf)
	assert.Equal(t, "private@example.com", view.Email)

	require.NoError(t, f.users.SoftDeleteUser(ctx, admin.ID, owner.ID))
	_, err = f.users.GetProfile(ctx, owner.ID, stranger.ID)
	requireCode(t, err, models.CodeNotFound)
	_, err = f.users.GetProfile(ctx, owner.ID, admin.ID)
	require.NoError(t, err)
}

func TestUser_RestoreConflictsWithNewAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root")
	old := f.user(t, "reused")

	require.NoError(t, f.users.SoftDeleteUser(ctx, admin.ID, old.ID))
	f.user(t, "reused")

	_, err := f.users.RestoreUser(ctx, old.ID)
	requireCode(t, err, models.CodeConflict)
}
