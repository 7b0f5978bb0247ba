package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()
	assert.NoError(t, n.PublishUser(ctx, 1, "test payload"))
	assert.NoError(t, n.PublishBroadcast(ctx, "x"))
	assert.NoError(t, n.PublishChatMessage(ctx, 1, "x"))
	assert.NoError(t, n.StartPatternSubscriber(ctx, func(string, string) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishUser(ctx, 1, "x"))
}

func TestChannels(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:1", UserChannel(1))
	assert.Equal(t, "notifications:user:100", UserChannel(100))
	assert.Equal(t, "chat:conv:5", ConversationChannel(5))
}

func TestHub_WiringDeliversUserNotifications(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, hub.StartWiring(ctx, n))

	alice, err := hub.Register(1, nil)
	require.NoError(t, err)
	bob, err := hub.Register(2, nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishUser(ctx, 1, `{"type":"like"}`))

	select {
	case msg := <-alice.Send:
		assert.JSONEq(t, `{"type":"like"}`, string(msg))
	case <-time.After(testEventuallyTimeout):
		t.Fatal("notification not delivered")
	}
	assert.Empty(t, bob.Send)

	require.NoError(t, n.PublishBroadcast(ctx, `{"type":"post_created"}`))
	assert.Eventually(t, func() bool { return len(bob.Send) == 1 }, testEventuallyTimeout, testPollInterval)
}

func TestChatHub_WiringRelaysToViewers(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	hub := NewChatHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	viewer, err := hub.Register(1, nil)
	require.NoError(t, err)
	<-viewer.Send // connected_users snapshot
	require.True(t, hub.JoinConversation(1, 42))

	require.NoError(t, n.PublishChatMessage(ctx, 42, `{"payload":{"content":"hi"}}`))

	select {
	case msg := <-viewer.Send:
		assert.JSONEq(t, `{"type":"message","conversation_id":42,"payload":{"content":"hi"}}`, string(msg))
	case <-time.After(testEventuallyTimeout):
		t.Fatal("chat message not relayed")
	}
}
