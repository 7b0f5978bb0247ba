// Package notifications provides real-time notification delivery over Redis pub/sub and WebSockets.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"meeplehall/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPattern = "notifications:user:*"
	broadcastChannel   = "notifications:broadcast"
	chatChannelPattern = "chat:conv:*"
	typingPattern      = "typing:conv:*"
)

// Notifier publishes notification payloads into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a payload to every connected user.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// PublishChatMessage publishes a chat event to a conversation channel.
func (n *Notifier) PublishChatMessage(ctx context.Context, conversationID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, ConversationChannel(conversationID), payload).Err()
}

// PublishTyping publishes a typing indicator to a conversation.
func (n *Notifier) PublishTyping(ctx context.Context, conversationID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, fmt.Sprintf("typing:conv:%d", conversationID), payload).Err()
}

// StartPatternSubscriber subscribes to user and broadcast notification channels
// and calls onMessage for each incoming message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	return n.subscribe(ctx, "pattern subscriber", onMessage, userChannelPattern, broadcastChannel)
}

// StartChatSubscriber subscribes to conversation message and typing channels.
func (n *Notifier) StartChatSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	return n.subscribe(ctx, "chat subscriber", onMessage, chatChannelPattern, typingPattern)
}

func (n *Notifier) subscribe(ctx context.Context, name string, onMessage func(channel, payload string), patterns ...string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, patterns...)
	// Wait for the subscription confirmation so publishes right after return are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in redis subscriber",
								slog.String("subscriber", name),
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// ConversationChannel derives the Redis channel name for a conversation.
func ConversationChannel(conversationID uint) string {
	return "chat:conv:" + strconv.FormatUint(uint64(conversationID), 10)
}
