package notifications

import (
	"context"
	"encoding/json"
	"log/slog"

	"meeplehall/internal/middleware"
)

// Event type constants prevent typos in event names.
const (
	EventNotification     = "notification"
	EventPostCreated      = "post_created"
	EventLikeUpdated      = "like_updated"
	EventCommentCreated   = "comment_created"
	EventFollowChanged    = "follow_changed"
	EventOrderUpdated     = "order_updated"
	EventMessageReceived  = "message_received"
	EventConversationRead = "conversation_read"
)

// Event is the frame sent on the notification socket.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Dispatcher delivers events. With a Notifier every instance receives them
// through Redis; without one they go straight to this instance's hubs.
type Dispatcher struct {
	notifier *Notifier
	hub      *Hub
	chatHub  *ChatHub
}

// NewDispatcher creates a Dispatcher. Any argument may be nil.
func NewDispatcher(notifier *Notifier, hub *Hub, chatHub *ChatHub) *Dispatcher {
	return &Dispatcher{notifier: notifier, hub: hub, chatHub: chatHub}
}

// ToUser sends an event to every notification connection of userID.
func (d *Dispatcher) ToUser(ctx context.Context, userID uint, eventType string, payload interface{}) {
	msg, ok := encode(Event{Type: eventType, Payload: payload})
	if !ok {
		return
	}
	if d.notifier != nil && d.notifier.rdb != nil {
		if err := d.notifier.PublishUser(ctx, userID, msg); err != nil {
			middleware.Logger.WarnContext(ctx, "publish user event failed",
				slog.String("type", eventType), slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		}
		return
	}
	if d.hub != nil {
		d.hub.Broadcast(userID, msg)
	}
}

// ToAll sends an event to every notification connection.
func (d *Dispatcher) ToAll(ctx context.Context, eventType string, payload interface{}) {
	msg, ok := encode(Event{Type: eventType, Payload: payload})
	if !ok {
		return
	}
	if d.notifier != nil && d.notifier.rdb != nil {
		if err := d.notifier.PublishBroadcast(ctx, msg); err != nil {
			middleware.Logger.WarnContext(ctx, "publish broadcast failed", slog.String("type", eventType), slog.String("error", err.Error()))
		}
		return
	}
	if d.hub != nil {
		d.hub.BroadcastAll(msg)
	}
}

// ToConversation sends a chat event to everyone viewing the conversation.
func (d *Dispatcher) ToConversation(ctx context.Context, conversationID uint, event ChatEvent) {
	event.ConversationID = conversationID
	if d.notifier != nil && d.notifier.rdb != nil {
		msg, ok := encode(event)
		if !ok {
			return
		}
		publish := d.notifier.PublishChatMessage
		if event.Type == "typing" {
			publish = d.notifier.PublishTyping
		}
		if err := publish(ctx, conversationID, msg); err != nil {
			middleware.Logger.WarnContext(ctx, "publish chat event failed",
				slog.Uint64("conversation_id", uint64(conversationID)), slog.String("error", err.Error()))
		}
		return
	}
	if d.chatHub != nil {
		d.chatHub.BroadcastToConversation(conversationID, event)
	}
}

func encode(v interface{}) (string, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		middleware.Logger.Error("marshal realtime event", slog.String("error", err.Error()))
		return "", false
	}
	return string(b), true
}
