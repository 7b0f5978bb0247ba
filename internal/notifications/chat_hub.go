package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"meeplehall/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

// ChatHub manages WebSocket connections for chat conversations.
// Unlike Hub (which is user-centric), ChatHub is conversation-centric: a user
// receives a conversation's events only after joining it on this connection set.
type ChatHub struct {
	mu sync.RWMutex

	// conversationID -> set of userIDs viewing it
	conversations map[uint]map[uint]struct{}

	// userID -> set of conversationIDs the user is viewing
	userActiveConvs map[uint]map[uint]struct{}

	// userID -> active clients (multi-device)
	userConns map[uint]map[*Client]struct{}

	totalConns int
}

// ChatEvent is the frame exchanged on the chat socket and the conversation channels.
type ChatEvent struct {
	Type           string      `json:"type"` // message, typing, read, user_status, connected_users, error
	ConversationID uint        `json:"conversation_id,omitempty"`
	UserID         uint        `json:"user_id,omitempty"`
	Username       string      `json:"username,omitempty"`
	Payload        interface{} `json:"payload,omitempty"`
}

// NewChatHub creates a new ChatHub instance
func NewChatHub() *ChatHub {
	return &ChatHub{
		conversations:   make(map[uint]map[uint]struct{}),
		userActiveConvs: make(map[uint]map[uint]struct{}),
		userConns:       make(map[uint]map[*Client]struct{}),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *ChatHub) Name() string { return "chat hub" }

// Register registers a user's websocket connection and tells everyone else
// the user is online.
func (h *ChatHub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerFull
	}
	if h.userConns[userID] == nil {
		h.userConns[userID] = make(map[*Client]struct{})
	}
	if len(h.userConns[userID]) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserFull
	}

	client := NewClient(h, conn, userID)
	h.userConns[userID][client] = struct{}{}
	h.totalConns++

	onlineIDs := make([]uint, 0, len(h.userConns))
	for id := range h.userConns {
		if id != userID {
			onlineIDs = append(onlineIDs, id)
		}
	}
	h.mu.Unlock()
	middleware.ActiveWebSockets.Inc()

	sort.Slice(onlineIDs, func(i, j int) bool { return onlineIDs[i] < onlineIDs[j] })
	if msg, err := json.Marshal(ChatEvent{Type: "connected_users", Payload: map[string]interface{}{"user_ids": onlineIDs}}); err == nil {
		client.TrySend(msg)
	}

	h.broadcastStatus(userID, "online")
	return client, nil
}

// UnregisterClient removes a connection. When it was the user's last one, the
// user leaves every conversation and goes offline.
func (h *ChatHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.userConns[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[client]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	h.totalConns--
	middleware.ActiveWebSockets.Dec()
	if len(clients) > 0 {
		h.mu.Unlock()
		return
	}

	delete(h.userConns, client.UserID)
	for convID := range h.userActiveConvs[client.UserID] {
		if users, ok := h.conversations[convID]; ok {
			delete(users, client.UserID)
			if len(users) == 0 {
				delete(h.conversations, convID)
			}
		}
	}
	delete(h.userActiveConvs, client.UserID)
	h.mu.Unlock()

	h.broadcastStatus(client.UserID, "offline")
}

// IsUserOnline returns true when the user has at least one active chat client.
func (h *ChatHub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID]) > 0
}

// JoinConversation subscribes a connected user to a conversation's events.
// Membership must be checked by the caller.
func (h *ChatHub) JoinConversation(userID, conversationID uint) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.userConns[userID]) == 0 {
		return false
	}
	if h.conversations[conversationID] == nil {
		h.conversations[conversationID] = make(map[uint]struct{})
	}
	h.conversations[conversationID][userID] = struct{}{}

	if h.userActiveConvs[userID] == nil {
		h.userActiveConvs[userID] = make(map[uint]struct{})
	}
	h.userActiveConvs[userID][conversationID] = struct{}{}
	return true
}

// LeaveConversation unsubscribes a user from a conversation
func (h *ChatHub) LeaveConversation(userID, conversationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if users, ok := h.conversations[conversationID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(h.conversations, conversationID)
		}
	}
	if convs, ok := h.userActiveConvs[userID]; ok {
		delete(convs, conversationID)
	}
}

// BroadcastToConversation sends an event to every client of every user viewing the conversation.
func (h *ChatHub) BroadcastToConversation(conversationID uint, event ChatEvent) {
	messageJSON, err := json.Marshal(event)
	if err != nil {
		middleware.Logger.Error("chat hub: marshal event", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID := range h.conversations[conversationID] {
		for client := range h.userConns[userID] {
			client.TrySend(messageJSON)
		}
	}
}

// ActiveUsers returns the sorted userIDs currently viewing a conversation.
func (h *ChatHub) ActiveUsers(conversationID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]uint, 0, len(h.conversations[conversationID]))
	for userID := range h.conversations[conversationID] {
		result = append(result, userID)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// IsUserActive checks if a user is currently viewing a conversation
func (h *ChatHub) IsUserActive(userID, conversationID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, active := h.userActiveConvs[userID][conversationID]
	return active
}

// StartWiring relays conversation channels from Redis to local viewers.
func (h *ChatHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartChatSubscriber(ctx, h.route)
}

func (h *ChatHub) route(channel, payload string) {
	var conversationID uint
	var msgType string
	if _, err := fmt.Sscanf(channel, "chat:conv:%d", &conversationID); err == nil {
		msgType = "message"
	} else if _, err := fmt.Sscanf(channel, "typing:conv:%d", &conversationID); err == nil {
		msgType = "typing"
	} else {
		middleware.Logger.Warn("chat hub: invalid channel", slog.String("channel", channel))
		return
	}

	var event ChatEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		middleware.Logger.Warn("chat hub: bad payload", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	if event.Type == "" {
		event.Type = msgType
	}
	event.ConversationID = conversationID
	h.BroadcastToConversation(conversationID, event)
}

func (h *ChatHub) broadcastStatus(userID uint, status string) {
	msg, err := json.Marshal(ChatEvent{
		Type:    "user_status",
		UserID:  userID,
		Payload: map[string]interface{}{"status": status, "user_id": userID},
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, clients := range h.userConns {
		if id == userID {
			continue
		}
		for client := range clients {
			client.TrySend(msg)
		}
	}
}

// Shutdown tells every client the server is going away and closes it.
func (h *ChatHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.userConns {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			_ = client.Conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"type":"server_shutdown","payload":"Server is shutting down"}`))
			_ = client.Conn.Close()
		}
	}
	middleware.ActiveWebSockets.Sub(float64(h.totalConns))

	h.conversations = make(map[uint]map[uint]struct{})
	h.userActiveConvs = make(map[uint]map[uint]struct{})
	h.userConns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
