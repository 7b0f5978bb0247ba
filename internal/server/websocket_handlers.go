package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"meeplehall/internal/middleware"
	"meeplehall/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// chatFrame is an inbound frame on the chat socket.
type chatFrame struct {
	Type           string `json:"type"`
	ConversationID uint   `json:"conversation_id"`
	Content        string `json:"content"`
	IsTyping       bool   `json:"is_typing"`
}

func sendChatEvent(c *notifications.Client, event notifications.ChatEvent) {
	b, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.TrySend(b)
}

func sendChatError(c *notifications.Client, msg string) {
	sendChatEvent(c, notifications.ChatEvent{Type: "error", Payload: fiber.Map{"message": msg}})
}

// allowFrame applies a per-user Redis rate limit to socket frames. Without
// Redis frames are allowed.
func (s *Server) allowFrame(ctx context.Context, resource string, userID uint, limit int, window time.Duration) bool {
	if s.redis == nil {
		return true
	}
	allowed, err := middleware.CheckRateLimit(ctx, s.redis, resource, fmt.Sprintf("user:%d", userID), limit, window)
	if err != nil {
		return true
	}
	return allowed
}

// WebsocketHandler serves the per-user notification socket.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"unauthorized"}}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			s.hubLog.LogRejected(ctx, userID, err.Error())
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}
		s.hubLog.LogConnect(ctx, userID, "")
		defer s.hubLog.LogDisconnect(ctx, userID, "", "closed")

		if b, err := json.Marshal(notifications.Event{Type: "connected", Payload: fiber.Map{"user_id": userID}}); err == nil {
			client.TrySend(b)
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// WebSocketChatHandler serves the chat socket. Clients join conversations
// they take part in and then receive messages, typing and read events for them.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"unauthorized"}}`))
			_ = conn.Close()
			return
		}
		user, err := s.userService.GetByID(ctx, userID)
		if err != nil {
			_ = conn.Close()
			return
		}
		username := user.Username

		client, err := s.chatHub.Register(userID, conn)
		if err != nil {
			s.chatLog.LogRejected(ctx, userID, err.Error())
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}
		s.chatLog.LogConnect(ctx, userID, "")
		defer s.chatLog.LogDisconnect(ctx, userID, "", "closed")

		client.IncomingHandler = func(c *notifications.Client, raw []byte) {
			var frame chatFrame
			if err := json.Unmarshal(raw, &frame); err != nil {
				sendChatError(c, "invalid frame")
				return
			}
			s.handleChatFrame(ctx, c, username, frame)
		}

		sendChatEvent(client, notifications.ChatEvent{Type: "connected", UserID: userID, Username: username})

		go client.WritePump()
		client.ReadPump()
	})
}

func (s *Server) handleChatFrame(ctx context.Context, c *notifications.Client, username string, frame chatFrame) {
	userID := c.UserID
	convID := frame.ConversationID

	switch frame.Type {
	case "join":
		member, err := s.chatService.IsParticipant(ctx, convID, userID)
		if err != nil || !member {
			sendChatError(c, "not a participant")
			return
		}
		if s.chatHub.JoinConversation(userID, convID) {
			s.chatLog.LogConnect(ctx, userID, fmt.Sprintf("conversation:%d", convID))
			sendChatEvent(c, notifications.ChatEvent{
				Type:           "joined",
				ConversationID: convID,
				Payload:        fiber.Map{"conversation_id": convID, "active_users": s.chatHub.ActiveUsers(convID)},
			})
		}

	case "leave":
		s.chatHub.LeaveConversation(userID, convID)

	case "typing":
		if !s.chatHub.IsUserActive(userID, convID) {
			return
		}
		// Spammy typing frames are dropped silently.
		if !s.allowFrame(ctx, "typing", userID, 10, 10*time.Second) {
			return
		}
		s.dispatcher.ToConversation(ctx, convID, notifications.ChatEvent{
			Type:           "typing",
			ConversationID: convID,
			UserID:         userID,
			Username:       username,
			Payload:        fiber.Map{"is_typing": frame.IsTyping},
		})

	case "message":
		if !s.allowFrame(ctx, "send_chat", userID, 15, time.Minute) {
			sendChatError(c, "Rate limit exceeded. Please wait a moment.")
			return
		}
		// SendMessage broadcasts the stored message to the conversation.
		if _, err := s.chatService.SendMessage(ctx, convID, userID, frame.Content); err != nil {
			sendChatError(c, err.Error())
		}

	case "read":
		if err := s.chatService.MarkRead(ctx, convID, userID); err != nil {
			sendChatError(c, err.Error())
		}

	case "ping":
		sendChatEvent(c, notifications.ChatEvent{Type: "pong"})

	default:
		middleware.Logger.DebugContext(ctx, "unknown chat frame",
			slog.String("type", frame.Type), slog.Uint64("user_id", uint64(userID)))
		sendChatError(c, "unknown frame type")
	}
}
