package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/repository"
)

const (
	maxMessageLen    = 4000
	maxGroupMembers  = 50
	maxConvTitleLen  = 100
	chatEventMessage = "message"
	chatEventRead    = "read"
)

// Presence reports whether a user is currently viewing a conversation.
// notifications.ChatHub implements it.
type Presence interface {
	IsUserActive(userID, conversationID uint) bool
}

type ChatService struct {
	chat     repository.ChatRepository
	users    repository.UserRepository
	follows  repository.FollowRepository
	notify   *NotificationService
	rt       Realtime
	presence Presence
}

func NewChatService(chat repository.ChatRepository, users repository.UserRepository, follows repository.FollowRepository, notify *NotificationService, rt Realtime, presence Presence) *ChatService {
	return &ChatService{chat: chat, users: users, follows: follows, notify: notify, rt: realtimeOrNop(rt), presence: presence}
}

type CreateConversationInput struct {
	CreatorID      uint
	ParticipantIDs []uint
	Title          string
}

// canMessage applies the recipient's privacy setting: with allow_messages off,
// only users the recipient follows may start a conversation with them.
func (s *ChatService) canMessage(ctx context.Context, senderID uint, recipient *models.User) error {
	if !recipient.Active() {
		return models.NewNotFoundError("User", recipient.ID)
	}
	if recipient.AllowMessages {
		return nil
	}
	follows, err := s.follows.IsFollowing(ctx, recipient.ID, senderID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !follows {
		return models.NewForbiddenError(fmt.Sprintf("%s is not accepting messages", recipient.Username))
	}
	return nil
}

// CreateConversation reuses the existing direct conversation between two users.
func (s *ChatService) CreateConversation(ctx context.Context, in CreateConversationInput) (*models.Conversation, error) {
	title, err := optionalText("title", in.Title, maxConvTitleLen)
	if err != nil {
		return nil, err
	}
	seen := map[uint]bool{in.CreatorID: true}
	var others []uint
	for _, id := range in.ParticipantIDs {
		if id != 0 && !seen[id] {
			seen[id] = true
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return nil, models.NewValidationError("A conversation needs at least one other participant")
	}
	if len(others)+1 > maxGroupMembers {
		return nil, models.NewValidationError(fmt.Sprintf("A conversation can have at most %d participants", maxGroupMembers))
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })

	users, err := s.users.GetByIDs(ctx, others)
	if err != nil {
		return nil, err
	}
	if len(users) != len(others) {
		return nil, models.NewNotFoundError("User", others)
	}
	for i := range users {
		if err := s.canMessage(ctx, in.CreatorID, &users[i]); err != nil {
			return nil, err
		}
	}

	isGroup := len(others) > 1
	if !isGroup {
		existing, err := s.chat.FindDirect(ctx, in.CreatorID, others[0])
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	conv := &models.Conversation{Title: title, IsGroup: isGroup, CreatedBy: in.CreatorID}
	if err := s.chat.CreateConversation(ctx, conv, append([]uint{in.CreatorID}, others...)); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.chat.GetConversation(ctx, conv.ID)
}

func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	convs, err := s.chat.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	return convs, nil
}

func (s *ChatService) requireParticipant(ctx context.Context, convID, userID uint) error {
	ok, err := s.chat.IsParticipant(ctx, convID, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !ok {
		return models.NewNotFoundError("Conversation", convID)
	}
	return nil
}

// IsParticipant is used by the chat socket before joining a conversation.
func (s *ChatService) IsParticipant(ctx context.Context, convID, userID uint) (bool, error) {
	return s.chat.IsParticipant(ctx, convID, userID)
}

func (s *ChatService) GetConversation(ctx context.Context, convID, userID uint) (*models.Conversation, error) {
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return nil, err
	}
	return s.chat.GetConversation(ctx, convID)
}

// GetMessages pages backwards from beforeID (0 means newest) and returns them oldest first.
func (s *ChatService) GetMessages(ctx context.Context, convID, userID uint, limit int, beforeID uint) ([]*models.Message, error) {
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.chat.GetMessages(ctx, convID, limit, beforeID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return msgs, nil
}

func (s *ChatService) SendMessage(ctx context.Context, convID, senderID uint, content string) (*models.Message, error) {
	content, err := requireText("content", content, maxMessageLen)
	if err != nil {
		return nil, err
	}
	conv, err := s.GetConversation(ctx, convID, senderID)
	if err != nil {
		return nil, err
	}
	var sender *models.User
	for i := range conv.Participants {
		p := &conv.Participants[i]
		if p.ID == senderID {
			sender = p
			continue
		}
		if !conv.IsGroup {
			if err := s.canMessage(ctx, senderID, p); err != nil {
				return nil, err
			}
		}
	}

	msg := &models.Message{ConversationID: convID, SenderID: senderID, Content: content}
	if err := s.chat.CreateMessage(ctx, msg); err != nil {
		return nil, models.NewInternalError(err)
	}
	msg.Sender = sender

	event := notifications.ChatEvent{Type: chatEventMessage, UserID: senderID, Payload: msg}
	if sender != nil {
		event.Username = sender.Username
	}
	s.rt.ToConversation(ctx, convID, event)

	name := "Someone"
	if sender != nil {
		name = sender.Name()
	}
	preview := content
	if r := []rune(preview); len(r) > 80 {
		preview = string(r[:80]) + "..."
	}
	for _, p := range conv.Participants {
		if p.ID == senderID {
			continue
		}
		s.rt.ToUser(ctx, p.ID, notifications.EventMessageReceived, msg)
		if s.presence != nil && s.presence.IsUserActive(p.ID, convID) {
			continue
		}
		s.notify.Notify(ctx, NotifyInput{
			RecipientID: p.ID,
			ActorID:     senderID,
			Type:        models.NotificationMessage,
			TargetType:  "conversation",
			TargetID:    convID,
			Message:     fmt.Sprintf("%s: %s", name, strings.TrimSpace(preview)),
		})
	}
	return msg, nil
}

func (s *ChatService) MarkRead(ctx context.Context, convID, userID uint) error {
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return err
	}
	if err := s.chat.UpdateLastRead(ctx, convID, userID); err != nil {
		return models.NewInternalError(err)
	}
	s.rt.ToConversation(ctx, convID, notifications.ChatEvent{Type: chatEventRead, UserID: userID})
	s.rt.ToUser(ctx, userID, notifications.EventConversationRead, map[string]uint{"conversation_id": convID})
	return nil
}

func (s *ChatService) LeaveConversation(ctx context.Context, convID, userID uint) error {
	if err := s.requireParticipant(ctx, convID, userID); err != nil {
		return err
	}
	if err := s.chat.RemoveParticipant(ctx, convID, userID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *ChatService) UnreadTotal(ctx context.Context, userID uint) (int64, error) {
	n, err := s.chat.UnreadTotal(ctx, userID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
