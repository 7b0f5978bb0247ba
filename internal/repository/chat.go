package repository

import (
	"context"
	"errors"
	"time"

	"meeplehall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines the interface for chat data operations
type ChatRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []uint) error
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	FindDirect(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	GetUserConversations(ctx context.Context, userID uint) ([]*models.Conversation, error)
	IsParticipant(ctx context.Context, convID, userID uint) (bool, error)
	ParticipantIDs(ctx context.Context, convID uint) ([]uint, error)
	AddParticipant(ctx context.Context, convID, userID uint) error
	RemoveParticipant(ctx context.Context, convID, userID uint) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, convID uint, limit int, beforeID uint) ([]*models.Message, error)
	UpdateLastRead(ctx context.Context, convID, userID uint) error
	UnreadTotal(ctx context.Context, userID uint) (int64, error)
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CreateConversation inserts the conversation and its participant rows atomically.
func (r *chatRepository) CreateConversation(ctx context.Context, conv *models.Conversation, participantIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(conv).Error; err != nil {
			return err
		}
		now := time.Now()
		rows := make([]models.ConversationParticipant, 0, len(participantIDs))
		for _, id := range participantIDs {
			rows = append(rows, models.ConversationParticipant{ConversationID: conv.ID, UserID: id, JoinedAt: now})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

func (r *chatRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).Preload("Participants").First(&conv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Conversation", id)
		}
		return nil, err
	}
	return &conv, nil
}

// FindDirect returns the one-to-one conversation between two users, or nil.
func (r *chatRepository) FindDirect(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("conversations.is_group = ?", false).
		Where("conversations.id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = ?)", userA).
		Where("conversations.id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = ?)", userB).
		Preload("Participants").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetUserConversations lists the user's conversations, most recently active first,
// each with its last message and the user's unread count.
func (r *chatRepository) GetUserConversations(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON conversations.id = cp.conversation_id").
		Where("cp.user_id = ?", userID).
		Preload("Participants").
		Order("conversations.updated_at DESC").
		Order("conversations.id DESC").
		Find(&conversations).Error
	if err != nil || len(conversations) == 0 {
		return conversations, err
	}

	for _, conv := range conversations {
		var last models.Message
		err := r.db.WithContext(ctx).Preload("Sender").
			Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").Order("id DESC").
			Limit(1).Find(&last).Error
		if err != nil {
			return nil, err
		}
		if last.ID != 0 {
			conv.LastMessage = &last
		}
		if conv.UnreadCount, err = r.unread(ctx, conv.ID, userID); err != nil {
			return nil, err
		}
	}
	return conversations, nil
}

func (r *chatRepository) unread(ctx context.Context, convID, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = messages.conversation_id AND cp.user_id = ?", userID).
		Where("messages.conversation_id = ? AND messages.sender_id <> ?", convID, userID).
		Where("(cp.last_read_at IS NULL OR messages.created_at > cp.last_read_at)").
		Count(&n).Error
	return n, err
}

// UnreadTotal counts unread messages across all of the user's conversations.
func (r *chatRepository) UnreadTotal(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = messages.conversation_id AND cp.user_id = ?", userID).
		Where("messages.sender_id <> ?", userID).
		Where("(cp.last_read_at IS NULL OR messages.created_at > cp.last_read_at)").
		Count(&n).Error
	return n, err
}

func (r *chatRepository) IsParticipant(ctx context.Context, convID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *chatRepository) ParticipantIDs(ctx context.Context, convID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", convID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *chatRepository) AddParticipant(ctx context.Context, convID, userID uint) error {
	participant := models.ConversationParticipant{
		ConversationID: convID,
		UserID:         userID,
		JoinedAt:       time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&participant).Error
}

func (r *chatRepository) RemoveParticipant(ctx context.Context, convID, userID uint) error {
	return r.db.WithContext(ctx).Where("conversation_id = ? AND user_id = ?", convID, userID).Delete(&models.ConversationParticipant{}).Error
}

// CreateMessage stores the message and bumps the conversation so listings stay ordered by activity.
func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).
			Update("updated_at", msg.CreatedAt).Error
	})
}

// GetMessages returns up to limit messages older than beforeID (all when zero),
// in chronological order.
func (r *chatRepository) GetMessages(ctx context.Context, convID uint, limit int, beforeID uint) ([]*models.Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", convID)
	if beforeID != 0 {
		q = q.Where("id < ?", beforeID)
	}
	var messages []*models.Message
	err := q.Preload("Sender").
		Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Fetched newest first to get the latest page; clients expect oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *chatRepository) UpdateLastRead(ctx context.Context, convID, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Update("last_read_at", time.Now()).Error
}
