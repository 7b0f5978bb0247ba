package database

import "meeplehall/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Game{},
		&models.GameRating{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.Follow{},
		&models.Notification{},
		&models.TradeItem{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.ModerationReport{},
		&models.Image{},
		&models.ImageVariant{},
	}
}
