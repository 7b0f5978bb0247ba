package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Game is an encyclopedia entry for a board game.
type Game struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"not null;size:200" json:"name"`
	Slug            string `gorm:"not null;size:220;uniqueIndex" json:"slug"`
	Description     string `gorm:"type:text" json:"description"`
	Designer        string `gorm:"size:200" json:"designer"`
	Publisher       string `gorm:"size:200" json:"publisher"`
	YearPublished   int    `json:"year_published"`
	MinPlayers      int    `gorm:"not null;default:1" json:"min_players"`
	MaxPlayers      int    `gorm:"not null;default:1" json:"max_players"`
	PlayTimeMinutes int    `json:"play_time_minutes"`
	MinAge          int    `json:"min_age"`
	// Categories is a comma separated list, e.g. "strategy,economic".
	Categories string `gorm:"size:500" json:"categories"`
	ImageURL   string `json:"image_url"`

	RatingAverage float64 `gorm:"->;-:migration" json:"rating_average"`
	RatingCount   int64   `gorm:"->;-:migration" json:"rating_count"`
	MyRating      *int    `gorm:"-" json:"my_rating,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CategoryList splits Categories into trimmed, non-empty names.
func (g *Game) CategoryList() []string {
	var out []string
	for _, c := range strings.Split(g.Categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// GameRating is one user's 1..10 score for a game.
type GameRating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_game_ratings_pair" json:"user_id"`
	GameID    uint      `gorm:"not null;uniqueIndex:idx_game_ratings_pair;index" json:"game_id"`
	Score     int       `gorm:"not null" json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
