package seed

import (
	_ "embed"
	"fmt"

	"meeplehall/internal/models"
	"meeplehall/internal/validation"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed catalog.yml
var catalogYAML []byte

// CatalogGame is one entry of the embedded game catalog.
type CatalogGame struct {
	Name            string `yaml:"name"`
	Designer        string `yaml:"designer"`
	Publisher       string `yaml:"publisher"`
	YearPublished   int    `yaml:"year_published"`
	MinPlayers      int    `yaml:"min_players"`
	MaxPlayers      int    `yaml:"max_players"`
	PlayTimeMinutes int    `yaml:"play_time_minutes"`
	MinAge          int    `yaml:"min_age"`
	Categories      string `yaml:"categories"`
	Description     string `yaml:"description"`
}

type catalogFile struct {
	Games []CatalogGame `yaml:"games"`
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() ([]CatalogGame, error) {
	return parseCatalog(catalogYAML)
}

func parseCatalog(data []byte) ([]CatalogGame, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse game catalog: %w", err)
	}
	for i, g := range f.Games {
		if g.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		if g.MinPlayers < 1 || g.MaxPlayers < g.MinPlayers {
			return nil, fmt.Errorf("catalog entry %q has invalid player counts %d-%d", g.Name, g.MinPlayers, g.MaxPlayers)
		}
	}
	return f.Games, nil
}

func (g CatalogGame) model() models.Game {
	return models.Game{
		Name:            g.Name,
		Slug:            validation.Slugify(g.Name),
		Description:     g.Description,
		Designer:        g.Designer,
		Publisher:       g.Publisher,
		YearPublished:   g.YearPublished,
		MinPlayers:      g.MinPlayers,
		MaxPlayers:      g.MaxPlayers,
		PlayTimeMinutes: g.PlayTimeMinutes,
		MinAge:          g.MinAge,
		Categories:      g.Categories,
	}
}

// Games upserts the embedded catalog by slug and returns the stored games.
// Running it twice leaves one row per catalog entry.
func Games(db *gorm.DB) ([]models.Game, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	out := make([]models.Game, 0, len(catalog))
	for _, entry := range catalog {
		game := entry.model()
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "designer", "publisher", "year_published",
				"min_players", "max_players", "play_time_minutes", "min_age", "categories", "updated_at",
			}),
		}).Create(&game).Error
		if err != nil {
			return nil, fmt.Errorf("seed game %s: %w", game.Slug, err)
		}
		if err := db.Where("slug = ?", game.Slug).First(&game).Error; err != nil {
			return nil, fmt.Errorf("reload game %s: %w", game.Slug, err)
		}
		out = append(out, game)
	}
	return out, nil
}
