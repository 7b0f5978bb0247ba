package repository

import (
	"context"
	"errors"
	"strings"

	"meeplehall/internal/cache"
	"meeplehall/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameFilter narrows the encyclopedia listing.
type GameFilter struct {
	Query    string
	Category string
	Players  int
}

// GameRepository stores encyclopedia entries and ratings.
type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, id uint) (*models.Game, error)
	GetBySlug(ctx context.Context, slug string) (*models.Game, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Game, error)
	SlugExists(ctx context.Context, slug string, exceptID uint) (bool, error)
	List(ctx context.Context, filter GameFilter, limit, offset int) ([]models.Game, int64, error)
	All(ctx context.Context, batch int, fn func([]models.Game) error) error
	Update(ctx context.Context, game *models.Game) error
	Delete(ctx context.Context, id uint) error
	Rate(ctx context.Context, userID, gameID uint, score int) error
	DeleteRating(ctx context.Context, userID, gameID uint) (bool, error)
	UserRating(ctx context.Context, userID, gameID uint) (*int, error)
}

type gameRepository struct {
	db *gorm.DB
}

// NewGameRepository creates a GameRepository.
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

const gameSelect = "games.*, " +
	"COALESCE((SELECT AVG(score) FROM game_ratings WHERE game_ratings.game_id = games.id), 0) AS rating_average, " +
	"(SELECT COUNT(*) FROM game_ratings WHERE game_ratings.game_id = games.id) AS rating_count"

func (r *gameRepository) Create(ctx context.Context, game *models.Game) error {
	if err := r.db.WithContext(ctx).Create(game).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A game with this slug already exists")
		}
		return err
	}
	return nil
}

func (r *gameRepository) GetByID(ctx context.Context, id uint) (*models.Game, error) {
	var g models.Game
	if err := r.db.WithContext(ctx).Select(gameSelect).First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Game", id)
		}
		return nil, err
	}
	return &g, nil
}

func (r *gameRepository) GetBySlug(ctx context.Context, slug string) (*models.Game, error) {
	var g models.Game
	err := cache.Aside(ctx, cache.GameKey(slug), &g, cache.GameTTL, func() error {
		return r.db.WithContext(ctx).Select(gameSelect).Where("slug = ?", slug).First(&g).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Game", slug)
		}
		return nil, err
	}
	return &g, nil
}

// GetByIDs returns the games in the order of ids, skipping missing ones.
func (r *gameRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Game, error) {
	if len(ids) == 0 {
		return []models.Game{}, nil
	}
	var rows []models.Game
	if err := r.db.WithContext(ctx).Select(gameSelect).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Game, len(rows))
	for _, g := range rows {
		byID[g.ID] = g
	}
	out := make([]models.Game, 0, len(rows))
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *gameRepository) SlugExists(ctx context.Context, slug string, exceptID uint) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Unscoped().Model(&models.Game{}).Where("slug = ?", slug)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *gameRepository) List(ctx context.Context, f GameFilter, limit, offset int) ([]models.Game, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Game{})
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := likePattern(q)
		base = base.Where(`(LOWER(games.name) LIKE ? ESCAPE '\' OR LOWER(games.designer) LIKE ? ESCAPE '\' OR LOWER(games.description) LIKE ? ESCAPE '\')`, pattern, pattern, pattern)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		base = base.Where(`LOWER(games.categories) LIKE ? ESCAPE '\'`, likePattern(c))
	}
	if f.Players > 0 {
		base = base.Where("games.min_players <= ? AND games.max_players >= ?", f.Players, f.Players)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var games []models.Game
	err := base.Select(gameSelect).Order("games.name ASC").Limit(clampLimit(limit)).Offset(offset).Find(&games).Error
	return games, total, err
}

// All streams every game in id order, batch rows at a time.
func (r *gameRepository) All(ctx context.Context, batch int, fn func([]models.Game) error) error {
	var games []models.Game
	res := r.db.WithContext(ctx).Order("id ASC").FindInBatches(&games, batch, func(_ *gorm.DB, _ int) error {
		return fn(games)
	})
	return res.Error
}

func (r *gameRepository) Update(ctx context.Context, game *models.Game) error {
	var old models.Game
	if err := r.db.WithContext(ctx).Select("slug").First(&old, game.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Game", game.ID)
		}
		return err
	}
	err := r.db.WithContext(ctx).Model(game).
		Select("name", "slug", "description", "designer", "publisher", "year_published",
			"min_players", "max_players", "play_time_minutes", "min_age", "categories", "image_url").
		Updates(game).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("A game with this slug already exists")
		}
		return err
	}
	cache.InvalidateGame(ctx, old.Slug)
	cache.InvalidateGame(ctx, game.Slug)
	return nil
}

func (r *gameRepository) Delete(ctx context.Context, id uint) error {
	var g models.Game
	if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Game", id)
		}
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&g).Error; err != nil {
		return err
	}
	cache.InvalidateGame(ctx, g.Slug)
	return nil
}

func (r *gameRepository) Rate(ctx context.Context, userID, gameID uint, score int) error {
	rating := models.GameRating{UserID: userID, GameID: gameID, Score: score}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&rating).Error
	if err == nil {
		r.invalidateByID(ctx, gameID)
	}
	return err
}

func (r *gameRepository) DeleteRating(ctx context.Context, userID, gameID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND game_id = ?", userID, gameID).Delete(&models.GameRating{})
	if res.Error == nil && res.RowsAffected > 0 {
		r.invalidateByID(ctx, gameID)
	}
	return res.RowsAffected > 0, res.Error
}

func (r *gameRepository) UserRating(ctx context.Context, userID, gameID uint) (*int, error) {
	var rating models.GameRating
	err := r.db.WithContext(ctx).Where("user_id = ? AND game_id = ?", userID, gameID).First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rating.Score, nil
}

func (r *gameRepository) invalidateByID(ctx context.Context, gameID uint) {
	var slug string
	if err := r.db.WithContext(ctx).Model(&models.Game{}).Where("id = ?", gameID).Pluck("slug", &slug).Error; err == nil && slug != "" {
		cache.InvalidateGame(ctx, slug)
	}
}
