package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"meeplehall/internal/middleware"
	"meeplehall/internal/models"
	"meeplehall/internal/repository"
	"meeplehall/internal/search"
	"meeplehall/internal/validation"
)

// GameIndex is the external full-text index for games. search.Client implements it.
type GameIndex interface {
	IndexGame(ctx context.Context, g *models.Game) error
	DeleteGame(ctx context.Context, id uint) error
	SearchGames(ctx context.Context, q search.GameQuery) ([]uint, int64, error)
}

type GameService struct {
	games repository.GameRepository
	index GameIndex
}

// NewGameService creates a GameService. index may be nil, in which case search runs in SQL.
func NewGameService(games repository.GameRepository, index GameIndex) *GameService {
	return &GameService{games: games, index: index}
}

// GameInput is the admin payload for creating or updating a game.
type GameInput struct {
	Name            string `json:"name" validate:"required,max=200"`
	Slug            string `json:"slug" validate:"omitempty,max=200"`
	Description     string `json:"description" validate:"max=20000"`
	Designer        string `json:"designer" validate:"max=200"`
	Publisher       string `json:"publisher" validate:"max=200"`
	YearPublished   int    `json:"year_published" validate:"gte=0,lte=3000"`
	MinPlayers      int    `json:"min_players" validate:"gte=1,lte=100"`
	MaxPlayers      int    `json:"max_players" validate:"gte=1,lte=100"`
	PlayTimeMinutes int    `json:"play_time_minutes" validate:"gte=0,lte=10000"`
	MinAge          int    `json:"min_age" validate:"gte=0,lte=99"`
	Categories      string `json:"categories" validate:"max=500"`
	ImageURL        string `json:"image_url" validate:"omitempty,max=2000"`
}

func (in *GameInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.MaxPlayers < in.MinPlayers {
		return models.NewValidationError("Validation failed", "max_players must be at least min_players")
	}
	if in.Slug != "" {
		if err := validation.ValidateGameSlug(in.Slug); err != nil {
			return models.NewValidationError(err.Error(), "slug: "+err.Error())
		}
	}
	return nil
}

func (in *GameInput) apply(g *models.Game) {
	g.Name = in.Name
	g.Description = strings.TrimSpace(in.Description)
	g.Designer = strings.TrimSpace(in.Designer)
	g.Publisher = strings.TrimSpace(in.Publisher)
	g.YearPublished = in.YearPublished
	g.MinPlayers = in.MinPlayers
	g.MaxPlayers = in.MaxPlayers
	g.PlayTimeMinutes = in.PlayTimeMinutes
	g.MinAge = in.MinAge
	g.Categories = normalizeCategories(in.Categories)
	g.ImageURL = strings.TrimSpace(in.ImageURL)
}

func normalizeCategories(raw string) string {
	g := models.Game{Categories: raw}
	list := g.CategoryList()
	for i, c := range list {
		list[i] = strings.ToLower(c)
	}
	return strings.Join(list, ",")
}

// uniqueSlug derives a slug from name, adding -2, -3, ... until it is free.
func (s *GameService) uniqueSlug(ctx context.Context, name string, exceptID uint) (string, error) {
	base := validation.Slugify(name)
	if validation.ValidateGameSlug(base) != nil {
		base = "game-" + base
		base = strings.TrimSuffix(base, "-")
	}
	slug := base
	for i := 2; i < 1000; i++ {
		taken, err := s.games.SlugExists(ctx, slug, exceptID)
		if err != nil {
			return "", models.NewInternalError(err)
		}
		if !taken {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
	return "", models.NewConflictError("Could not derive a unique slug for " + name)
}

func (s *GameService) CreateGame(ctx context.Context, in GameInput) (*models.Game, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	game := &models.Game{}
	in.apply(game)
	if in.Slug != "" {
		game.Slug = in.Slug
	} else {
		slug, err := s.uniqueSlug(ctx, in.Name, 0)
		if err != nil {
			return nil, err
		}
		game.Slug = slug
	}
	if err := s.games.Create(ctx, game); err != nil {
		return nil, err
	}
	s.reindex(ctx, game)
	return game, nil
}

func (s *GameService) UpdateGame(ctx context.Context, id uint, in GameInput) (*models.Game, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	game, err := s.games.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	nameChanged := game.Name != in.Name
	in.apply(game)
	switch {
	case in.Slug != "":
		game.Slug = in.Slug
	case nameChanged:
		if game.Slug, err = s.uniqueSlug(ctx, in.Name, id); err != nil {
			return nil, err
		}
	}
	if err := s.games.Update(ctx, game); err != nil {
		return nil, err
	}
	updated, err := s.games.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, updated)
	return updated, nil
}

func (s *GameService) DeleteGame(ctx context.Context, id uint) error {
	if err := s.games.Delete(ctx, id); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.DeleteGame(ctx, id); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to remove game from search index", slog.Uint64("game_id", uint64(id)), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *GameService) reindex(ctx context.Context, g *models.Game) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexGame(ctx, g); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to index game", slog.Uint64("game_id", uint64(g.ID)), slog.String("error", err.Error()))
	}
}

// Reindex pushes every game to the search index and returns the number indexed.
func (s *GameService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, models.NewValidationError("Search index is not configured")
	}
	n := 0
	err := s.games.All(ctx, 200, func(batch []models.Game) error {
		for i := range batch {
			if err := s.index.IndexGame(ctx, &batch[i]); err != nil {
				return fmt.Errorf("index game %d: %w", batch[i].ID, err)
			}
			n++
		}
		return nil
	})
	return n, err
}

// GetGame looks up a game by numeric id or slug and attaches the viewer's rating.
func (s *GameService) GetGame(ctx context.Context, idOrSlug string, viewerID uint) (*models.Game, error) {
	var (
		game *models.Game
		err  error
	)
	if id, convErr := strconv.ParseUint(idOrSlug, 10, 64); convErr == nil {
		game, err = s.games.GetByID(ctx, uint(id))
	} else {
		game, err = s.games.GetBySlug(ctx, strings.ToLower(idOrSlug))
	}
	if err != nil {
		return nil, err
	}
	if viewerID != 0 {
		if game.MyRating, err = s.games.UserRating(ctx, viewerID, game.ID); err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return game, nil
}

type ListGamesInput struct {
	Query    string
	Category string
	Players  int
	Limit    int
	Offset   int
	// SQLOnly bypasses the search index.
	SQLOnly bool
}

// ListGames uses the search index for text queries when one is configured and
// falls back to SQL when it is absent or failing.
func (s *GameService) ListGames(ctx context.Context, in ListGamesInput) (models.Page[models.Game], error) {
	if s.index != nil && !in.SQLOnly && strings.TrimSpace(in.Query) != "" {
		ids, total, err := s.index.SearchGames(ctx, search.GameQuery{
			Text:     in.Query,
			Category: in.Category,
			Players:  in.Players,
			Limit:    in.Limit,
			Offset:   in.Offset,
		})
		if err == nil {
			games, err := s.games.GetByIDs(ctx, ids)
			if err != nil {
				return models.Page[models.Game]{}, models.NewInternalError(err)
			}
			return models.NewPage(games, in.Limit, in.Offset, total), nil
		}
		middleware.Logger.WarnContext(ctx, "game search index unavailable, using SQL", slog.String("error", err.Error()))
	}
	games, total, err := s.games.List(ctx, repository.GameFilter{
		Query:    in.Query,
		Category: in.Category,
		Players:  in.Players,
	}, in.Limit, in.Offset)
	if err != nil {
		return models.Page[models.Game]{}, models.NewInternalError(err)
	}
	return models.NewPage(games, in.Limit, in.Offset, total), nil
}

func (s *GameService) RateGame(ctx context.Context, userID, gameID uint, score int) (*models.Game, error) {
	if score < 1 || score > 10 {
		return nil, models.NewValidationError("score must be between 1 and 10", "score must be between 1 and 10")
	}
	if _, err := s.games.GetByID(ctx, gameID); err != nil {
		return nil, err
	}
	if err := s.games.Rate(ctx, userID, gameID, score); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.GetGame(ctx, strconv.FormatUint(uint64(gameID), 10), userID)
}

func (s *GameService) DeleteRating(ctx context.Context, userID, gameID uint) error {
	removed, err := s.games.DeleteRating(ctx, userID, gameID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !removed {
		return models.NewNotFoundError("Rating", gameID)
	}
	return nil
}
