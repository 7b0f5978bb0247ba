package seed

import (
	"errors"
	"fmt"
	"log/slog"

	"meeplehall/internal/middleware"
	"meeplehall/internal/models"

	"gorm.io/gorm"
)

// Counts sizes a seeding run.
type Counts struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	ListingsPerUser int
	FollowsPerUser  int
	LikesPerPost    int
	RatingsPerGame  int
}

// DefaultCounts gives a small but lively community.
var DefaultCounts = Counts{
	Users:           30,
	PostsPerUser:    3,
	CommentsPerPost: 3,
	ListingsPerUser: 1,
	FollowsPerUser:  5,
	LikesPerPost:    4,
	RatingsPerGame:  6,
}

// Result summarises what a run created.
type Result struct {
	Users    int
	Games    int
	Posts    int
	Comments int
	Likes    int
	Follows  int
	Listings int
	Ratings  int
}

// Seeder populates a database with demo content.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a Seeder.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// tables in delete order, children first.
var seededTables = []any{
	&models.Notification{},
	&models.ModerationReport{},
	&models.OrderItem{},
	&models.Order{},
	&models.CartItem{},
	&models.Like{},
	&models.Comment{},
	&models.Post{},
	&models.TradeItem{},
	&models.GameRating{},
	&models.Follow{},
	&models.Message{},
	&models.ConversationParticipant{},
	&models.Conversation{},
	&models.ImageVariant{},
	&models.Image{},
	&models.User{},
}

// ClearAll removes user generated content. The game catalog is kept.
func (s *Seeder) ClearAll() error {
	middleware.Logger.Info("clearing existing data")
	for _, m := range seededTables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}

// Run seeds the catalog and then a community of the given size.
func (s *Seeder) Run(c Counts) (Result, error) {
	var res Result

	games, err := Games(s.db)
	if err != nil {
		return res, err
	}
	res.Games = len(games)
	middleware.Logger.Info("game catalog seeded", slog.Int("games", len(games)))

	users, err := s.seedUsers(c.Users)
	if err != nil {
		return res, err
	}
	res.Users = len(users)
	if len(users) == 0 {
		return res, nil
	}

	f := s.factory
	for i, u := range users {
		for j := 1; j <= c.FollowsPerUser && j < len(users); j++ {
			target := users[(i+j*7)%len(users)]
			if target.ID == u.ID {
				continue
			}
			if err := f.CreateFollow(u, target); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					continue
				}
				return res, fmt.Errorf("seed follow: %w", err)
			}
			res.Follows++
		}
	}

	for _, u := range users {
		for j := 0; j < c.PostsPerUser; j++ {
			var game *models.Game
			if len(games) > 0 && f.rng.Float32() < 0.7 {
				game = &games[f.rng.Intn(len(games))]
			}
			post, err := f.CreatePost(u, game)
			if err != nil {
				return res, fmt.Errorf("seed post: %w", err)
			}
			res.Posts++

			var parent *models.Comment
			for k := 0; k < c.CommentsPerPost; k++ {
				author := users[f.rng.Intn(len(users))]
				// Every other comment answers the previous one.
				if k%2 == 0 {
					parent = nil
				}
				comment, err := f.CreateComment(author, post, parent)
				if err != nil {
					return res, fmt.Errorf("seed comment: %w", err)
				}
				parent = comment
				res.Comments++
			}

			for k := 0; k < c.LikesPerPost && k < len(users); k++ {
				liker := users[(int(post.ID)+k)%len(users)]
				if err := f.CreateLike(liker, models.LikeItemPost, post.ID); err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						continue
					}
					return res, fmt.Errorf("seed like: %w", err)
				}
				res.Likes++
			}
		}

		for j := 0; j < c.ListingsPerUser && len(games) > 0; j++ {
			if _, err := f.CreateListing(u, &games[f.rng.Intn(len(games))]); err != nil {
				return res, fmt.Errorf("seed listing: %w", err)
			}
			res.Listings++
		}
	}

	for gi := range games {
		for k := 0; k < c.RatingsPerGame && k < len(users); k++ {
			rater := users[(gi*3+k)%len(users)]
			rating := models.GameRating{UserID: rater.ID, GameID: games[gi].ID, Score: 4 + f.rng.Intn(7)}
			if err := s.db.Create(&rating).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					continue
				}
				return res, fmt.Errorf("seed rating: %w", err)
			}
			res.Ratings++
		}
	}

	middleware.Logger.Info("seeding complete",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
		slog.Int("likes", res.Likes),
		slog.Int("follows", res.Follows),
		slog.Int("listings", res.Listings),
		slog.Int("ratings", res.Ratings),
	)
	return res, nil
}

// seedUsers creates count users. The first account is always "admin" with
// admin rights so a fresh database can be moderated.
func (s *Seeder) seedUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	if count <= 0 {
		return users, nil
	}

	var admin models.User
	err := s.db.Where("username = ? AND is_deleted = ?", "admin", false).First(&admin).Error
	switch {
	case err == nil:
		users = append(users, &admin)
	case errors.Is(err, gorm.ErrRecordNotFound):
		created, err := s.factory.CreateUser(func(u *models.User) {
			u.Username = "admin"
			u.Email = "admin@example.com"
			u.DisplayName = "Hall Keeper"
			u.IsAdmin = true
			u.IsProfilePrivate = false
		})
		if err != nil {
			return nil, fmt.Errorf("seed admin: %w", err)
		}
		users = append(users, created)
	default:
		return nil, fmt.Errorf("look up admin: %w", err)
	}

	for attempts := 0; len(users) < count && attempts < count*3; attempts++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, fmt.Errorf("seed user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}
