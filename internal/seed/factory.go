// Package seed provides helpers to create demo data for development
// databases and tests.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"meeplehall/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "Meeple#Hall2024"

// Options tunes the seeder.
type Options struct {
	// SkipBcrypt stores a cheap hash. Only for tests.
	SkipBcrypt bool
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
	// Seed makes the generated data reproducible when non-zero.
	Seed int64
}

// Factory builds domain entities with fake content and persists them.
type Factory struct {
	db   *gorm.DB
	opts Options
	fake *gofakeit.Faker
	rng  *rand.Rand

	passwordHash string
}

// NewFactory creates a Factory bound to db.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	return &Factory{
		db:   db,
		opts: opts,
		fake: gofakeit.New(seed),
		// #nosec G404: acceptable for seeding
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (f *Factory) hashedPassword() (string, error) {
	if f.passwordHash != "" {
		return f.passwordHash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", err
	}
	f.passwordHash = string(h)
	return f.passwordHash, nil
}

// pastTime returns a random moment within the configured window.
func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.rng.Int63n(int64(f.opts.MaxDays) * int64(24*time.Hour)))
	return time.Now().Add(-back)
}

// CreateUser persists a user with a fake profile. Overrides run before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.hashedPassword()
	if err != nil {
		return nil, err
	}
	username := strings.ToLower(f.fake.Username())
	if len(username) > 24 {
		username = username[:24]
	}
	username = fmt.Sprintf("%s%d", username, f.fake.Number(100, 999))
	user := &models.User{
		Username:         username,
		Email:            username + "@example.com",
		Password:         hash,
		DisplayName:      f.fake.Name(),
		Bio:              f.fake.Sentence(12),
		Location:         f.fake.City(),
		Avatar:           fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.fake.UUID()),
		AllowMessages:    true,
		IsProfilePrivate: f.rng.Float32() < 0.1,
	}
	for _, o := range overrides {
		o(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateFollow makes follower follow following.
func (f *Factory) CreateFollow(follower, following *models.User) error {
	return f.db.Create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}).Error
}

// CreatePost persists a post by user, optionally about game.
func (f *Factory) CreatePost(user *models.User, game *models.Game, overrides ...func(*models.Post)) (*models.Post, error) {
	post := &models.Post{
		Title:   strings.TrimSuffix(f.fake.Sentence(6), "."),
		Content: f.fake.Paragraph(1, 3, 8, "\n\n"),
		UserID:  user.ID,
	}
	if game != nil {
		post.GameID = &game.ID
		post.Title = fmt.Sprintf("%s: %s", game.Name, post.Title)
	}
	if f.rng.Float32() < 0.3 {
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.fake.UUID())
	}
	post.CreatedAt = f.pastTime()
	post.UpdatedAt = post.CreatedAt
	for _, o := range overrides {
		o(post)
	}
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a comment on post, as a reply when parent is set.
func (f *Factory) CreateComment(user *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:  post.ID,
		UserID:  user.ID,
		Content: f.fake.Sentence(10),
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike records user liking an item.
func (f *Factory) CreateLike(user *models.User, itemType models.LikeItemType, itemID uint) error {
	return f.db.Create(&models.Like{UserID: user.ID, ItemType: itemType, ItemID: itemID}).Error
}

var conditions = []string{
	models.ConditionNew,
	models.ConditionLikeNew,
	models.ConditionGood,
	models.ConditionFair,
	models.ConditionPoor,
}

// CreateListing persists an active trade listing for game sold by seller.
func (f *Factory) CreateListing(seller *models.User, game *models.Game, overrides ...func(*models.TradeItem)) (*models.TradeItem, error) {
	condition := conditions[f.rng.Intn(len(conditions))]
	item := &models.TradeItem{
		SellerID:    seller.ID,
		Title:       game.Name + " (" + strings.ReplaceAll(condition, "_", " ") + ")",
		Description: f.fake.Paragraph(1, 2, 10, " "),
		PriceCents:  int64(f.fake.Number(5, 120))*100 + int64(f.rng.Intn(4))*25,
		Currency:    "USD",
		Condition:   condition,
		Quantity:    f.fake.Number(1, 3),
		Status:      models.TradeItemActive,
	}
	item.GameID = &game.ID
	for _, o := range overrides {
		o(item)
	}
	if err := f.db.Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}
