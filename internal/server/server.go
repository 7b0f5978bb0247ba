// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "meeplehall/docs" // swagger docs
	"meeplehall/internal/cache"
	"meeplehall/internal/config"
	"meeplehall/internal/database"
	"meeplehall/internal/email"
	"meeplehall/internal/featureflags"
	"meeplehall/internal/keylock"
	"meeplehall/internal/middleware"
	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/observability"
	"meeplehall/internal/repository"
	"meeplehall/internal/search"
	"meeplehall/internal/service"
	"meeplehall/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "meeplehall-api"

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	notifier   *notifications.Notifier
	hub        *notifications.Hub
	chatHub    *notifications.ChatHub
	hubs       []wireableHub
	dispatcher *notifications.Dispatcher
	hubLog     *observability.WSLogger
	chatLog    *observability.WSLogger

	likeLocks    *keylock.Locker
	featureFlags *featureflags.Manager
	store        storage.Store
	search       *search.Client
	mailer       email.Sender

	authService         *service.AuthService
	userService         *service.UserService
	followService       *service.FollowService
	postService         *service.PostService
	commentService      *service.CommentService
	likeService         *service.LikeService
	gameService         *service.GameService
	marketService       *service.MarketService
	orderService        *service.OrderService
	chatService         *service.ChatService
	moderationService   *service.ModerationService
	notificationService *service.NotificationService
	imageService        *service.ImageService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := observability.RegisterQueryMetrics(db); err != nil {
		return nil, fmt.Errorf("register query metrics: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
// A nil Redis client runs the server on a single instance: realtime events go
// straight to the local hubs and token revocation is not tracked.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	mailer, err := newMailer(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(serviceName),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		likeLocks: keylock.New(
			time.Duration(cfg.LikeLockWaitMillis)*time.Millisecond,
			time.Duration(cfg.LikeLockIdleMinutes)*time.Minute,
		),
		store:   store,
		mailer:  mailer,
		hub:     notifications.NewHub(),
		chatHub: notifications.NewChatHub(),
		hubLog:  observability.NewWSLogger("notification hub", middleware.Logger),
		chatLog: observability.NewWSLogger("chat hub", middleware.Logger),
	}
	s.hubs = []wireableHub{s.hub, s.chatHub}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}
	s.dispatcher = notifications.NewDispatcher(s.notifier, s.hub, s.chatHub)

	if cfg.ElasticsearchURL != "" {
		client, err := search.NewClient(cfg.ElasticsearchURL)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch client: %w", err)
		}
		s.search = client
	}

	s.wireServices()
	return s, nil
}

func newStore(cfg *config.Config) (storage.Store, error) {
	if cfg.StorageDriver == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return storage.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3PublicBaseURL)
	}
	dir := cfg.StorageLocalDir
	if dir == "" {
		dir = "uploads"
	}
	return storage.NewLocalStore(dir)
}

func newMailer(cfg *config.Config) (email.Sender, error) {
	if cfg.EmailDriver == "ses" {
		return email.NewSESSender(cfg.AWSRegion, cfg.EmailFrom, cfg.EmailFromName)
	}
	return email.NewLogSender(middleware.Logger), nil
}

func (s *Server) wireServices() {
	db := s.db
	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	gameRepo := repository.NewGameRepository(db)
	itemRepo := repository.NewTradeItemRepository(db)
	cartRepo := repository.NewCartRepository(db)

	s.authService = service.NewAuthService(userRepo, s.redis, s.mailer, service.AuthConfig{
		JWTSecret:     s.config.JWTSecret,
		AccessTTL:     time.Duration(s.config.AccessTokenTTLMinutes) * time.Minute,
		RefreshTTL:    time.Duration(s.config.RefreshTokenTTLHours) * time.Hour,
		PublicBaseURL: s.config.PublicBaseURL,
	})
	s.notificationService = service.NewNotificationService(repository.NewNotificationRepository(db), s.dispatcher)
	s.userService = service.NewUserService(userRepo, followRepo, postRepo, gameRepo)
	isAdmin := s.userService.IsAdmin

	s.followService = service.NewFollowService(followRepo, userRepo, s.notificationService, s.dispatcher)
	s.postService = service.NewPostService(postRepo, likeRepo, gameRepo, isAdmin, s.dispatcher)
	s.commentService = service.NewCommentService(commentRepo, postRepo, s.notificationService, isAdmin, s.dispatcher)
	s.likeService = service.NewLikeService(likeRepo, postRepo, commentRepo, itemRepo, userRepo, s.notificationService, s.dispatcher)

	var index service.GameIndex
	if s.search != nil {
		index = s.search
	}
	s.gameService = service.NewGameService(gameRepo, index)
	s.marketService = service.NewMarketService(itemRepo, cartRepo, gameRepo, isAdmin)
	s.orderService = service.NewOrderService(db, isAdmin, s.notificationService, s.dispatcher)
	s.chatService = service.NewChatService(repository.NewChatRepository(db), userRepo, followRepo, s.notificationService, s.dispatcher, s.chatHub)
	s.moderationService = service.NewModerationService(service.ModerationDeps{
		Reports:  repository.NewModerationRepository(db),
		Stats:    repository.NewStatsRepository(db),
		Users:    userRepo,
		Posts:    postRepo,
		Comments: commentRepo,
		Items:    itemRepo,
		Carts:    cartRepo,
	}, s.notificationService)
	s.imageService = service.NewImageService(repository.NewImageRepository(db), s.store, s.config.ImageMaxUploadSizeMB)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Images are embedded cross-origin by the web client.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later."))
		},
	}))
}

// NewApp builds the Fiber application with middleware and routes installed.
// It does not start listening, so tests can drive it with app.Test.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Meeple Hall API",
		BodyLimit: (s.imageService.MaxUploadBytes()) + 1<<20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := models.StatusForError(err)
			if status >= fiber.StatusInternalServerError {
				middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error",
					slog.String("path", c.Path()), slog.String("error", err.Error()))
			}
			return models.RespondWithError(c, status, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	// Wire all hubs to the Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					middleware.Logger.Error("failed to start hub wiring",
						slog.String("hub", h.Name()), slog.String("error", err.Error()))
				}
			}()
		}
	}

	s.likeLocks.Start(s.shutdownCtx, 0)

	if s.search != nil {
		if err := s.search.EnsureIndex(ctx); err != nil {
			middleware.Logger.Warn("game search index unavailable, falling back to SQL search",
				slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop wiring goroutines and the lock janitor
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", slog.String("hub", h.Name()), slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
