package server

import (
	"context"
	"time"

	"meeplehall/internal/featureflags"
	"meeplehall/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/swagger"
)

// SetupRoutes configures all routes for the application. Public routes and
// the websocket endpoints come first; the protected group installs
// AuthRequired for every /api route registered after it.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Meeple Hall Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	marketplace := s.requireFeature(featureflags.Marketplace)
	chat := s.requireFeature(featureflags.Chat)
	uploads := s.requireFeature(featureflags.ImageUploads)

	// Media is served outside the envelope.
	app.Get("/media/i/:hash/:size.webp", s.ServeImage)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", middleware.RateLimit(s.redis, 30, 5*time.Minute, "refresh"), s.Refresh)
	auth.Post("/password/forgot", middleware.RateLimit(s.redis, 3, 15*time.Minute, "password_reset"), s.ForgotPassword)
	auth.Post("/password/reset", middleware.RateLimit(s.redis, 10, 15*time.Minute, "password_reset_confirm"), s.ResetPassword)

	// WebSocket endpoints authenticate once, with a ticket.
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", wsUpgradeRequired, s.AuthRequired(), s.WebsocketHandler())
	api.Get("/ws/chat", wsUpgradeRequired, chat, s.AuthRequired(), s.WebSocketChatHandler())

	// Public browse routes. Numeric constraints let /users/me and friends
	// fall through to the protected group.
	api.Get("/users/search", middleware.RateLimit(s.redis, 30, time.Minute, "user_search"), s.SearchUsers)
	api.Get("/users/:id<int>", s.GetUserProfile)
	api.Get("/users/:id<int>/posts", s.GetUserPosts)
	api.Get("/users/:id<int>/followers", s.GetFollowers)
	api.Get("/users/:id<int>/following", s.GetFollowing)

	api.Get("/posts", s.GetPosts)
	api.Get("/posts/search", middleware.RateLimit(s.redis, 10, time.Minute, "search"), s.SearchPosts)
	api.Get("/posts/:id<int>/comments", s.GetComments)
	api.Get("/posts/:id<int>", s.GetPost)

	api.Get("/games", s.GetGames)
	api.Get("/games/search", s.SearchGames)
	api.Get("/games/:id<int>/posts", s.GetGamePosts)
	api.Get("/games/:idOrSlug", s.GetGame)

	api.Get("/market/listings", marketplace, s.GetListings)
	api.Get("/market/listings/:id<int>", marketplace, s.GetListing)

	api.Get("/images/:hash", s.GetImage)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	auth = protected.Group("/auth")
	auth.Post("/logout", s.Logout)
	auth.Put("/password", s.ChangePassword)
	auth.Delete("/account", s.DeleteAccount)

	users := protected.Group("/users")
	users.Get("/me", s.GetMe)
	users.Put("/me", s.UpdateMe)

	follows := protected.Group("/follows")
	follows.Get("/:id/status", s.GetFollowStatus)
	follows.Post("/:id/toggle", middleware.RateLimit(s.redis, 30, time.Minute, "follow"), s.ToggleFollow)
	follows.Post("/:id", middleware.RateLimit(s.redis, 30, time.Minute, "follow"), s.Follow)
	follows.Delete("/:id", s.Unfollow)

	posts := protected.Group("/posts")
	posts.Get("/feed", s.GetFollowingFeed)
	posts.Post("/", middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/comments", middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	comments := protected.Group("/comments")
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)

	likes := protected.Group("/likes")
	likes.Post("/toggle", s.ToggleLike)
	likes.Post("/", s.Like)
	likes.Delete("/", s.Unlike)
	likes.Get("/:itemType/:itemId", s.GetLikeState)
	likes.Post("/:itemType/:itemId", s.LikeByPath)
	likes.Delete("/:itemType/:itemId", s.UnlikeByPath)

	games := protected.Group("/games")
	games.Put("/:id/rating", s.RateGame)
	games.Delete("/:id/rating", s.DeleteRating)

	market := protected.Group("/market", marketplace)
	market.Get("/my-listings", s.GetMyListings)
	market.Post("/listings", middleware.RateLimit(s.redis, 20, time.Hour, "create_listing"), s.CreateListing)
	market.Put("/listings/:id", s.UpdateListing)
	market.Delete("/listings/:id", s.RemoveListing)

	cart := protected.Group("/cart", marketplace)
	cart.Get("/", s.GetCart)
	cart.Post("/items", s.AddToCart)
	cart.Put("/items/:itemId", s.UpdateCartItem)
	cart.Delete("/items/:itemId", s.RemoveFromCart)
	cart.Delete("/", s.ClearCart)

	orders := protected.Group("/orders", marketplace)
	orders.Post("/checkout", middleware.RateLimit(s.redis, 5, time.Minute, "checkout"), s.Checkout)
	orders.Get("/", s.GetMyOrders)
	orders.Get("/sales", s.GetMySales)
	orders.Get("/:id", s.GetOrder)
	orders.Patch("/:id/status", s.UpdateOrderStatus)

	conversations := protected.Group("/conversations", chat)
	conversations.Post("/", middleware.RateLimit(s.redis, 10, time.Minute, "create_conversation"), s.CreateConversation)
	conversations.Get("/", s.GetConversations)
	conversations.Get("/unread-count", s.GetUnreadMessages)
	conversations.Get("/:id/messages", s.GetMessages)
	conversations.Post("/:id/messages", middleware.RateLimit(s.redis, 15, time.Minute, "send_chat"), s.SendMessage)
	conversations.Post("/:id/read", s.MarkConversationRead)
	conversations.Delete("/:id", s.LeaveConversation)
	conversations.Get("/:id", s.GetConversation)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadNotificationCount)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Post("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)

	protected.Post("/reports", middleware.RateLimit(s.redis, 5, 10*time.Minute, "report"), s.CreateReport)
	protected.Post("/images", uploads, middleware.RateLimit(s.redis, 10, time.Minute, "image_upload"), s.UploadImage)
	protected.Get("/feature-flags", s.GetMyFeatureFlags)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/dashboard", s.GetDashboard)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Put("/feature-flags/:name", s.SetFeatureFlag)
	admin.Get("/users", s.AdminListUsers)
	admin.Post("/users/:id/ban", s.BanUser)
	admin.Post("/users/:id/unban", s.UnbanUser)
	admin.Post("/users/:id/promote", s.PromoteAdmin)
	admin.Post("/users/:id/demote", s.DemoteAdmin)
	admin.Post("/users/:id/restore", s.RestoreUser)
	admin.Delete("/users/:id", s.AdminDeleteUser)
	admin.Get("/reports", s.GetReports)
	admin.Post("/reports/:id/resolve", s.ResolveReport)
	admin.Get("/orders", s.AdminListOrders)
	admin.Post("/games", s.CreateGame)
	admin.Post("/games/reindex", s.ReindexGames)
	admin.Put("/games/:id", s.UpdateGame)
	admin.Delete("/games/:id", s.DeleteGame)
}

// HealthCheck is an alias for ReadinessCheck under /api.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: without
// it the server still serves a single instance.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": serviceName,
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
