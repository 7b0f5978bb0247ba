package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"meeplehall/internal/keylock"
	"meeplehall/internal/middleware"
	"meeplehall/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localAccessToken = "accessToken"

// AuthRequired returns the authentication middleware. WebSocket paths must
// present a single-use ticket; everything else uses a Bearer access token.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

		if ticket := c.Query("ticket"); ticket != "" {
			userID, err := s.authService.RedeemWSTicket(ctx, ticket)
			if err == nil {
				return s.admit(c, userID)
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}
		if isWSPath {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("WebSocket ticket required"))
		}

		token := bearerToken(c)
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		claims, err := s.authService.ParseAccessToken(token)
		if err != nil {
			return models.HandleError(c, err)
		}
		revoked, err := s.authService.IsRevoked(ctx, claims.JTI)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "token revocation check failed", slog.String("error", err.Error()))
		}
		if revoked {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}
		c.Locals(localAccessToken, token)
		return s.admit(c, claims.UserID)
	}
}

// admit loads the account behind a verified credential and stores its id.
// Tokens of deleted accounts stop working at once; banned accounts get 403.
func (s *Server) admit(c *fiber.Ctx, userID uint) error {
	user, err := s.userService.GetByID(c.UserContext(), userID)
	if err != nil || user.IsDeleted {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Account not found"))
	}
	if user.IsBanned {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Account is banned"))
	}

	c.Locals("userID", userID)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
	return c.Next()
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := s.userService.IsAdmin(c.UserContext(), currentUserID(c))
		if err != nil {
			return models.HandleError(c, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// requireFeature answers 404 while the named feature flag is off for the caller.
func (s *Server) requireFeature(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(name, s.optionalUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Feature", name))
		}
		return c.Next()
	}
}

func wsUpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// withLikeLock runs fn while holding the keyed semaphore for one user's like
// state on one item. A request that cannot get the key within the wait bound
// fails with BUSY.
func (s *Server) withLikeLock(c *fiber.Ctx, itemType models.LikeItemType, itemID uint, fn func(ctx context.Context) (*models.LikeState, error)) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	release, err := s.likeLocks.Acquire(ctx, keylock.LikeKey(userID, string(itemType), itemID))
	if err != nil {
		if !errors.Is(err, keylock.ErrBusy) {
			middleware.Logger.WarnContext(ctx, "like lock acquire failed", slog.String("error", err.Error()))
		}
		return models.HandleError(c, models.NewBusyError("A like request for this item is already in progress"))
	}
	defer release()

	state, err := fn(ctx)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, state)
}
