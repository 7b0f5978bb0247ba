package server

import (
	"meeplehall/internal/models"
	"meeplehall/internal/service"

	"github.com/gofiber/fiber/v2"
)

type loginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create an account and sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} models.ApiResponse[service.AuthResult]
// @Failure 400 {object} models.ApiResponse[any]
// @Failure 409 {object} models.ApiResponse[any]
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	res, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond(c, fiber.StatusCreated, res, "Welcome to Meeple Hall")
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate with email or username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{login=string,password=string} true "Credentials"
// @Success 200 {object} models.ApiResponse[service.AuthResult]
// @Failure 401 {object} models.ApiResponse[any]
// @Failure 403 {object} models.ApiResponse[any]
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	login := req.Login
	if login == "" {
		login = req.Email
	}
	if login == "" {
		login = req.Username
	}
	if login == "" {
		return models.HandleError(c, models.NewValidationError("Email or username is required", "login is required"))
	}
	res, err := s.authService.Login(c.UserContext(), login, req.Password)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, res)
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh tokens
// @Description Exchange a refresh token for a new token pair. Refresh tokens are single-use.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh_token=string} true "Refresh token"
// @Success 200 {object} models.ApiResponse[service.TokenPair]
// @Failure 401 {object} models.ApiResponse[any]
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	pair, err := s.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, pair)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[any]
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals(localAccessToken).(string)
	if err := s.authService.Logout(c.UserContext(), token); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Logged out")
}

// ChangePassword handles PUT /api/auth/password
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{current_password=string,new_password=string} true "Passwords"
// @Success 200 {object} models.ApiResponse[any]
// @Failure 400 {object} models.ApiResponse[any]
// @Failure 401 {object} models.ApiResponse[any]
// @Router /auth/password [put]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	if err := s.authService.ChangePassword(c.UserContext(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Password updated")
}

// ForgotPassword handles POST /api/auth/password/forgot
// @Summary Request a password reset
// @Description Always answers 202 so the endpoint cannot be used to probe for accounts
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Account email"
// @Success 202 {object} models.ApiResponse[any]
// @Router /auth/password/forgot [post]
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	if err := s.authService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusAccepted, nil, "If the address is registered, a reset link is on its way")
}

// ResetPassword handles POST /api/auth/password/reset
// @Summary Reset a password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{token=string,new_password=string} true "Reset token and new password"
// @Success 200 {object} models.ApiResponse[any]
// @Failure 400 {object} models.ApiResponse[any]
// @Router /auth/password/reset [post]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"new_password" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	if err := s.authService.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Password has been reset")
}

// DeleteAccount handles DELETE /api/auth/account
// @Summary Delete my account
// @Description Soft-deletes the account. The email and username become available again.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{password=string} true "Current password"
// @Success 200 {object} models.ApiResponse[any]
// @Failure 401 {object} models.ApiResponse[any]
// @Router /auth/account [delete]
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password" validate:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return models.HandleError(c, err)
	}
	token, _ := c.Locals(localAccessToken).(string)
	if err := s.authService.DeleteAccount(c.UserContext(), currentUserID(c), req.Password, token); err != nil {
		return models.HandleError(c, err)
	}
	return models.Respond[any](c, fiber.StatusOK, nil, "Account deleted")
}

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a WebSocket ticket
// @Description Returns a single-use ticket valid for 60 seconds, passed as ?ticket= on the upgrade request
// @Tags realtime
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ApiResponse[object]
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.authService.IssueWSTicket(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.HandleError(c, err)
	}
	return models.RespondOK(c, fiber.Map{"ticket": ticket, "expires_in": 60})
}
