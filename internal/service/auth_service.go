package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"meeplehall/internal/dto"
	"meeplehall/internal/email"
	"meeplehall/internal/middleware"
	"meeplehall/internal/models"
	"meeplehall/internal/repository"
	"meeplehall/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer   = "meeplehall-api"
	TokenAudience = "meeplehall-client"

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeWS      = "ws"

	wsTicketTTL    = 60 * time.Second
	resetTokenTTL  = time.Hour
	errInvalidCred = "Invalid credentials"
)

// TokenPair is returned from register, login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// AuthResult couples a token pair with the signed-in user.
type AuthResult struct {
	TokenPair
	User dto.AccountView `json:"user"`
}

func newAuthResult(pair *TokenPair, user *models.User) (*AuthResult, error) {
	account, err := dto.NewAccountView(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{TokenPair: *pair, User: account}, nil
}

// TokenClaims is the parsed content of an access, refresh, or ws token.
type TokenClaims struct {
	UserID    uint
	Username  string
	JTI       string
	Type      string
	ExpiresAt time.Time
}

type AuthConfig struct {
	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	PublicBaseURL string
}

type RegisterInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type AuthService struct {
	users  repository.UserRepository
	rdb    *redis.Client
	mailer email.Sender
	cfg    AuthConfig
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, rdb *redis.Client, mailer email.Sender, cfg AuthConfig) *AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if mailer == nil {
		mailer = email.NewLogSender(middleware.Logger)
	}
	return &AuthService{users: users, rdb: rdb, mailer: mailer, cfg: cfg, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error(), "username: "+err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error(), "email: "+err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error(), "password: "+err.Error())
	}
	displayName, err := optionalText("display_name", in.DisplayName, 60)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("An account with this email already exists")
	}
	existing, err = s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("This username is taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username:      in.Username,
		Email:         in.Email,
		Password:      string(hashed),
		DisplayName:   displayName,
		AllowMessages: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	msg := email.WelcomeMessage(user.Email, user.Name(), s.cfg.PublicBaseURL)
	if err := s.mailer.Send(ctx, msg); err != nil {
		middleware.Logger.WarnContext(ctx, "welcome email failed", slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return newAuthResult(pair, user)
}

// Login accepts an email or username. Deleted accounts are indistinguishable from unknown ones.
func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, models.NewValidationError("Login and password are required")
	}
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsDeleted {
		return nil, models.NewUnauthorizedError(errInvalidCred)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError(errInvalidCred)
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("This account has been banned")
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return newAuthResult(pair, user)
}

// Refresh exchanges a refresh token for a new pair. Each refresh token works once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if s.rdb != nil {
		_, err := s.rdb.GetDel(ctx, refreshKey(claims.JTI)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, models.NewUnauthorizedError("Refresh token has already been used or revoked")
		}
		if err != nil {
			return nil, models.NewInternalError(fmt.Errorf("consume refresh token: %w", err))
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, models.NewUnauthorizedError(errInvalidCred)
		}
		return nil, err
	}
	if !user.Active() {
		return nil, models.NewUnauthorizedError(errInvalidCred)
	}
	return s.issuePair(ctx, user)
}

// Logout revokes the access token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.parse(accessToken, TokenTypeAccess)
	if err != nil {
		return err
	}
	return s.revoke(ctx, claims)
}

func (s *AuthService) revoke(ctx context.Context, claims *TokenClaims) error {
	if s.rdb == nil || claims.JTI == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, blacklistKey(claims.JTI), "1", ttl).Err(); err != nil {
		return models.NewInternalError(fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

// IsRevoked reports whether the jti has been blacklisted. Without Redis nothing is revoked.
func (s *AuthService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ParseAccessToken validates signature, issuer, audience and type.
func (s *AuthService) ParseAccessToken(token string) (*TokenClaims, error) {
	return s.parse(token, TokenTypeAccess)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return models.NewUnauthorizedError("Current password is incorrect")
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, userID uint, password string) error {
	if err := validation.ValidatePassword(password); err != nil {
		return models.NewValidationError(err.Error(), "password: "+err.Error())
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.users.UpdateFields(ctx, userID, map[string]interface{}{"password": string(hashed)})
}

// RequestPasswordReset never reveals whether the address belongs to an account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, address string) error {
	user, err := s.users.GetByEmail(ctx, address)
	if err != nil {
		return err
	}
	if user == nil || user.IsBanned {
		return nil
	}
	if s.rdb == nil {
		middleware.Logger.WarnContext(ctx, "password reset requested without redis", slog.Uint64("user_id", uint64(user.ID)))
		return nil
	}

	token, err := randomToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.rdb.Set(ctx, resetKey(token), strconv.FormatUint(uint64(user.ID), 10), resetTokenTTL).Err(); err != nil {
		return models.NewInternalError(fmt.Errorf("store reset token: %w", err))
	}
	if err := s.mailer.Send(ctx, email.PasswordResetMessage(user.Email, s.cfg.PublicBaseURL, token)); err != nil {
		return models.NewInternalError(fmt.Errorf("send reset email: %w", err))
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s.rdb == nil || token == "" {
		return models.NewValidationError("Reset token is invalid or expired")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error(), "password: "+err.Error())
	}
	raw, err := s.rdb.GetDel(ctx, resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return models.NewValidationError("Reset token is invalid or expired")
	}
	if err != nil {
		return models.NewInternalError(err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return models.NewInternalError(fmt.Errorf("corrupt reset token value %q", raw))
	}
	return s.setPassword(ctx, uint(id), newPassword)
}

// DeleteAccount soft deletes the caller after re-checking their password and revokes the current token.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uint, password, accessToken string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return models.NewUnauthorizedError("Password is incorrect")
	}
	if err := s.users.SoftDelete(ctx, user.ID); err != nil {
		return err
	}
	if claims, err := s.parse(accessToken, TokenTypeAccess); err == nil {
		return s.revoke(ctx, claims)
	}
	return nil
}

// IssueWSTicket returns a short-lived single-use ticket for the websocket handshake.
// Without Redis a signed 60s token is issued instead.
func (s *AuthService) IssueWSTicket(ctx context.Context, userID uint) (string, error) {
	if s.rdb == nil {
		return s.sign(userID, "", TokenTypeWS, wsTicketTTL)
	}
	ticket := uuid.NewString()
	if err := s.rdb.Set(ctx, wsTicketKey(ticket), strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return "", models.NewInternalError(fmt.Errorf("store ws ticket: %w", err))
	}
	return ticket, nil
}

// RedeemWSTicket consumes a ticket and returns its user id.
func (s *AuthService) RedeemWSTicket(ctx context.Context, ticket string) (uint, error) {
	if ticket == "" {
		return 0, models.NewUnauthorizedError("Missing websocket ticket")
	}
	if s.rdb == nil {
		claims, err := s.parse(ticket, TokenTypeWS)
		if err != nil {
			return 0, err
		}
		return claims.UserID, nil
	}
	raw, err := s.rdb.GetDel(ctx, wsTicketKey(ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, models.NewUnauthorizedError("Invalid or expired websocket ticket")
	}
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewUnauthorizedError("Invalid or expired websocket ticket")
	}
	return uint(id), nil
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.sign(user.ID, user.Username, TokenTypeAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refreshJTI := uuid.NewString()
	refresh, err := s.signWithJTI(user.ID, user.Username, TokenTypeRefresh, s.cfg.RefreshTTL, refreshJTI)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, refreshKey(refreshJTI), strconv.FormatUint(uint64(user.ID), 10), s.cfg.RefreshTTL).Err(); err != nil {
			return nil, models.NewInternalError(fmt.Errorf("store refresh token: %w", err))
		}
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.now().Add(s.cfg.AccessTTL),
		TokenType:    "Bearer",
	}, nil
}

func (s *AuthService) sign(userID uint, username, typ string, ttl time.Duration) (string, error) {
	return s.signWithJTI(userID, username, typ, ttl, uuid.NewString())
}

func (s *AuthService) signWithJTI(userID uint, username, typ string, ttl time.Duration, jti string) (string, error) {
	if s.cfg.JWTSecret == "" {
		return "", errors.New("JWT secret not configured")
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"typ":      typ,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      jti,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) parse(raw, wantType string) (*TokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, models.NewUnauthorizedError("Missing token")
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return nil, models.NewUnauthorizedError("Wrong token type")
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return nil, models.NewUnauthorizedError("Invalid token subject")
	}
	out := &TokenClaims{UserID: uint(id), Type: wantType}
	out.Username, _ = claims["username"].(string)
	out.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func refreshKey(jti string) string     { return "refresh:" + jti }
func blacklistKey(jti string) string   { return "blacklist:" + jti }
func resetKey(token string) string     { return "reset:" + token }
func wsTicketKey(ticket string) string { return "ws_ticket:" + ticket }
