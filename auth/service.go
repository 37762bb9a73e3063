// Package auth implements account registration, login, token validation and logout.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"broker-calls/apperr"
	"broker-calls/database"
	models "broker-calls/database/models_pkg"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// UserStore is the persistence the auth service needs
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// Session is the result of a successful register or login
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Service handles the account lifecycle
type Service struct {
	users       UserStore
	issuer      *Issuer
	revocations *Revocations
	logger      *zap.Logger
}

// NewService creates a new auth service
func NewService(users UserStore, issuer *Issuer, revocations *Revocations, logger *zap.Logger) *Service {
	return &Service{
		users:       users,
		issuer:      issuer,
		revocations: revocations,
		logger:      logger,
	}
}

// TokenTTL returns the lifetime of issued tokens
func (s *Service) TokenTTL() time.Duration {
	return s.issuer.TTL()
}

// Register creates an account and signs the user in
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if fields := in.Validate(); len(fields) > 0 {
		return nil, apperr.Validation("Validation failed", fields...)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("Failed to register user", err)
	}

	user := &models.User{
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         string(RoleUser),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if database.IsConflict(err) {
			return nil, apperr.Conflict("Email already registered")
		}
		return nil, apperr.Internal("Failed to register user", err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return s.session(user)
}

// Login verifies credentials and issues a token
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Please provide email and password")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.Unauthorized("Incorrect email or password")
		}
		return nil, apperr.Internal("Failed to log in", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Unauthorized("Incorrect email or password")
	}

	return s.session(user)
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		return nil, apperr.Internal("Failed to issue token", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Validate resolves a token to its user. Malformed, expired, revoked tokens
// and tokens of deleted users are all Unauthorized.
func (s *Service) Validate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthorized("Not authorized to access this route")
	}

	claims, err := s.issuer.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized("Token has expired")
		}
		return nil, apperr.Unauthorized("Not authorized to access this route")
	}

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, apperr.Internal("Failed to check token", err)
	}
	if revoked {
		return nil, apperr.Unauthorized("Token has been invalidated")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.Unauthorized("User no longer exists")
		}
		return nil, apperr.Internal("Failed to load user", err)
	}
	return user, nil
}

// Logout revokes the token until it would have expired anyway.
// Tokens that no longer parse have nothing left to revoke.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.issuer.Parse(token)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}

	if err := s.revocations.Revoke(ctx, token, claims.ExpiresAt.Time); err != nil {
		return apperr.Internal("Failed to log out", err)
	}
	s.logger.Info("user logged out", zap.Int64("user_id", claims.UserID))
	return nil
}

// CurrentUser loads the authenticated user's record
func (s *Service) CurrentUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Failed to load user", err)
	}
	return user, nil
}
