// Package service holds the business rules that sit between the HTTP
// handlers and the repositories:
//
//	AuthHandler     → AuthService        → UserRepository
//	FootballHandler → PredictionService  → PredictionRepository, MatchSource
//	                → EvaluationService  → PredictionRepository, UserRepository, MatchSource
//	                → LeaderboardService → UserRepository
//
// Services never read HTTP requests or set cookies. They return domain
// values and apperror errors; the handler layer picks status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/matchday-predictor/internal/apperror"
	"github.com/sakif/matchday-predictor/internal/auth"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/repository"
)

const maxPinBytes = 72

// AuthService handles register-or-login.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt PIN hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and respond in one step. Created is true when this call registered
// the user.
type AuthResult struct {
	User    *model.User
	Token   string
	Created bool
}

// RegisterOrLogin authenticates username/pin, creating the account on the
// first attempt for an unknown username.
//
// There is no separate sign-up step: whoever first claims a username sets
// its PIN. Later attempts must present the same PIN or get
// apperror.ErrUnauthorized. If the store somehow holds more than one record
// for the username, the first one returned is authoritative.
func (s *AuthService) RegisterOrLogin(ctx context.Context, username, pin string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if pin == "" {
		return nil, apperror.ValidationFailed("pin", "pin is required")
	}
	if len(pin) > maxPinBytes {
		return nil, apperror.ValidationFailed("pin", fmt.Sprintf("pin must be %d bytes or fewer", maxPinBytes))
	}

	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if len(existing) == 0 {
		return s.register(ctx, username, pin)
	}

	user := existing[0]
	if err := s.passwords.Verify(user.Pin, pin); err != nil {
		if errors.Is(err, auth.ErrPinMismatch) {
			s.logger.Info("login rejected", slog.String("userID", user.ID))
			return nil, apperror.Unauthorized("Invalid Pin")
		}
		return nil, fmt.Errorf("service/auth: verifying pin for user %s: %w", user.ID, err)
	}

	return s.issue(&user, false)
}

func (s *AuthService) register(ctx context.Context, username, pin string) (*AuthResult, error) {
	hashed, err := s.passwords.Hash(pin)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing pin: %w", err)
	}

	user, err := s.users.Create(ctx, username, hashed)
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user, true)
}

func (s *AuthService) issue(user *model.User, created bool) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token, Created: created}, nil
}

// CurrentUser returns the user a validated token refers to. Used by the
// auth-check endpoint after RequireAuth has put the ID in the context.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("user_id", "user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken is a thin delegation to TokenService.Validate so callers
// only need the service package.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
