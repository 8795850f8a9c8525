package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/expense-claim-service/internal/auth"
	"github.com/spec-kit/expense-claim-service/internal/config"
	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/repository"
	apperrors "github.com/spec-kit/expense-claim-service/pkg/util"
)

// AuthService handles credential verification and token lifecycle.
type AuthService struct {
	users      repository.UserRepository
	tokens     repository.RefreshTokenStore
	tm         *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuthConfig
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	TokenStore repository.RefreshTokenStore
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// LoginResult carries the issued token pair and the authenticated user.
type LoginResult struct {
	User             *domain.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.TokenStore,
		tm:         deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		cfg:        cfg,
	}
}

// TokenManager exposes the underlying token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tm
}

// LoginWithHandle authenticates by employee id or email. A handle containing
// "@" is treated as an email, otherwise as an employee id. Unknown accounts
// and bad passwords yield the same generic failure.
func (s *AuthService) LoginWithHandle(ctx context.Context, handle, password string, origin domain.RequestOrigin) (*LoginResult, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || password == "" {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(handle, "@") {
		user, err = s.users.GetByEmail(ctx, domain.NormalizeEmail(handle))
	} else {
		user, err = s.users.GetByEmployeeID(ctx, domain.NormalizeEmployeeID(handle))
	}
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewForbidden("account is not active")
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("failed to stamp last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventUserLoggedIn,
		EntityType: "user",
		EntityID:   user.ID,
		Actor:      actorRef(user),
		Origin:     origin,
		Payload:    events.UserChangedPayload{EmployeeID: user.EmployeeID, Role: user.Role},
	})
	return result, nil
}

// Refresh exchanges a valid refresh token for a fresh token pair. The old
// refresh token is revoked; rotation is single-use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	userID, err := s.tokens.Lookup(ctx, refreshToken)
	if err != nil {
		if err == repository.ErrTokenNotFound {
			return nil, apperrors.NewUnauthorized("invalid refresh token")
		}
		return nil, apperrors.MapError(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewUnauthorized("invalid refresh token")
		}
		return nil, apperrors.MapError(err)
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.NewForbidden("account is not active")
	}

	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		s.logger.Warn("failed to revoke rotated refresh token", zap.Error(err))
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes the refresh token and records the logout.
func (s *AuthService) Logout(ctx context.Context, actor *domain.User, refreshToken string, origin domain.RequestOrigin) error {
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
			s.logger.Warn("failed to revoke refresh token", zap.Error(err))
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventUserLoggedOut,
		EntityType: "user",
		EntityID:   actor.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload:    events.UserChangedPayload{EmployeeID: actor.EmployeeID},
	})
	return nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, current, next string, origin domain.RequestOrigin) error {
	if len(next) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", map[string]any{"new_password": "too short"})
	}
	if err := auth.ComparePassword(actor.PasswordHash, current); err != nil {
		return apperrors.NewUnauthorized("current password is incorrect")
	}

	hashed, err := auth.HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return apperrors.MapError(err)
	}
	actor.PasswordHash = hashed
	if err := s.users.Update(ctx, actor); err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventPasswordChanged,
		EntityType: "user",
		EntityID:   actor.ID,
		Actor:      actorRef(actor),
		Origin:     origin,
		Payload:    events.UserChangedPayload{EmployeeID: actor.EmployeeID},
	})
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*LoginResult, error) {
	accessToken, accessExp, err := s.tm.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	refreshToken := uuid.NewString()
	refreshTTL := time.Duration(s.cfg.RefreshTokenTTLHours) * time.Hour
	if refreshTTL <= 0 {
		refreshTTL = 168 * time.Hour
	}
	if err := s.tokens.Save(ctx, refreshToken, user.ID, refreshTTL); err != nil {
		return nil, apperrors.MapError(err)
	}

	return &LoginResult{
		User:             user,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: time.Now().Add(refreshTTL),
	}, nil
}

func (s *AuthService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
