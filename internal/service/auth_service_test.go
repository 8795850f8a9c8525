package service

import (
	"context"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-claim-service/internal/auth"
	"github.com/spec-kit/expense-claim-service/internal/config"
	"github.com/spec-kit/expense-claim-service/internal/domain"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *fakeTokenStore) {
	t.Helper()
	userRepo := newFakeUserRepo()
	tokenStore := newFakeTokenStore()
	cfg := config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		RefreshTokenTTLHours:  1,
		BcryptCost:            4,
	}
	svc := NewAuthService(cfg, AuthDependencies{
		UserRepo:   userRepo,
		TokenStore: tokenStore,
		Tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		Dispatcher: &recordingDispatcher{},
		Logger:     zap.NewNop(),
	})
	return svc, userRepo, tokenStore
}

func seedCredentialed(t *testing.T, repo *fakeUserRepo, employeeID, email, password string, status domain.UserStatus) *domain.User {
	t.Helper()
	hashed, err := auth.HashPassword(password, 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &domain.User{
		EmployeeID:   employeeID,
		Email:        email,
		Name:         "Login User",
		PasswordHash: hashed,
		Role:         domain.RoleWorker,
		Status:       status,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return user
}

func TestLoginByEmployeeID(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	seedCredentialed(t, repo, "HFA-W-1001", "w@example.com", "swordfish", domain.UserStatusActive)

	// handle without "@" is an employee id, matched case-insensitively
	result, err := svc.LoginWithHandle(context.Background(), "hfa-w-1001", "swordfish", domain.RequestOrigin{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("token pair missing")
	}
	if result.User.LastLoginAt == nil {
		t.Fatal("last login not stamped")
	}
}

func TestLoginByEmail(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	seedCredentialed(t, repo, "HFA-W-1001", "w@example.com", "swordfish", domain.UserStatusActive)

	if _, err := svc.LoginWithHandle(context.Background(), "W@Example.COM", "swordfish", domain.RequestOrigin{}); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	seedCredentialed(t, repo, "HFA-W-1001", "w@example.com", "swordfish", domain.UserStatusActive)

	_, unknownErr := svc.LoginWithHandle(context.Background(), "nobody@example.com", "swordfish", domain.RequestOrigin{})
	_, badPassErr := svc.LoginWithHandle(context.Background(), "w@example.com", "wrong", domain.RequestOrigin{})

	if unknownErr == nil || badPassErr == nil {
		t.Fatal("expected both logins to fail")
	}
	if unknownErr.Error() != badPassErr.Error() {
		t.Fatalf("failure messages differ: %q vs %q", unknownErr, badPassErr)
	}
	if status := httpStatus(t, badPassErr); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestLoginInactiveAccountForbidden(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	seedCredentialed(t, repo, "HFA-W-1001", "w@example.com", "swordfish", domain.UserStatusSuspended)

	_, err := svc.LoginWithHandle(context.Background(), "w@example.com", "swordfish", domain.RequestOrigin{})
	if err == nil {
		t.Fatal("expected forbidden for suspended account")
	}
	if status := httpStatus(t, err); status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo, store := newTestAuthService(t)
	seedCredentialed(t, repo, "HFA-W-1001", "w@example.com", "swordfish", domain.UserStatusActive)

	login, err := svc.LoginWithHandle(context.Background(), "w@example.com", "swordfish", domain.RequestOrigin{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// the old token is single-use
	if _, err := svc.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("expected rotated token to be revoked")
	}
	if _, err := store.Lookup(context.Background(), refreshed.RefreshToken); err != nil {
		t.Fatalf("new token missing from store: %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, repo, store := newTestAuthService(t)
	user := seedCredentialed(t, repo, "HFA-W-1001", "w@example.com", "swordfish", domain.UserStatusActive)

	login, _ := svc.LoginWithHandle(context.Background(), "w@example.com", "swordfish", domain.RequestOrigin{})
	if err := svc.Logout(context.Background(), user, login.RefreshToken, domain.RequestOrigin{}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := store.Lookup(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("token should be revoked after logout")
	}
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)
	user := seedCredentialed(t, repo, "HFA-W-1001", "w@example.com", "swordfish", domain.UserStatusActive)

	if err := svc.ChangePassword(context.Background(), user, "wrong", "new-password-1", domain.RequestOrigin{}); err == nil {
		t.Fatal("expected unauthorized for wrong current password")
	}
	if err := svc.ChangePassword(context.Background(), user, "swordfish", "short", domain.RequestOrigin{}); err == nil {
		t.Fatal("expected validation error for short password")
	}
	if err := svc.ChangePassword(context.Background(), user, "swordfish", "new-password-1", domain.RequestOrigin{}); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.LoginWithHandle(context.Background(), "w@example.com", "new-password-1", domain.RequestOrigin{}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
