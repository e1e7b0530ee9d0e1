package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicly/civicly/internal/config"
	"github.com/civicly/civicly/internal/identity"
)

func newAuth(t *testing.T) (*Service, *identity.Service, identity.User) {
	t.Helper()
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo)
	user, err := ids.Register(context.Background(), identity.Credentials{Phone: "+44 7700 900123", PIN: "4321"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	cfg := config.Config{
		AppName:         "Civicly",
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	return NewService(cfg, repo), ids, user
}

func TestLoginAndVerify(t *testing.T) {
	svc, _, user := newAuth(t)
	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.ExpiresIn != 60 {
		t.Fatalf("expected 60s expiry, got %d", pair.ExpiresIn)
	}

	got, err := svc.VerifyAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, got.ID)
	}

	// A refresh token is signed with a different secret and is not an access token.
	if _, err := svc.VerifyAccess(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for refresh token, got %v", err)
	}
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	svc, _, user := newAuth(t)
	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := svc.VerifyAccess(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	svc, _, user := newAuth(t)
	ctx := context.Background()
	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	access, exp, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if access == "" || exp != 60 {
		t.Fatalf("unexpected refresh result %q %d", access, exp)
	}

	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected refresh to fail after logout, got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	svc, _, user := newAuth(t)
	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.VerifyAccess(context.Background(), pair.AccessToken+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}
}
