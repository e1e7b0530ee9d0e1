package identity

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)

	ctx := context.Background()
	user, err := svc.Register(ctx, Credentials{Phone: "+44 7700 900123", PIN: "1234", DisplayName: "Sam"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Phone != "+447700900123" {
		t.Fatalf("expected normalized phone, got %s", user.Phone)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Phone: "+447700900123", PIN: "1234"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, authed.ID)
	}
	if authed.LastLogin == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestAuthenticateWrongPIN(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Phone: "07700900123", PIN: "1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Phone: "07700900123", PIN: "9999"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Phone: "07000000000", PIN: "1234"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown phone, got %v", err)
	}
}

func TestRegisterDuplicatePhone(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Phone: "07700900123", PIN: "1234"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Phone: "07700 900 123", PIN: "5678"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate phone to be rejected, got %v", err)
	}
}

func TestExistsAndByPhone(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Phone: "07700900123", PIN: "1234"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ok, err := svc.Exists(ctx, user.ID)
	if err != nil || !ok {
		t.Fatalf("expected user to exist, got %v (%v)", ok, err)
	}
	ok, err = svc.Exists(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing user, got %v (%v)", ok, err)
	}

	found, err := svc.ByPhone(ctx, "0770 090 0123")
	if err != nil {
		t.Fatalf("by phone: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected %s, got %s", user.ID, found.ID)
	}
}
