package identity

import (
	"errors"
	"time"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a phone number twice.
	ErrUserExists = errors.New("user already registered")
	// ErrInvalidCredentials covers a wrong PIN or unknown phone at login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents a registered platform member. Wallets reference users by ID.
type User struct {
	ID           string
	Phone        string
	DisplayName  string
	PINHash      []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Credentials request structure.
type Credentials struct {
	Phone       string
	PIN         string
	DisplayName string
}
