package domain

import (
	"context"
	"time"
)

// User represents a player account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// AuthSession represents an authenticated credential. At most one is live
// per user: a new login supersedes the rest, which is how a second browser
// context is detected and evicted.
type AuthSession struct {
	Token     string
	UserID    int64
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, username, passwordHash string) (*User, error)
}

// AuthSessionRepository defines the port for credential persistence.
type AuthSessionRepository interface {
	Create(ctx context.Context, userID int64, token, userAgent string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*AuthSession, error)
	Delete(ctx context.Context, token string) error
	// DeleteForUser removes all of the user's credentials except keepToken.
	// Used to supersede prior logins.
	DeleteForUser(ctx context.Context, userID int64, keepToken string) error
	DeleteExpired(ctx context.Context) error
}
