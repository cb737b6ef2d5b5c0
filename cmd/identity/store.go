package identity

import (
	"context"
	"time"
)

// User is the public view of an account. It never carries the password digest.
type User struct {
	ID        string
	Email     string
	EmailNorm string
	Name      string
	CreatedAt time.Time
}

// UserAuth pairs a user with its stored password digest for credential checks.
type UserAuth struct {
	User         User
	PasswordHash string
}

// NewUserRecord is the fully prepared row handed to Store.CreateUser.
// The Service validates, normalizes and hashes before a store sees it.
type NewUserRecord struct {
	ID           string
	Email        string
	EmailNorm    string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Store is the identity persistence boundary.
//
// CreateUser must enforce email_norm uniqueness atomically and report
// ConflictError{Field: "email"} on violation. Lookups report NotFoundError.
type Store interface {
	CreateUser(ctx context.Context, rec NewUserRecord) (User, error)
	GetUserAuthByEmail(ctx context.Context, emailNorm string) (UserAuth, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string, now time.Time) error
}
