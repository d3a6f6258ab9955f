package auth

import (
	"context"
	"time"
)

// User is an account row from the relational store. Password hashes never
// leave this package.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// DirectoryStore describes the read-only user/role/permission lookups this
// core needs. Role and permission administration is owned elsewhere; no
// writes happen through this interface.
type DirectoryStore interface {
	// FindUserByEmail returns the user with the given (lower-cased) email,
	// or ErrNotFound.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// FindUser returns the user with the given id, or ErrNotFound.
	FindUser(ctx context.Context, id string) (*User, error)
	// UserRoles returns the names of roles currently assigned to the user.
	// An empty slice is a valid result.
	UserRoles(ctx context.Context, userID string) ([]string, error)
	// PermissionsForRoles returns the distinct permission keys owned by any
	// of the named roles.
	PermissionsForRoles(ctx context.Context, roles []string) ([]string, error)
}
