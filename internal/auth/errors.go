package auth

import "errors"

var (
	// Token validation failures are distinct because callers react
	// differently: malformed/invalid reject outright, expired points the
	// client at the refresh flow. The HTTP layer collapses all three to 401.
	ErrTokenMalformed        = errors.New("auth: token malformed")
	ErrTokenSignatureInvalid = errors.New("auth: token signature invalid")
	ErrTokenExpired          = errors.New("auth: token expired")

	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNotFound           = errors.New("auth: not found")
	ErrInvalidInput       = errors.New("auth: invalid input")
)
