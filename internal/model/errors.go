package model

import "errors"

var (
	// ErrNotFound marks a missing user or message. In a dispatch it
	// surfaces as an unknown-participant condition.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken marks a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken marks a registration against an existing username.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrInvalidCredentials marks a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMalformedPayload marks a client payload missing required
	// routing fields. It is reported back to the sender; the session
	// stays open.
	ErrMalformedPayload = errors.New("malformed payload")
)

var (
	ErrTokenRevoked  = errors.New("refresh token revoked")
	ErrTokenExpired  = errors.New("refresh token expired")
	ErrTokenMismatch = errors.New("refresh token mismatch")
)
