// Package auth models the identity-storage collaborator the game
// service delegates to on login: an Authenticator with three
// operations (authenticate, register, and close). It is deliberately
// kept separate from the realtime runtime — the teacher's internal/db
// plays the same external-collaborator role for account storage,
// separate from its gameserver packet handling.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidCredentials is returned by Authenticate when the username
// is unknown or the password does not match.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrUserExists is returned by Register when the username is already
// taken.
var ErrUserExists = errors.New("auth: user already exists")

// Authenticator is the external collaborator the game service's Login
// handler delegates to. Implementations own their own storage; the
// game service never touches it directly.
type Authenticator interface {
	// Authenticate reports whether username/password is a valid
	// credential pair. Returns ErrInvalidCredentials on mismatch, never
	// a bare false.
	Authenticate(ctx context.Context, username, password string) error

	// Register creates a new account. Returns ErrUserExists if the
	// username is taken.
	Register(ctx context.Context, username, password string) error

	// Close releases any resources the implementation holds open
	// (connection pools, file handles). Safe to call once at shutdown.
	Close() error
}
