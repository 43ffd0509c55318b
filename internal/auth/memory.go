package auth

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MemoryAuthenticator is the zero-configuration Authenticator: accounts
// live in a map for the lifetime of the process. Suitable for the
// default config and for game-service unit tests; not for production,
// which wants the Postgres-backed implementation instead.
type MemoryAuthenticator struct {
	mu       sync.RWMutex
	accounts map[string]string // username -> bcrypt hash
}

// NewMemoryAuthenticator creates an empty in-memory account store.
func NewMemoryAuthenticator() *MemoryAuthenticator {
	return &MemoryAuthenticator{accounts: make(map[string]string)}
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Authenticate implements Authenticator.
func (m *MemoryAuthenticator) Authenticate(ctx context.Context, username, password string) error {
	m.mu.RLock()
	hash, ok := m.accounts[normalize(username)]
	m.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Register implements Authenticator.
func (m *MemoryAuthenticator) Register(ctx context.Context, username, password string) error {
	name := normalize(username)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[name]; exists {
		return ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.accounts[name] = string(hash)
	return nil
}

// Close implements Authenticator. There is nothing to release.
func (m *MemoryAuthenticator) Close() error { return nil }
