package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryAuthenticatorRegisterThenAuthenticate(t *testing.T) {
	a := NewMemoryAuthenticator()
	ctx := context.Background()

	require.NoError(t, a.Register(ctx, "Nova", "hunter2"))
	require.NoError(t, a.Authenticate(ctx, "nova", "hunter2"))
	require.ErrorIs(t, a.Authenticate(ctx, "nova", "wrong"), ErrInvalidCredentials)
}

func TestMemoryAuthenticatorUnknownUser(t *testing.T) {
	a := NewMemoryAuthenticator()
	require.ErrorIs(t, a.Authenticate(context.Background(), "ghost", "x"), ErrInvalidCredentials)
}

func TestMemoryAuthenticatorRejectsDuplicateRegistration(t *testing.T) {
	a := NewMemoryAuthenticator()
	ctx := context.Background()

	require.NoError(t, a.Register(ctx, "dup", "p1"))
	require.ErrorIs(t, a.Register(ctx, "dup", "p2"), ErrUserExists)
}

func TestMemoryAuthenticatorUsernamesAreCaseInsensitive(t *testing.T) {
	a := NewMemoryAuthenticator()
	ctx := context.Background()

	require.NoError(t, a.Register(ctx, "MixedCase", "pw"))
	require.NoError(t, a.Authenticate(ctx, "mixedcase", "pw"))
	require.ErrorIs(t, a.Register(ctx, "mixedCASE", "pw2"), ErrUserExists)
}
