//go:build integration

package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres brings up a throwaway Postgres 16 container and returns
// a DSN for it, mirroring the teacher's internal/db TestMain container
// setup but scoped per-test instead of package-wide (this package has
// few enough tests that a shared TestMain pool isn't worth the extra
// moving part).
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
}

func TestPostgresAuthenticatorRegisterThenAuthenticate(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)
	require.NoError(t, RunMigrations(ctx, dsn))

	a, err := NewPostgresAuthenticator(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Register(ctx, "Iris", "correct-password"))
	require.NoError(t, a.Authenticate(ctx, "iris", "correct-password")) // normalized to lowercase
	require.ErrorIs(t, a.Authenticate(ctx, "iris", "wrong-password"), ErrInvalidCredentials)
}

func TestPostgresAuthenticatorRejectsDuplicateRegistration(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)
	require.NoError(t, RunMigrations(ctx, dsn))

	a, err := NewPostgresAuthenticator(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Register(ctx, "dup", "p1"))
	require.ErrorIs(t, a.Register(ctx, "dup", "p2"), ErrUserExists)
}

func TestPostgresAuthenticatorUnknownUserFails(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t)
	require.NoError(t, RunMigrations(ctx, dsn))

	a, err := NewPostgresAuthenticator(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.ErrorIs(t, a.Authenticate(ctx, "nobody", "whatever"), ErrInvalidCredentials)
}
