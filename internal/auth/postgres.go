package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// PostgresAuthenticator stores accounts in a "accounts" table reached
// through a pgx pool. Grounded on the teacher's internal/db.DB: same
// New/Close/pool shape, swapped from the teacher's SHA1+Base64 hash
// (an L2J protocol compatibility requirement that doesn't apply here)
// to bcrypt.
type PostgresAuthenticator struct {
	pool *pgxpool.Pool
}

// NewPostgresAuthenticator connects to dsn and pings it before
// returning, so a bad connection string fails fast at startup rather
// than on the first login.
func NewPostgresAuthenticator(ctx context.Context, dsn string) (*PostgresAuthenticator, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to auth database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging auth database: %w", err)
	}
	return &PostgresAuthenticator{pool: pool}, nil
}

// Pool returns the underlying pgx pool. RunMigrations does not use it;
// it opens its own connection from a DSN.
func (p *PostgresAuthenticator) Pool() *pgxpool.Pool { return p.pool }

// Authenticate implements Authenticator.
func (p *PostgresAuthenticator) Authenticate(ctx context.Context, username, password string) error {
	name := normalize(username)

	var hash string
	err := p.pool.QueryRow(ctx,
		`SELECT password_hash FROM accounts WHERE username = $1`, name,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("querying account %q: %w", name, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Register implements Authenticator.
func (p *PostgresAuthenticator) Register(ctx context.Context, username, password string) error {
	name := normalize(username)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password for %q: %w", name, err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES ($1, $2)`,
		name, string(hash),
	)
	if err != nil {
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23505" { // unique_violation
			return ErrUserExists
		}
		return fmt.Errorf("creating account %q: %w", name, err)
	}
	return nil
}

// Close implements Authenticator.
func (p *PostgresAuthenticator) Close() error {
	p.pool.Close()
	return nil
}
