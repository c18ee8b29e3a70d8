// Package postgres persists member accounts with pgx. The UNIQUE constraint
// on email is the real guard against duplicate concurrent signups; the
// engine's pre-check is only a fast path.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	authgate "github.com/pressops/authgate"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS members (
    id            BIGSERIAL PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Provider is a pgx-backed AccountProvider. The pool is owned by the caller.
type Provider struct {
	pool *pgxpool.Pool
}

// NewProvider wraps an existing connection pool.
func NewProvider(pool *pgxpool.Pool) *Provider {
	return &Provider{pool: pool}
}

// Migrate creates the members table if it does not exist.
func (p *Provider) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate members table: %w", err)
	}
	return nil
}

// GetByEmail returns the account for email or ErrAccountNotFound.
func (p *Provider) GetByEmail(ctx context.Context, email string) (authgate.AccountRecord, error) {
	var record authgate.AccountRecord
	err := p.pool.QueryRow(ctx,
		`SELECT email, password_hash, role FROM members WHERE email = $1`, email,
	).Scan(&record.Email, &record.PasswordHash, &record.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authgate.AccountRecord{}, authgate.ErrAccountNotFound
		}
		return authgate.AccountRecord{}, fmt.Errorf("select member: %w", err)
	}
	return record, nil
}

// ExistsByEmail reports whether an account with email exists.
func (p *Provider) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM members WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("member existence check: %w", err)
	}
	return exists, nil
}

// Create inserts a new account. A unique-constraint violation maps to
// ErrDuplicateAccount, so the loser of a signup race sees the same error as
// an ordinary duplicate.
func (p *Provider) Create(ctx context.Context, input authgate.CreateAccountInput) (authgate.AccountRecord, error) {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO members (email, password_hash, role) VALUES ($1, $2, $3)`,
		input.Email, input.PasswordHash, input.Role,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authgate.AccountRecord{}, authgate.ErrDuplicateAccount
		}
		return authgate.AccountRecord{}, fmt.Errorf("insert member: %w", err)
	}

	return authgate.AccountRecord{
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
	}, nil
}
