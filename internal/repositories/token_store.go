package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/db"
)

// PostgresTokenStore persists the per-user refresh token on the users table.
// The token lives on the user record itself, so "one active session per user"
// falls out of the schema rather than application bookkeeping.
type PostgresTokenStore struct {
	pool db.Pool
}

// NewPostgresTokenStore constructs a token store backed by PostgreSQL.
func NewPostgresTokenStore(pool db.Pool) *PostgresTokenStore {
	return &PostgresTokenStore{pool: pool}
}

// Save unconditionally records the user's current refresh token, overwriting
// any previous value.
func (s *PostgresTokenStore) Save(ctx context.Context, userID, token string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1
    `, userID, token)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

// Replace atomically swaps the stored refresh token, but only when the stored
// value still equals current. The conditional WHERE clause is the
// compare-and-swap: the check and the write happen in a single statement in
// the store, never as a read-then-write from this tier.
func (s *PostgresTokenStore) Replace(ctx context.Context, userID, current, next string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = $3, updated_at = NOW()
        WHERE id = $1 AND refresh_token = $2
    `, userID, current, next)
	if err != nil {
		return fmt.Errorf("replace refresh token: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows means either the user is gone or the stored token differs.
	row := conn.QueryRow(ctx, `SELECT refresh_token FROM users WHERE id = $1`, userID)
	var stored sql.NullString
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.ErrSessionNotFound
		}
		return fmt.Errorf("inspect refresh token: %w", err)
	}

	return auth.ErrTokenMismatch
}

// Clear removes the stored refresh token, ending any active session.
func (s *PostgresTokenStore) Clear(ctx context.Context, userID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        UPDATE users SET refresh_token = NULL, updated_at = NOW() WHERE id = $1
    `, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	return nil
}
