package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// PgxUserRepository implements domain.UserRepository using pgxpool.
type PgxUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PgxUserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PgxUserRepository {
	return &PgxUserRepository{pool: pool}
}

const userColumns = `uid, email, display_name, password_hash, provider, COALESCE(provider_subject, '')`

func scanUser(row pgx.Row) (*domain.UserRow, error) {
	var u domain.UserRow
	err := row.Scan(&u.UID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Provider, &u.ProviderSubject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns the password user with the given email (case-insensitive).
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByEmail(ctx context.Context, email string) (*domain.UserRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) AND provider = 'password'`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetByUID returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByUID(ctx context.Context, uid string) (*domain.UserRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	return scanUser(r.pool.QueryRow(ctx, query, uid))
}

// GetByProviderSubject returns the federated user, or (nil, nil).
func (r *PgxUserRepository) GetByProviderSubject(ctx context.Context, provider, subject string) (*domain.UserRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider = $1 AND provider_subject = $2`
	return scanUser(r.pool.QueryRow(ctx, query, provider, subject))
}

// ExistsByEmail reports whether a password user holds the email.
func (r *PgxUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1) AND provider = 'password')`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts the user.
func (r *PgxUserRepository) Create(ctx context.Context, user domain.UserRow) error {
	query := `
		INSERT INTO users (uid, email, display_name, password_hash, provider, provider_subject)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`
	_, err := r.pool.Exec(ctx, query,
		user.UID, user.Email, user.DisplayName, user.PasswordHash, user.Provider, user.ProviderSubject,
	)
	return err
}

// Delete removes the user and its issued tokens.
func (r *PgxUserRepository) Delete(ctx context.Context, uid string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE uid = $1`, uid)
	return err
}

// UpdateLastLogin sets the last_login timestamp to now for the given user.
func (r *PgxUserRepository) UpdateLastLogin(ctx context.Context, uid string) error {
	query := `UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE uid = $1`
	_, err := r.pool.Exec(ctx, query, uid)
	return err
}
