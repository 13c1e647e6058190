package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// PgxTokenRepository implements domain.TokenRepository using pgxpool.
type PgxTokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new PgxTokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *PgxTokenRepository {
	return &PgxTokenRepository{pool: pool}
}

// Create records a newly issued token.
func (r *PgxTokenRepository) Create(ctx context.Context, tokenID, uid string, expiresAt time.Time) error {
	query := `INSERT INTO identity_tokens (token_id, uid, expires_at) VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, query, tokenID, uid, expiresAt)
	return err
}

// Get returns (nil, nil) when the token id is unknown.
func (r *PgxTokenRepository) Get(ctx context.Context, tokenID string) (*domain.TokenRow, error) {
	query := `SELECT token_id, uid, expires_at, revoked_at IS NOT NULL FROM identity_tokens WHERE token_id = $1`

	var row domain.TokenRow
	err := r.pool.QueryRow(ctx, query, tokenID).Scan(&row.TokenID, &row.UID, &row.ExpiresAt, &row.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Revoke marks the token revoked, keeping the first revocation time.
func (r *PgxTokenRepository) Revoke(ctx context.Context, tokenID string) error {
	query := `UPDATE identity_tokens SET revoked_at = COALESCE(revoked_at, CURRENT_TIMESTAMP) WHERE token_id = $1`
	_, err := r.pool.Exec(ctx, query, tokenID)
	return err
}
