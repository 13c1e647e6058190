package domain

import (
	"context"
	"time"
)

// TokenRow is an issued identity token, identified by its JWT id.
type TokenRow struct {
	TokenID   string
	UID       string
	ExpiresAt time.Time
	Revoked   bool
}

// TokenRepository tracks issued identity tokens so sign-out can revoke them.
// Implementations live in internal/core/repository (Core layer).
type TokenRepository interface {
	// Create records a newly issued token.
	Create(ctx context.Context, tokenID, uid string, expiresAt time.Time) error

	// Get returns (nil, nil) when the token id is unknown.
	Get(ctx context.Context, tokenID string) (*TokenRow, error)

	// Revoke marks the token revoked. Revoking an unknown or already
	// revoked token is not an error.
	Revoke(ctx context.Context, tokenID string) error
}
