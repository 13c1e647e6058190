package domain

import "context"

// UserRow is a credential record. PasswordHash is empty for federated users;
// ProviderSubject is empty for password users.
type UserRow struct {
	UID             string
	Email           string
	DisplayName     string
	PasswordHash    string
	Provider        string
	ProviderSubject string
}

// Identity returns the identity view of the row.
func (u *UserRow) Identity() *Identity {
	return &Identity{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Provider:    u.Provider,
	}
}

// UserRepository defines the data-access contract for credentials.
// Implementations live in internal/core/repository (Core layer).
// The identity provider depends on this interface only, never on SQL or pgx.
type UserRepository interface {
	// GetByEmail returns the password user with the given email.
	// Returns (nil, nil) when no user is found.
	GetByEmail(ctx context.Context, email string) (*UserRow, error)

	// GetByUID returns (nil, nil) when no user is found.
	GetByUID(ctx context.Context, uid string) (*UserRow, error)

	// GetByProviderSubject returns the federated user, or (nil, nil).
	GetByProviderSubject(ctx context.Context, provider, subject string) (*UserRow, error)

	// ExistsByEmail reports whether any user holds the email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create inserts the user. UID must be set by the caller.
	Create(ctx context.Context, user UserRow) error

	// UpdateLastLogin sets the last_login timestamp to now.
	UpdateLastLogin(ctx context.Context, uid string) error

	// Delete removes the user. Deleting an unknown uid is not an error.
	Delete(ctx context.Context, uid string) error
}
