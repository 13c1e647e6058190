package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

const minPasswordLength = 6

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mentorpath-dummy-password"), bcrypt.DefaultCost)

// Authority holds the process-wide identity state: credentials, issued
// tokens and federated providers. Per-client state lives in Client.
type Authority struct {
	users     domain.UserRepository
	tokens    domain.TokenRepository
	signer    *TokenSigner
	federated map[string]FederatedExchanger
	validate  *validator.Validate
}

// NewAuthority creates an Authority. Exchangers are keyed by Provider().
func NewAuthority(users domain.UserRepository, tokens domain.TokenRepository, signer *TokenSigner, exchangers ...FederatedExchanger) *Authority {
	federated := make(map[string]FederatedExchanger, len(exchangers))
	for _, ex := range exchangers {
		federated[ex.Provider()] = ex
	}
	return &Authority{
		users:     users,
		tokens:    tokens,
		signer:    signer,
		federated: federated,
		validate:  validator.New(),
	}
}

// NewClient returns a signed-out client bound to this authority.
func (a *Authority) NewClient() *Client {
	return &Client{
		authority: a,
		listeners: make(map[uint64]domain.IdentityListener),
	}
}

// CreateAccount registers an email/password user.
func (a *Authority) CreateAccount(ctx context.Context, email, password, displayName string) (*domain.Identity, error) {
	email = strings.TrimSpace(email)
	if err := a.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	exists, err := a.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return nil, ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.UserRow{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		Provider:     domain.ProviderPassword,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user.Identity(), nil
}

// DeleteAccount removes a user, undoing CreateAccount.
func (a *Authority) DeleteAccount(ctx context.Context, uid string) error {
	if err := a.users.Delete(ctx, uid); err != nil {
		return fmt.Errorf("delete user %q: %w", uid, err)
	}
	return nil
}

// AuthCodeURL returns the federated consent URL for provider.
func (a *Authority) AuthCodeURL(provider, state string) (string, error) {
	ex, ok := a.federated[provider]
	if !ok {
		return "", ErrUnsupportedProvider
	}
	return ex.AuthCodeURL(state), nil
}

func (a *Authority) verifyPassword(ctx context.Context, email, password string) (*domain.UserRow, error) {
	user, err := a.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// federatedUser maps the provider subject to a user, creating one on
// first sign-in.
func (a *Authority) federatedUser(ctx context.Context, provider, code string) (*domain.UserRow, error) {
	ex, ok := a.federated[provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	profile, err := ex.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetByProviderSubject(ctx, provider, profile.Subject)
	if err != nil {
		return nil, fmt.Errorf("query federated user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	created := domain.UserRow{
		UID:             uuid.NewString(),
		Email:           profile.Email,
		DisplayName:     profile.Name,
		Provider:        provider,
		ProviderSubject: profile.Subject,
	}
	if err := a.users.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("insert federated user: %w", err)
	}
	return &created, nil
}

func (a *Authority) issue(ctx context.Context, uid string) (IssuedToken, error) {
	tok, err := a.signer.Issue(uid)
	if err != nil {
		return IssuedToken{}, err
	}
	if err := a.tokens.Create(ctx, tok.TokenID, uid, tok.ExpiresAt); err != nil {
		return IssuedToken{}, fmt.Errorf("record token: %w", err)
	}
	if err := a.users.UpdateLastLogin(ctx, uid); err != nil {
		return IssuedToken{}, fmt.Errorf("update last_login: %w", err)
	}
	return tok, nil
}

func (a *Authority) restore(ctx context.Context, token string) (*domain.UserRow, IssuedToken, error) {
	claims, err := a.signer.Parse(token)
	if err != nil {
		return nil, IssuedToken{}, err
	}

	row, err := a.tokens.Get(ctx, claims.ID)
	if err != nil {
		return nil, IssuedToken{}, fmt.Errorf("query token: %w", err)
	}
	if row == nil || row.UID != claims.Subject {
		return nil, IssuedToken{}, ErrTokenInvalid
	}
	if row.Revoked {
		return nil, IssuedToken{}, ErrTokenRevoked
	}

	user, err := a.users.GetByUID(ctx, claims.Subject)
	if err != nil {
		return nil, IssuedToken{}, fmt.Errorf("query user: %w", err)
	}
	if user == nil {
		return nil, IssuedToken{}, ErrTokenInvalid
	}

	return user, IssuedToken{Token: token, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}
