package domain

import (
	"context"
	"errors"
)

// Role determines dashboard routing and UI gating.
type Role string

const (
	RoleMentor  Role = "mentor"
	RoleMentee  Role = "mentee"
	RoleUnknown Role = "unknown"
)

// ParseRole maps a stored role value to a Role. Anything other than
// mentor or mentee is RoleUnknown.
func ParseRole(v string) Role {
	switch Role(v) {
	case RoleMentor:
		return RoleMentor
	case RoleMentee:
		return RoleMentee
	default:
		return RoleUnknown
	}
}

// Known reports whether r is mentor or mentee.
func (r Role) Known() bool {
	return r == RoleMentor || r == RoleMentee
}

// Navigation targets.
const (
	RouteHome            = "/"
	RouteLogin           = "/login"
	RouteMentorDashboard = "/dashboard/mentor"
	RouteMenteeDashboard = "/dashboard/mentee"
)

// DashboardPath returns the dashboard route for a role, or RouteHome when
// the role is not known.
func DashboardPath(r Role) string {
	switch r {
	case RoleMentor:
		return RouteMentorDashboard
	case RoleMentee:
		return RouteMenteeDashboard
	default:
		return RouteHome
	}
}

// Session is the resolved view of the current user. Empty strings mean absent.
type Session struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Role            Role   `json:"role"`
	UserID          string `json:"userId,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
	Email           string `json:"email,omitempty"`
}

// LoggedOut returns the logged-out default Session.
func LoggedOut() Session {
	return Session{Role: RoleUnknown}
}

// Identity is an authenticated principal returned by the identity provider.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	Provider    string
}

// Federated sign-in providers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// IdentityListener receives identity changes; nil means signed out.
type IdentityListener func(ctx context.Context, identity *Identity)

// IdentityProvider is the capability the session resolver consumes.
// Implementations live in internal/identity.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)

	// SignInWithFederated completes a federated sign-in; credential is the
	// provider-issued authorization code.
	SignInWithFederated(ctx context.Context, provider, credential string) (*Identity, error)

	// SignOut is idempotent.
	SignOut(ctx context.Context) error

	// OnChange registers a listener and returns a function removing it.
	OnChange(listener IdentityListener) (unsubscribe func())
}

// ErrSignInRejected matches every error made by NewSignInRejection. Sign-in
// errors that do not match it are infrastructure failures.
var ErrSignInRejected = errors.New("sign-in rejected")

type signInRejection struct {
	msg string
}

func (e *signInRejection) Error() string        { return e.msg }
func (e *signInRejection) Is(target error) bool { return target == ErrSignInRejected }

// NewSignInRejection returns an error reporting why an identity provider
// refused a sign-in. msg is shown to the user.
func NewSignInRejection(msg string) error {
	return &signInRejection{msg: msg}
}

// SignInRejectionMessage returns the user-facing message of the first
// rejection in err's chain.
func SignInRejectionMessage(err error) (string, bool) {
	var rej *signInRejection
	if errors.As(err, &rej) {
		return rej.msg, true
	}
	return "", false
}

// Navigator performs role-based redirection.
type Navigator interface {
	Navigate(path string)
}
