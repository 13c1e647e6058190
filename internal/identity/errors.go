// Package identity is the identity provider: password and federated
// sign-in, signed identity tokens, and per-client identity state with
// change notifications.
package identity

import (
	"errors"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// Sign-in rejections. They match domain.ErrSignInRejected and their
// messages are shown to end users verbatim.
var (
	ErrInvalidCredentials  = domain.NewSignInRejection("invalid email or password")
	ErrUnsupportedProvider = domain.NewSignInRejection("sign-in provider is not supported")
	ErrFederatedExchange   = domain.NewSignInRejection("federated sign-in failed")
	ErrTokenInvalid        = domain.NewSignInRejection("identity token is invalid or expired")
	ErrTokenRevoked        = domain.NewSignInRejection("identity token has been revoked")
)

// Account errors, also written as user-facing sentences.
var (
	ErrEmailInUse   = errors.New("an account with this email already exists")
	ErrWeakPassword = errors.New("password must be at least 6 characters")
	ErrInvalidEmail = errors.New("invalid email address")
)
