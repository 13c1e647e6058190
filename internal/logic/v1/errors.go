// Package v1 provides session resolution and account business logic for
// API version 1.
//
// Error Handling:
// Sentinel errors below are wrapped with context using fmt.Errorf("%w") when
// returned from business logic methods. Failures reported by the identity
// provider during login are returned as *AuthenticationError, whose message
// is the provider's message and is shown to the user unchanged.
//
// Error Checking (in handlers):
//
//	var authErr *logicv1.AuthenticationError
//	switch {
//	case errors.As(err, &authErr):
//	    c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Message})
//	case errors.Is(err, logicv1.ErrLookupFailed):
//	    c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Profile service unavailable"})
//	default:
//	    c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
//	}
package v1

import (
	"errors"
	"fmt"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// Sentinel errors for session and account operations.
var (
	// ErrRoleRequired indicates federated login was attempted without a
	// mentor or mentee role.
	// HTTP Status: 400 Bad Request
	ErrRoleRequired = errors.New("role is required for Google login")

	// ErrLookupFailed indicates the record store failed while resolving the
	// role. Only returned when strict lookup is enabled; otherwise the role
	// resolves to unknown.
	// HTTP Status: 503 Service Unavailable
	ErrLookupFailed = errors.New("profile lookup failed")

	// ErrValidation indicates invalid user input. Wrapped by *ValidationError.
	// HTTP Status: 400 Bad Request
	ErrValidation = errors.New("validation failed")

	// ErrTagGeneration indicates the AI service returned no usable tags.
	// HTTP Status: 502 Bad Gateway
	ErrTagGeneration = errors.New("AI service returned an unexpected response")
)

// AuthenticationError is a sign-in the identity provider rejected, such as
// bad credentials. Store or network failures are never reported this way.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string { return e.Message }
func (e *AuthenticationError) Unwrap() error { return e.Err }

// signInError classifies an identity-provider failure. Rejections become
// *AuthenticationError carrying the provider's message; anything else is an
// infrastructure failure and keeps its chain for the caller.
func signInError(err error) error {
	if msg, ok := domain.SignInRejectionMessage(err); ok {
		return &AuthenticationError{Message: msg, Err: err}
	}
	return fmt.Errorf("sign in: %w", err)
}

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
