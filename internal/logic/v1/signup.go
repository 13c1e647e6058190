package v1

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
	"github.com/duynhne/mentorpath-service/middleware"
)

// AccountCreator registers email/password accounts.
type AccountCreator interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (*domain.Identity, error)
	DeleteAccount(ctx context.Context, uid string) error
}

// SignupService registers accounts and files their pending signup request.
type SignupService struct {
	accounts AccountCreator
	store    domain.RecordStore
	validate *validator.Validate
}

// NewSignupService creates a new SignupService.
func NewSignupService(accounts AccountCreator, store domain.RecordStore) *SignupService {
	return &SignupService{accounts: accounts, store: store, validate: newValidator()}
}

// Signup creates the account and a pending signup request carrying the
// chosen role. The user is not signed in; approval happens elsewhere.
func (s *SignupService) Signup(ctx context.Context, req domain.SignupRequest) (*domain.Identity, error) {
	ctx, span := middleware.StartSpan(ctx, "account.signup", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("requested.role", req.Role),
	))
	defer span.End()

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateStruct(s.validate, req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		return nil, err
	}

	id, err := s.accounts.CreateAccount(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create account: %w", err)
	}

	fields := domain.PendingSignupFields(id.UID, req.Email, req.FullName, domain.Role(req.Role))
	if err := s.store.Put(ctx, domain.CollectionSignupRequests, id.UID, fields, domain.PutOptions{}); err != nil {
		span.RecordError(err)
		// Remove the account so the email can sign up again.
		if delErr := s.accounts.DeleteAccount(ctx, id.UID); delErr != nil {
			span.RecordError(delErr)
			zerolog.Ctx(ctx).Error().Err(delErr).Str("user_id", id.UID).Msg("Failed to remove account after signup request failure")
		}
		return nil, fmt.Errorf("create signup request for %q: %w", id.UID, err)
	}

	span.SetAttributes(attribute.String("user.id", id.UID))
	span.AddEvent("signup_request.created")
	return id, nil
}
