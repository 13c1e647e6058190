package v1

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
	"github.com/duynhne/mentorpath-service/middleware"
)

// Resolver maps identity-provider state to a Session and performs role-based
// navigation on explicit login and logout. One Resolver serves one client.
//
// The resolver holds no lock while calling the identity provider, so
// provider notifications may re-enter it.
type Resolver struct {
	identity domain.IdentityProvider
	store    domain.RecordStore
	nav      domain.Navigator
	lookups  []LookupStrategy
	strict   bool

	mu          sync.RWMutex
	session     domain.Session
	epoch       uint64
	signingIn   int
	unsubscribe func()
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLookups replaces the default lookup chain.
func WithLookups(lookups ...LookupStrategy) ResolverOption {
	return func(r *Resolver) { r.lookups = lookups }
}

// WithStrictLookup makes login fail with ErrLookupFailed when the record
// store errors, instead of resolving the role to unknown.
func WithStrictLookup(strict bool) ResolverOption {
	return func(r *Resolver) { r.strict = strict }
}

// NewResolver creates a logged-out Resolver. Call Initialize to start
// following identity changes.
func NewResolver(identity domain.IdentityProvider, store domain.RecordStore, nav domain.Navigator, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		identity: identity,
		store:    store,
		nav:      nav,
		session:  domain.LoggedOut(),
	}
	r.lookups = DefaultLookups(store)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize subscribes to identity changes. Calling it twice is a no-op.
func (r *Resolver) Initialize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		return
	}
	r.unsubscribe = r.identity.OnChange(r.onIdentityChange)
}

// Dispose unsubscribes from identity changes. Calling it twice is a no-op.
func (r *Resolver) Dispose() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Session returns a snapshot of the current session.
func (r *Resolver) Session() domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

// onIdentityChange follows the provider. It never navigates.
func (r *Resolver) onIdentityChange(ctx context.Context, id *domain.Identity) {
	ctx, span := middleware.StartSpan(ctx, "session.identity_change", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Bool("identity.present", id != nil),
	))
	defer span.End()

	if id == nil {
		r.reset()
		return
	}

	r.mu.RLock()
	explicit := r.signingIn > 0
	r.mu.RUnlock()
	if explicit {
		// Login and LoginWithGoogle run the chain for this identity.
		span.AddEvent("resolution.deferred")
		return
	}

	epoch := r.authenticate(id)
	result := runLookups(ctx, r.lookups, id.UID)
	if result.err != nil {
		span.RecordError(result.err)
	}
	r.apply(ctx, epoch, id.UID, result)
}

// Login signs in with email and password, resolves the role and navigates
// to the role's dashboard, or home when the role is unknown.
func (r *Resolver) Login(ctx context.Context, email, password string) (domain.Session, error) {
	ctx, span := middleware.StartSpan(ctx, "session.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	done := r.beginSignIn()
	id, err := r.identity.SignInWithPassword(ctx, email, password)
	done()
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("auth.success", false))
		return r.Session(), signInError(err)
	}

	epoch := r.authenticate(id)
	result := runLookups(ctx, r.lookups, id.UID)
	session, applied := r.apply(ctx, epoch, id.UID, result)

	span.SetAttributes(
		attribute.String("user.id", id.UID),
		attribute.String("session.role", string(session.Role)),
		attribute.Bool("auth.success", true),
	)

	if result.err != nil && r.strict {
		span.RecordError(result.err)
		return session, fmt.Errorf("resolve role for %q: %w: %v", id.UID, ErrLookupFailed, result.err)
	}
	if applied {
		r.nav.Navigate(domain.DashboardPath(session.Role))
	}
	return session, nil
}

// LoginWithGoogle completes a federated sign-in. role is used only when the
// identity has no record yet, in which case a pending signup request is
// created with that role.
func (r *Resolver) LoginWithGoogle(ctx context.Context, role domain.Role, credential string) (domain.Session, error) {
	ctx, span := middleware.StartSpan(ctx, "session.login_google", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("requested.role", string(role)),
	))
	defer span.End()

	if !role.Known() {
		return r.Session(), ErrRoleRequired
	}

	done := r.beginSignIn()
	id, err := r.identity.SignInWithFederated(ctx, domain.ProviderGoogle, credential)
	done()
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("auth.success", false))
		return r.Session(), signInError(err)
	}

	epoch := r.authenticate(id)
	result := runLookups(ctx, r.lookups, id.UID)

	switch {
	case result.err != nil:
		// The record may exist; never create over an unreadable store.
		span.RecordError(result.err)
		session, applied := r.apply(ctx, epoch, id.UID, result)
		if r.strict {
			return session, fmt.Errorf("resolve role for %q: %w: %v", id.UID, ErrLookupFailed, result.err)
		}
		if applied {
			r.nav.Navigate(domain.DashboardPath(session.Role))
		}
		return session, nil

	case result.profile == nil:
		fields := domain.PendingSignupFields(id.UID, id.Email, id.DisplayName, role)
		if err := r.store.Put(ctx, domain.CollectionSignupRequests, id.UID, fields, domain.PutOptions{}); err != nil {
			span.RecordError(err)
			return r.Session(), fmt.Errorf("create signup request for %q: %w", id.UID, err)
		}
		span.AddEvent("signup_request.created")
		zerolog.Ctx(ctx).Info().
			Str("user_id", id.UID).
			Str("role", string(role)).
			Msg("Created pending signup request")

		result = lookupResult{
			profile: &domain.ProfileRecord{UID: id.UID, Role: role, Name: id.DisplayName, Email: id.Email, Status: domain.StatusPending},
			source:  domain.CollectionSignupRequests,
		}
	}

	session, applied := r.apply(ctx, epoch, id.UID, result)
	span.SetAttributes(
		attribute.String("user.id", id.UID),
		attribute.String("session.role", string(session.Role)),
		attribute.Bool("auth.success", true),
	)
	if applied {
		r.nav.Navigate(domain.DashboardPath(session.Role))
	}
	return session, nil
}

// Logout signs out, resets the session and navigates to the login page.
// It is safe to call when already logged out.
func (r *Resolver) Logout(ctx context.Context) error {
	ctx, span := middleware.StartSpan(ctx, "session.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if err := r.identity.SignOut(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("sign out: %w", err)
	}

	r.reset()
	r.nav.Navigate(domain.RouteLogin)
	return nil
}

// beginSignIn marks an explicit sign-in in progress so the provider's
// synchronous change notification does not run a second lookup chain. The
// returned function ends the mark.
func (r *Resolver) beginSignIn() func() {
	r.mu.Lock()
	r.signingIn++
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		r.signingIn--
		r.mu.Unlock()
	}
}

// reset returns to the logged-out default and invalidates in-flight lookups.
func (r *Resolver) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.session = domain.LoggedOut()
}

// authenticate records the identity and returns the epoch its lookup chain
// must still observe when applying the result.
func (r *Resolver) authenticate(id *domain.Identity) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session.UserID != id.UID {
		r.session.Role = domain.RoleUnknown
		r.session.DisplayName = ""
	}
	r.session.IsAuthenticated = true
	r.session.UserID = id.UID
	r.session.Email = id.Email
	return r.epoch
}

// apply writes a lookup result unless a reset or a different identity
// happened since the chain started. It reports whether the result was applied.
func (r *Resolver) apply(ctx context.Context, epoch uint64, uid string, result lookupResult) (domain.Session, bool) {
	logger := zerolog.Ctx(ctx)

	role := domain.RoleUnknown
	name := ""
	source := "none"
	switch {
	case result.err != nil:
		middleware.RecordLookupFailure(result.source)
		logger.Warn().Err(result.err).
			Str("user_id", uid).
			Str("source", result.source).
			Msg("Profile lookup failed, resolving role to unknown")
	case result.profile != nil:
		role = result.profile.Role
		name = result.profile.Name
		source = result.source
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.epoch != epoch || r.session.UserID != uid {
		logger.Debug().Str("user_id", uid).Msg("Discarding stale role resolution")
		return r.session, false
	}

	r.session.Role = role
	r.session.DisplayName = name
	middleware.RecordRoleResolution(string(role), source)
	return r.session, true
}
