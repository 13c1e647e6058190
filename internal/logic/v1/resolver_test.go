package v1

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
	"github.com/duynhne/mentorpath-service/internal/core/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBadCredentials = domain.NewSignInRejection("Firebase: Error (auth/invalid-credential).")

type account struct {
	identity domain.Identity
	password string
}

// fakeIdentity notifies listeners synchronously, like identity.Client.
type fakeIdentity struct {
	mu         sync.Mutex
	accounts   map[string]account
	federated  map[string]domain.Identity
	current    *domain.Identity
	listeners  map[int]domain.IdentityListener
	next       int
	signInErr  error
	signOutErr error
	signOuts   int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		accounts:  make(map[string]account),
		federated: make(map[string]domain.Identity),
		listeners: make(map[int]domain.IdentityListener),
	}
}

func (f *fakeIdentity) addAccount(uid, email, password string) {
	f.accounts[email] = account{identity: domain.Identity{UID: uid, Email: email, Provider: domain.ProviderPassword}, password: password}
}

func (f *fakeIdentity) addFederated(code, uid, email, name string) {
	f.federated[code] = domain.Identity{UID: uid, Email: email, DisplayName: name, Provider: domain.ProviderGoogle}
}

func (f *fakeIdentity) SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	acc, ok := f.accounts[email]
	if !ok || acc.password != password {
		return nil, errBadCredentials
	}
	id := acc.identity
	f.set(ctx, &id)
	return &id, nil
}

func (f *fakeIdentity) SignInWithFederated(ctx context.Context, provider, credential string) (*domain.Identity, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	id, ok := f.federated[credential]
	if !ok || provider != domain.ProviderGoogle {
		return nil, domain.NewSignInRejection("popup closed by user")
	}
	f.set(ctx, &id)
	return &id, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOuts++
	err := f.signOutErr
	wasSignedIn := f.current != nil
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if wasSignedIn {
		f.set(ctx, nil)
	}
	return nil
}

func (f *fakeIdentity) OnChange(listener domain.IdentityListener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = listener
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeIdentity) set(ctx context.Context, id *domain.Identity) {
	f.mu.Lock()
	f.current = id
	listeners := make([]domain.IdentityListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()
	for _, l := range listeners {
		l(ctx, id)
	}
}

func (f *fakeIdentity) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// flakyStore wraps the memory store with per-collection Get failures and
// counts reads and writes.
type flakyStore struct {
	*repository.MemoryRecordStore
	mu      sync.Mutex
	failGet map[string]error
	gets    int
	puts    int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryRecordStore: repository.NewMemoryRecordStore(), failGet: make(map[string]error)}
}

func (s *flakyStore) Get(ctx context.Context, collection, key string) (*domain.Record, error) {
	s.mu.Lock()
	s.gets++
	err := s.failGet[collection]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.MemoryRecordStore.Get(ctx, collection, key)
}

func (s *flakyStore) Put(ctx context.Context, collection, key string, fields map[string]any, opts domain.PutOptions) error {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	return s.MemoryRecordStore.Put(ctx, collection, key, fields, opts)
}

func (s *flakyStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *flakyStore) seed(t *testing.T, collection, uid string, fields map[string]any) {
	t.Helper()
	require.NoError(t, s.MemoryRecordStore.Put(context.Background(), collection, uid, fields, domain.PutOptions{}))
}

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type fixture struct {
	idp   *fakeIdentity
	store *flakyStore
	nav   *recordingNavigator
	r     *Resolver
}

func newFixture(t *testing.T, opts ...ResolverOption) *fixture {
	t.Helper()
	f := &fixture{idp: newFakeIdentity(), store: newFlakyStore(), nav: &recordingNavigator{}}
	f.r = NewResolver(f.idp, f.store, f.nav, opts...)
	f.r.Initialize()
	t.Cleanup(f.r.Dispose)
	return f
}

func TestLoginApprovedProfileWinsOverPending(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u1", "u1@example.com", "secret1")
	f.store.seed(t, domain.CollectionProfiles, "u1", map[string]any{"role": "mentor", "fullName": "Ada Mentor"})
	f.store.seed(t, domain.CollectionSignupRequests, "u1", map[string]any{"role": "mentee", "fullName": "Pending Name"})

	session, err := f.r.Login(context.Background(), "u1@example.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, domain.Session{
		IsAuthenticated: true,
		Role:            domain.RoleMentor,
		UserID:          "u1",
		DisplayName:     "Ada Mentor",
		Email:           "u1@example.com",
	}, session)
	assert.Equal(t, session, f.r.Session())
	assert.Equal(t, []string{"/dashboard/mentor"}, f.nav.Paths())
}

func TestLoginPendingOnlyAdoptsPendingRole(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u3", "u3@example.com", "pw1234")
	f.store.seed(t, domain.CollectionSignupRequests, "u3", map[string]any{"role": "mentee", "name": "Nameless Fallback"})

	session, err := f.r.Login(context.Background(), "u3@example.com", "pw1234")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMentee, session.Role)
	assert.Equal(t, "Nameless Fallback", session.DisplayName)
	assert.Equal(t, []string{"/dashboard/mentee"}, f.nav.Paths())
}

func TestLoginWithoutRecordsResolvesUnknown(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u4", "u4@example.com", "pw1234")

	session, err := f.r.Login(context.Background(), "u4@example.com", "pw1234")
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
	assert.Equal(t, domain.RoleUnknown, session.Role)
	assert.Empty(t, session.DisplayName)
	assert.Equal(t, []string{"/"}, f.nav.Paths())
}

func TestLoginUnrecognisedRoleIsUnknown(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u5", "u5@example.com", "pw1234")
	f.store.seed(t, domain.CollectionProfiles, "u5", map[string]any{"role": "admin"})

	session, err := f.r.Login(context.Background(), "u5@example.com", "pw1234")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUnknown, session.Role)
	assert.Equal(t, []string{"/"}, f.nav.Paths())
}

func TestLoginBadCredentialsSurfacesMessage(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u1", "u1@example.com", "secret1")

	session, err := f.r.Login(context.Background(), "u1@example.com", "nope")
	require.Error(t, err)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, errBadCredentials.Error(), authErr.Message)
	assert.ErrorIs(t, err, errBadCredentials)
	assert.Equal(t, domain.LoggedOut(), session)
	assert.Empty(t, f.nav.Paths())
}

func TestLoginInfrastructureFailureIsNotAuthenticationError(t *testing.T) {
	f := newFixture(t)
	dialErr := errors.New("query user: dial tcp 10.0.0.5:5432: connect: connection refused")
	f.idp.signInErr = dialErr

	session, err := f.r.Login(context.Background(), "u1@example.com", "secret1")
	require.ErrorIs(t, err, dialErr)
	var authErr *AuthenticationError
	assert.False(t, errors.As(err, &authErr))
	assert.Equal(t, domain.LoggedOut(), session)

	_, err = f.r.LoginWithGoogle(context.Background(), domain.RoleMentee, "code-u2")
	require.ErrorIs(t, err, dialErr)
	assert.False(t, errors.As(err, &authErr))
	assert.Empty(t, f.nav.Paths())
}

func TestLoginRunsOneLookupChain(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u1", "u1@example.com", "secret1")
	f.store.seed(t, domain.CollectionProfiles, "u1", map[string]any{"role": "mentor"})

	_, err := f.r.Login(context.Background(), "u1@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.getCount(), "approved profile hit reads one collection")
}

func TestLoginWithGoogleRunsOneLookupChain(t *testing.T) {
	f := newFixture(t)
	f.idp.addFederated("code-u2", "u2", "u2@example.com", "User Two")

	session, err := f.r.LoginWithGoogle(context.Background(), domain.RoleMentee, "code-u2")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMentee, session.Role)
	assert.Equal(t, 2, f.store.getCount(), "profiles then signupRequests, once each")
	assert.Equal(t, 1, f.store.puts)
}

func TestIdentityChangeAfterLoginStillResolves(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u1", "u1@example.com", "secret1")
	f.store.seed(t, domain.CollectionProfiles, "u7", map[string]any{"role": "mentee"})
	ctx := context.Background()

	_, err := f.r.Login(ctx, "u1@example.com", "secret1")
	require.NoError(t, err)

	f.idp.set(ctx, &domain.Identity{UID: "u7", Email: "u7@example.com"})
	assert.Equal(t, "u7", f.r.Session().UserID)
	assert.Equal(t, domain.RoleMentee, f.r.Session().Role)
}

func TestLoginLookupFailureFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u1", "u1@example.com", "secret1")
	f.store.seed(t, domain.CollectionSignupRequests, "u1", map[string]any{"role": "mentee"})
	f.store.failGet[domain.CollectionProfiles] = errors.New("connection refused")

	session, err := f.r.Login(context.Background(), "u1@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated)
	assert.Equal(t, domain.RoleUnknown, session.Role, "a failed source stops the chain")
	assert.Equal(t, []string{"/"}, f.nav.Paths())
}

func TestLoginLookupFailureStrict(t *testing.T) {
	f := newFixture(t, WithStrictLookup(true))
	f.idp.addAccount("u1", "u1@example.com", "secret1")
	f.store.failGet[domain.CollectionProfiles] = errors.New("connection refused")

	session, err := f.r.Login(context.Background(), "u1@example.com", "secret1")
	require.ErrorIs(t, err, ErrLookupFailed)
	assert.True(t, session.IsAuthenticated)
	assert.Equal(t, domain.RoleUnknown, session.Role)
	assert.Empty(t, f.nav.Paths())
}

func TestLoginWithGoogleCreatesPendingRecordOnce(t *testing.T) {
	f := newFixture(t)
	f.idp.addFederated("code-u2", "u2", "u2@example.com", "User Two")
	ctx := context.Background()

	session, err := f.r.LoginWithGoogle(ctx, domain.RoleMentee, "code-u2")
	require.NoError(t, err)
	assert.Equal(t, domain.Session{
		IsAuthenticated: true,
		Role:            domain.RoleMentee,
		UserID:          "u2",
		DisplayName:     "User Two",
		Email:           "u2@example.com",
	}, session)
	assert.Equal(t, []string{"/dashboard/mentee"}, f.nav.Paths())

	rec, err := f.store.Get(ctx, domain.CollectionSignupRequests, "u2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "u2", rec.String("uid"))
	assert.Equal(t, "mentee", rec.String("role"))
	assert.Equal(t, "pending", rec.String("status"))
	assert.Equal(t, "u2@example.com", rec.String("email"))
	assert.False(t, rec.CreatedAt.IsZero())

	require.NoError(t, f.r.Logout(ctx))

	// Second login with a different requested role finds the existing record.
	session, err = f.r.LoginWithGoogle(ctx, domain.RoleMentor, "code-u2")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMentee, session.Role)
	assert.Equal(t, 1, f.store.puts)

	all, err := f.store.List(ctx, domain.CollectionSignupRequests)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLoginWithGoogleExistingProfile(t *testing.T) {
	f := newFixture(t)
	f.idp.addFederated("code-u6", "u6", "u6@example.com", "Google Name")
	f.store.seed(t, domain.CollectionProfiles, "u6", map[string]any{"role": "mentor", "fullName": "Profile Name"})

	session, err := f.r.LoginWithGoogle(context.Background(), domain.RoleMentee, "code-u6")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMentor, session.Role)
	assert.Equal(t, "Profile Name", session.DisplayName)
	assert.Zero(t, f.store.puts)
	assert.Equal(t, []string{"/dashboard/mentor"}, f.nav.Paths())
}

func TestLoginWithGoogleRequiresRole(t *testing.T) {
	f := newFixture(t)
	f.idp.addFederated("code-u2", "u2", "u2@example.com", "")

	for _, role := range []domain.Role{"", domain.RoleUnknown, "admin"} {
		_, err := f.r.LoginWithGoogle(context.Background(), role, "code-u2")
		assert.ErrorIs(t, err, ErrRoleRequired)
	}
	assert.False(t, f.r.Session().IsAuthenticated)
	assert.Zero(t, f.store.puts)
}

func TestLoginWithGoogleLookupFailureDoesNotCreate(t *testing.T) {
	f := newFixture(t)
	f.idp.addFederated("code-u2", "u2", "u2@example.com", "")
	f.store.failGet[domain.CollectionSignupRequests] = errors.New("timeout")

	session, err := f.r.LoginWithGoogle(context.Background(), domain.RoleMentor, "code-u2")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUnknown, session.Role)
	assert.Zero(t, f.store.puts)
	assert.Equal(t, []string{"/"}, f.nav.Paths())
}

func TestLoginWithGoogleProviderFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.r.LoginWithGoogle(context.Background(), domain.RoleMentor, "unknown-code")
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "popup closed by user", authErr.Message)
}

func TestLogoutResetsEverythingAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.idp.addAccount("u1", "u1@example.com", "secret1")
	f.store.seed(t, domain.CollectionProfiles, "u1", map[string]any{"role": "mentor", "fullName": "Ada"})
	ctx := context.Background()

	_, err := f.r.Login(ctx, "u1@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.r.Logout(ctx))
	assert.Equal(t, domain.LoggedOut(), f.r.Session())

	require.NoError(t, f.r.Logout(ctx))
	assert.Equal(t, domain.LoggedOut(), f.r.Session())
	assert.Equal(t, []string{"/dashboard/mentor", "/login", "/login"}, f.nav.Paths())
}

func TestLogoutProviderFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.idp.signOutErr = errors.New("network down")

	err := f.r.Logout(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.nav.Paths())
}

func TestIdentityRestoredFromProvider(t *testing.T) {
	f := newFixture(t)
	f.store.seed(t, domain.CollectionProfiles, "u1", map[string]any{"role": "mentee", "fullName": "Restored"})
	ctx := context.Background()

	f.idp.set(ctx, &domain.Identity{UID: "u1", Email: "u1@example.com"})
	assert.Equal(t, domain.Session{
		IsAuthenticated: true,
		Role:            domain.RoleMentee,
		UserID:          "u1",
		DisplayName:     "Restored",
		Email:           "u1@example.com",
	}, f.r.Session())
	assert.Empty(t, f.nav.Paths(), "identity changes never navigate")

	f.idp.set(ctx, nil)
	assert.Equal(t, domain.LoggedOut(), f.r.Session())
}

func TestDisposeStopsFollowingIdentity(t *testing.T) {
	f := newFixture(t)
	f.r.Initialize()
	assert.Equal(t, 1, f.idp.listenerCount())

	f.r.Dispose()
	f.r.Dispose()
	assert.Zero(t, f.idp.listenerCount())

	f.idp.set(context.Background(), &domain.Identity{UID: "u1"})
	assert.False(t, f.r.Session().IsAuthenticated)
}

type staticLookup struct {
	name    string
	profile *domain.ProfileRecord
}

func (s staticLookup) Name() string { return s.name }
func (s staticLookup) Lookup(context.Context, string) (*domain.ProfileRecord, error) {
	return s.profile, nil
}

func TestCustomLookupChain(t *testing.T) {
	idp := newFakeIdentity()
	idp.addAccount("u9", "u9@example.com", "pw1234")
	store := newFlakyStore()
	nav := &recordingNavigator{}

	lookups := append(DefaultLookups(store), staticLookup{
		name:    "directory",
		profile: &domain.ProfileRecord{UID: "u9", Role: domain.RoleMentor, Name: "From Directory"},
	})
	r := NewResolver(idp, store, nav, WithLookups(lookups...))

	session, err := r.Login(context.Background(), "u9@example.com", "pw1234")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMentor, session.Role)
	assert.Equal(t, "From Directory", session.DisplayName)
}

// blockingLookup parks the first lookup until released.
type blockingLookup struct {
	entered chan struct{}
	release chan struct{}
	once    *sync.Once
}

func (b blockingLookup) Name() string { return "blocking" }
func (b blockingLookup) Lookup(context.Context, string) (*domain.ProfileRecord, error) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return &domain.ProfileRecord{Role: domain.RoleMentor, Name: "Late"}, nil
}

func TestLogoutDuringLookupWins(t *testing.T) {
	idp := newFakeIdentity()
	nav := &recordingNavigator{}
	block := blockingLookup{entered: make(chan struct{}), release: make(chan struct{}), once: &sync.Once{}}
	r := NewResolver(idp, newFlakyStore(), nav, WithLookups(block))
	r.Initialize()
	defer r.Dispose()

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		idp.set(ctx, &domain.Identity{UID: "u1", Email: "u1@example.com"})
	}()

	<-block.entered
	require.NoError(t, r.Logout(ctx))
	close(block.release)
	<-done

	assert.Equal(t, domain.LoggedOut(), r.Session())
	assert.Equal(t, []string{"/login"}, nav.Paths())
}
