package v1

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
	"github.com/duynhne/mentorpath-service/internal/identity"
	logicv1 "github.com/duynhne/mentorpath-service/internal/logic/v1"
	"github.com/duynhne/mentorpath-service/middleware"
)

// redirectRecorder is the per-client Navigator. The handler hands the last
// navigation target back to the browser in the response body.
type redirectRecorder struct {
	mu   sync.Mutex
	path string
}

func (r *redirectRecorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = path
}

// Take returns the pending target and clears it.
func (r *redirectRecorder) Take() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.path
	r.path = ""
	return p
}

// client is one browser: its identity state, navigator and resolver.
// Requests of one client are serialized through mu.
type client struct {
	id       string
	idp      *identity.Client
	nav      *redirectRecorder
	resolver *logicv1.Resolver

	mu         sync.Mutex
	oauthState string
	lastSeenAt atomic.Int64
}

func (c *client) touch(now time.Time) {
	c.lastSeenAt.Store(now.UnixNano())
}

func (c *client) lastSeen() time.Time {
	return time.Unix(0, c.lastSeenAt.Load())
}

// ClientRegistry owns every live client.
type ClientRegistry struct {
	authority  *identity.Authority
	store      domain.RecordStore
	opts       []logicv1.ResolverOption
	maxClients int
	now        func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

// NewClientRegistry creates an empty registry holding at most maxClients
// clients. A maxClients of zero or less disables the cap. opts apply to every
// resolver.
func NewClientRegistry(authority *identity.Authority, store domain.RecordStore, maxClients int, opts ...logicv1.ResolverOption) *ClientRegistry {
	return &ClientRegistry{
		authority:  authority,
		store:      store,
		opts:       opts,
		maxClients: maxClients,
		now:        time.Now,
		clients:    make(map[string]*client),
	}
}

// Get returns a live client and refreshes its idle timer.
func (r *ClientRegistry) Get(id string) (*client, bool) {
	r.mu.Lock()
	c, ok := r.clients[id]
	r.mu.Unlock()
	if ok {
		c.touch(r.now())
	}
	return c, ok
}

// Create starts a new signed-out client with an initialized resolver. When
// the registry is full the least recently seen client is disposed first.
func (r *ClientRegistry) Create() *client {
	idp := r.authority.NewClient()
	nav := &redirectRecorder{}
	c := &client{
		id:       uuid.NewString(),
		idp:      idp,
		nav:      nav,
		resolver: logicv1.NewResolver(idp, r.store, nav, r.opts...),
	}
	c.resolver.Initialize()
	c.touch(r.now())

	r.mu.Lock()
	var evicted []*client
	for r.maxClients > 0 && len(r.clients) >= r.maxClients {
		oldest := r.leastRecentlySeen()
		delete(r.clients, oldest.id)
		evicted = append(evicted, oldest)
	}
	r.clients[c.id] = c
	n := len(r.clients)
	r.mu.Unlock()

	for _, e := range evicted {
		e.resolver.Dispose()
	}
	if len(evicted) > 0 {
		log.Debug().Int("evicted", len(evicted)).Int("max_clients", r.maxClients).Msg("Client registry full")
	}
	middleware.SetActiveClients(n)
	return c
}

// leastRecentlySeen must be called with mu held on a non-empty registry.
func (r *ClientRegistry) leastRecentlySeen() *client {
	var oldest *client
	for _, c := range r.clients {
		if oldest == nil || c.lastSeen().Before(oldest.lastSeen()) {
			oldest = c
		}
	}
	return oldest
}

// Len returns the number of live clients.
func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep disposes clients idle for longer than idle and returns how many
// were removed. Issued tokens stay valid, so a swept browser is restored
// from its bearer token on the next request.
func (r *ClientRegistry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*client
	for id, c := range r.clients {
		if c.lastSeen().Before(cutoff) {
			stale = append(stale, c)
			delete(r.clients, id)
		}
	}
	n := len(r.clients)
	r.mu.Unlock()

	for _, c := range stale {
		c.resolver.Dispose()
	}
	middleware.SetActiveClients(n)
	return len(stale)
}

// Run sweeps idle clients every interval until ctx is done.
func (r *ClientRegistry) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				log.Debug().Int("swept", n).Msg("Disposed idle clients")
			}
		}
	}
}

// Close disposes every client.
func (r *ClientRegistry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*client)
	r.mu.Unlock()

	for _, c := range clients {
		c.resolver.Dispose()
	}
	middleware.SetActiveClients(0)
}
