package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/duynhne/mentorpath-service/internal/core/domain"
)

// Client is one browser's identity state. It implements
// domain.IdentityProvider and notifies listeners after every change.
type Client struct {
	authority *Authority

	mu        sync.Mutex
	current   *domain.Identity
	token     IssuedToken
	listeners map[uint64]domain.IdentityListener
	nextID    uint64
}

var _ domain.IdentityProvider = (*Client)(nil)

// SignInWithPassword authenticates with email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, error) {
	user, err := c.authority.verifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, user)
}

// SignInWithFederated completes a federated sign-in with an authorization code.
func (c *Client) SignInWithFederated(ctx context.Context, provider, credential string) (*domain.Identity, error) {
	user, err := c.authority.federatedUser(ctx, provider, credential)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, user)
}

// Restore re-establishes the identity behind a previously issued token.
func (c *Client) Restore(ctx context.Context, token string) (*domain.Identity, error) {
	user, tok, err := c.authority.restore(ctx, token)
	if err != nil {
		return nil, err
	}

	id := user.Identity()
	c.mu.Lock()
	c.current = id
	c.token = tok
	c.mu.Unlock()

	c.notify(ctx, id)
	return copyIdentity(id), nil
}

// SignOut revokes the current token. Signing out a signed-out client is a no-op.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return nil
	}
	tokenID := c.token.TokenID
	c.mu.Unlock()

	if err := c.authority.tokens.Revoke(ctx, tokenID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	c.mu.Lock()
	c.current = nil
	c.token = IssuedToken{}
	c.mu.Unlock()

	c.notify(ctx, nil)
	return nil
}

// OnChange registers listener; the returned function removes it and may be
// called more than once.
func (c *Client) OnChange(listener domain.IdentityListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = listener

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Current returns the signed-in identity, or nil.
func (c *Client) Current() *domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyIdentity(c.current)
}

// Token returns the bearer token of the current identity, or "".
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.Token
}

func (c *Client) establish(ctx context.Context, user *domain.UserRow) (*domain.Identity, error) {
	tok, err := c.authority.issue(ctx, user.UID)
	if err != nil {
		return nil, err
	}

	id := user.Identity()
	c.mu.Lock()
	c.current = id
	c.token = tok
	c.mu.Unlock()

	c.notify(ctx, id)
	return copyIdentity(id), nil
}

// notify calls listeners outside the lock so they may call back into the client.
func (c *Client) notify(ctx context.Context, id *domain.Identity) {
	c.mu.Lock()
	listeners := make([]domain.IdentityListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(ctx, copyIdentity(id))
	}
}

func copyIdentity(id *domain.Identity) *domain.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
