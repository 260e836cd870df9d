package auth

import (
	"context"
	"errors"
	"sync"

	"linkrewards/internal/models"
)

// Event is an auth state transition observed by a Client.
type Event string

const (
	SignedIn  Event = "SIGNED_IN"
	SignedOut Event = "SIGNED_OUT"
)

// Listener receives auth state changes. session is nil on SignedOut.
type Listener func(event Event, session *Session)

type subscription struct {
	id int
	fn Listener
}

// Client holds the session of one browser and fans out its auth events.
type Client struct {
	provider *Provider

	mu        sync.Mutex
	session   *Session
	listeners []subscription
	nextID    int
}

// NewClient returns a signed-out client.
func (p *Provider) NewClient() *Client {
	return &Client{provider: p}
}

// SignUp registers an account and signs the client in.
func (c *Client) SignUp(ctx context.Context, username, password string) (Session, error) {
	s, err := c.provider.SignUp(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	c.set(&s, SignedIn)
	return s, nil
}

// SignIn authenticates and stores the resulting session.
func (c *Client) SignIn(ctx context.Context, username, password string) (Session, error) {
	s, err := c.provider.SignIn(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	c.set(&s, SignedIn)
	return s, nil
}

// SignOut forgets the session. Signing out twice emits a single event.
func (c *Client) SignOut() {
	c.mu.Lock()
	had := c.session != nil
	c.mu.Unlock()
	if had {
		c.set(nil, SignedOut)
	}
}

// GetSession returns the held session, or nil when signed out or expired.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil, nil
	}
	if _, err := c.provider.subject(s.AccessToken); err != nil {
		c.set(nil, SignedOut)
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp := *s
	return &cp, nil
}

// GetUser resolves the current identity against the backend. It returns nil
// without error when no session is held. An expired or rejected token ends
// the session the same way GetSession does.
func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil, nil
	}
	u, err := c.provider.Verify(ctx, s.AccessToken)
	if errors.Is(err, ErrInvalidToken) {
		c.set(nil, SignedOut)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// OnAuthStateChange registers fn for every later transition and returns the
// function that removes it. The returned function may be called repeatedly.
func (c *Client) OnAuthStateChange(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, sub := range c.listeners {
				if sub.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Listeners reports how many observers are registered.
func (c *Client) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *Client) set(s *Session, event Event) {
	c.mu.Lock()
	c.session = s
	subs := append([]subscription(nil), c.listeners...)
	c.mu.Unlock()

	for _, sub := range subs {
		if s == nil {
			sub.fn(event, nil)
			continue
		}
		cp := *s
		sub.fn(event, &cp)
	}
}
