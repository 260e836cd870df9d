package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkrewards/internal/storage"
	"linkrewards/internal/storage/sqlite"
)

func newTestProvider(t *testing.T) (*Provider, storage.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "auth.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	p, err := NewProvider(store, "test-key", time.Hour, nil)
	require.NoError(t, err)
	return p, store
}

func TestSignUpAndSignIn(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	s, err := p.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, s.AccessToken)
	assert.Equal(t, "alice", s.User.Username)

	_, err = p.SignIn(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	s2, err := p.SignIn(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	u, err := p.Verify(ctx, s2.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, u.ID)
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	p, _ := newTestProvider(t)

	_, err := p.SignUp(context.Background(), "alice", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	p, store := newTestProvider(t)
	ctx := context.Background()

	other, err := NewProvider(store, "other-key", time.Hour, nil)
	require.NoError(t, err)
	s, err := other.SignUp(ctx, "mallory", "correct-horse")
	require.NoError(t, err)

	_, err = p.Verify(ctx, s.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClientEmitsEventsUntilUnsubscribed(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	c := p.NewClient()

	var events []Event
	unsubscribe := c.OnAuthStateChange(func(e Event, s *Session) {
		events = append(events, e)
		if e == SignedIn {
			assert.NotNil(t, s)
		} else {
			assert.Nil(t, s)
		}
	})
	assert.Equal(t, 1, c.Listeners())

	_, err := c.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	c.SignOut()
	c.SignOut()

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, c.Listeners())

	_, err = c.SignIn(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	assert.Equal(t, []Event{SignedIn, SignedOut}, events)
}

func TestClientGetSessionAndUser(t *testing.T) {
	p, store := newTestProvider(t)
	ctx := context.Background()
	c := p.NewClient()

	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	u, err := c.GetUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	signed, err := c.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, store.SetPoints(ctx, signed.User.ID, 700))

	s, err = c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(0), s.User.Points, "session metadata is a sign-in snapshot")

	u, err = c.GetUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(700), u.Points)
}

func TestClientDropsExpiredSession(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	now := time.Now()
	p.now = func() time.Time { return now }
	c := p.NewClient()

	_, err := c.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	var signedOut bool
	c.OnAuthStateChange(func(e Event, _ *Session) { signedOut = e == SignedOut })

	now = now.Add(2 * time.Hour)
	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.True(t, signedOut)
}

func TestClientGetUserEndsExpiredSession(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	now := time.Now()
	p.now = func() time.Time { return now }
	c := p.NewClient()

	_, err := c.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	var events []Event
	c.OnAuthStateChange(func(e Event, _ *Session) { events = append(events, e) })

	now = now.Add(2 * time.Hour)
	u, err := c.GetUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Equal(t, []Event{SignedOut}, events)

	s, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, []Event{SignedOut}, events)
}
