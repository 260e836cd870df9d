package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkrewards/internal/auth"
	"linkrewards/internal/models"
	"linkrewards/internal/notify"
	"linkrewards/internal/storage/sqlite"
	"linkrewards/internal/verify"
)

func newTestRegistry(t *testing.T) (*Registry, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "app.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	provider, err := auth.NewProvider(store, "test-key", time.Hour, nil)
	require.NoError(t, err)

	reg := NewRegistry(provider, store, Config{StepDelay: time.Millisecond, RedeemGuard: true}, nil)
	t.Cleanup(reg.Close)
	return reg, store
}

func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	for _, task := range []models.Task{
		{ID: 1, Title: "Install app", Points: 3000, Section: "Apps", SortOrder: 2},
		{ID: 2, Title: "Follow", Points: 2000, Section: "Social", SortOrder: 1},
		{ID: 3, Title: "Rate app", Points: 100, Section: "Apps", SortOrder: 1},
	} {
		_, err := store.UpsertTask(ctx, task)
		require.NoError(t, err)
	}
}

func TestCreateLoadsCatalog(t *testing.T) {
	reg, store := newTestRegistry(t)
	seed(t, store)

	c := reg.Create(context.Background())

	board := c.Board()
	require.Len(t, board, 2)
	assert.Equal(t, "Social", board[0].Name)
	assert.Equal(t, "Apps", board[1].Name)
	assert.Equal(t, "Rate app", board[1].Tasks[0].Title)
	_, ok := c.User()
	assert.False(t, ok)
	assert.Empty(t, c.Notifications())
}

func TestVerifyThenRedeem(t *testing.T) {
	reg, store := newTestRegistry(t)
	seed(t, store)
	ctx := context.Background()

	c := reg.Create(ctx)
	_, err := c.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	u, ok := c.User()
	require.True(t, ok)

	for _, id := range []int64{1, 2} {
		_, err := c.OpenTask(id)
		require.NoError(t, err)
		d, err := c.Detail()
		require.NoError(t, err)
		require.NoError(t, d.Verify())
		<-d.Done()
		assert.Equal(t, verify.Success, d.Snapshot().State)
	}
	_, err = c.Detail()
	assert.ErrorIs(t, err, ErrNoDetail)

	row, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), row.Points)
	assert.Equal(t, []int64{1, 2}, row.CompletedTasks)

	local, _ := c.User()
	assert.Equal(t, int64(5000), local.Points)

	flow, err := c.OpenRewards()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), flow.Balance())
	require.NoError(t, c.Redeem(ctx, 5))

	row, err = store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), row.Points)
	_, err = c.Rewards()
	assert.ErrorIs(t, err, ErrNoRewards)

	var messages []string
	for _, n := range c.Notifications() {
		assert.Equal(t, notify.KindSuccess, n.Kind)
		messages = append(messages, n.Message)
	}
	assert.Equal(t, []string{
		"Task completed! Points awarded.",
		"Task completed! Points awarded.",
		"Cashout request for $5 submitted successfully!",
	}, messages)
}

func TestCloseDetailBeforeWriteLeavesUserUntouched(t *testing.T) {
	reg, store := newTestRegistry(t)
	seed(t, store)
	ctx := context.Background()
	reg.cfg.StepDelay = time.Hour

	c := reg.Create(ctx)
	signed, err := c.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, err = c.OpenTask(1)
	require.NoError(t, err)
	d, err := c.Detail()
	require.NoError(t, err)
	require.NoError(t, d.Verify())
	c.CloseDetail()
	<-d.Done()

	row, err := store.GetUser(ctx, signed.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), row.Points)
	assert.Empty(t, row.CompletedTasks)
}

func TestSignedOutClientCannotOpenDialogs(t *testing.T) {
	reg, store := newTestRegistry(t)
	seed(t, store)

	c := reg.Create(context.Background())
	_, err := c.OpenTask(1)
	assert.ErrorIs(t, err, ErrSignedOut)
	_, err = c.OpenRewards()
	assert.ErrorIs(t, err, ErrSignedOut)
}

func TestOpenUnknownTask(t *testing.T) {
	reg, store := newTestRegistry(t)
	seed(t, store)
	ctx := context.Background()

	c := reg.Create(ctx)
	_, err := c.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, err = c.OpenTask(99)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestSweepDropsIdleClients(t *testing.T) {
	reg, _ := newTestRegistry(t)
	now := time.Now()
	reg.now = func() time.Time { return now }

	c := reg.Create(context.Background())
	assert.Equal(t, 1, reg.Len())

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 0, reg.Sweep())
	_, ok := reg.Get(c.ID)
	assert.True(t, ok)

	now = now.Add(time.Hour)
	assert.Equal(t, 1, reg.Sweep())
	_, ok = reg.Get(c.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, c.auth.Listeners())
}

func TestDropReleasesSubscription(t *testing.T) {
	reg, _ := newTestRegistry(t)
	c := reg.Create(context.Background())
	assert.Equal(t, 1, c.auth.Listeners())

	reg.Drop(c.ID)
	reg.Drop(c.ID)
	assert.Equal(t, 0, c.auth.Listeners())
	assert.Equal(t, 0, reg.Len())
}

func TestVerifyWithExpiredSessionFailsNotAuthenticated(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "expired.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	seed(t, store)

	// tokens expire as soon as they are issued
	provider, err := auth.NewProvider(store, "test-key", time.Nanosecond, nil)
	require.NoError(t, err)
	reg := NewRegistry(provider, store, Config{StepDelay: time.Millisecond, RedeemGuard: true}, nil)
	t.Cleanup(reg.Close)
	ctx := context.Background()

	c := reg.Create(ctx)
	signed, err := c.SignUp(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, err = c.OpenTask(1)
	require.NoError(t, err)
	d, err := c.Detail()
	require.NoError(t, err)
	require.NoError(t, d.Verify())
	<-d.Done()

	snap := d.Snapshot()
	assert.Equal(t, verify.Idle, snap.State)
	assert.Equal(t, verify.Failed, snap.Outcome)
	assert.Equal(t, verify.ErrNotAuthenticated.Error(), snap.Reason)

	notes := c.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindError, notes[0].Kind)
	assert.Equal(t, "Failed to verify task completion: not authenticated", notes[0].Message)

	_, ok := c.User()
	assert.False(t, ok)
	_, err = c.OpenTask(1)
	assert.ErrorIs(t, err, ErrSignedOut)

	row, err := store.GetUser(ctx, signed.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), row.Points)
}

func TestCreateEvictsLeastRecentlySeenAtLimit(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.cfg.MaxClients = 2
	now := time.Now()
	reg.now = func() time.Time { return now }

	first := reg.Create(context.Background())
	now = now.Add(time.Second)
	second := reg.Create(context.Background())
	now = now.Add(time.Second)
	_, ok := reg.Get(first.ID)
	require.True(t, ok)

	now = now.Add(time.Second)
	third := reg.Create(context.Background())
	assert.Equal(t, 2, reg.Len())

	_, ok = reg.Get(second.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, second.auth.Listeners())
	_, ok = reg.Get(first.ID)
	assert.True(t, ok)
	_, ok = reg.Get(third.ID)
	assert.True(t, ok)
}
