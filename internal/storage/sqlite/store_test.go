package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkrewards/internal/models"
	"linkrewards/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "link.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestListTasksOrderedBySortOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, task := range []models.Task{
		{Title: "Follow", Section: "Social", SortOrder: 3, Points: 50, Conditions: []string{"Follow the account"}},
		{Title: "Install", Section: "Apps", SortOrder: 1, Points: 500},
		{Title: "Survey", Section: "Social", SortOrder: 2, Points: 120},
	} {
		_, err := store.UpsertTask(ctx, task)
		require.NoError(t, err)
	}

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "Install", tasks[0].Title)
	assert.Equal(t, "Survey", tasks[1].Title)
	assert.Equal(t, "Follow", tasks[2].Title)
	assert.Equal(t, []string{"Follow the account"}, tasks[2].Conditions)
	assert.Equal(t, []string{}, tasks[0].Conditions)
}

func TestListTasksEmptyCatalog(t *testing.T) {
	store := openTestStore(t)

	tasks, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUpsertTaskReplacesExistingRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created, err := store.UpsertTask(ctx, models.Task{ID: 7, Title: "Watch", Points: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)

	_, err = store.UpsertTask(ctx, models.Task{ID: 7, Title: "Watch video", Points: 25})
	require.NoError(t, err)

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Watch video", tasks[0].Title)
	assert.Equal(t, int64(25), tasks[0].Points)

	_, err = store.UpsertTask(ctx, models.Task{Title: "  "})
	assert.Error(t, err)
}

func TestCreateUserAndCredentials(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = store.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, storage.ErrUsernameTaken)

	id, hash, err := store.Credentials(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.Equal(t, "hash", hash)

	_, _, err = store.Credentials(ctx, "bob")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Points)
	assert.Empty(t, got.CompletedTasks)
}

func TestAwardTaskAppendsWithoutDedup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	require.NoError(t, store.AwardTask(ctx, u.ID, 3, 100))
	require.NoError(t, store.AwardTask(ctx, u.ID, 3, 100))

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Points)
	assert.Equal(t, []int64{3, 3}, got.CompletedTasks)

	assert.ErrorIs(t, store.AwardTask(ctx, "missing", 1, 1), storage.ErrUserNotFound)
}

func TestAwardTaskConcurrentUpdatesAreNotLost(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(taskID int64) {
			defer wg.Done()
			assert.NoError(t, store.AwardTask(ctx, u.ID, taskID, 10))
		}(int64(i))
	}
	wg.Wait()

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Points)
	assert.Len(t, got.CompletedTasks, 20)
}

func TestSetPoints(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	require.NoError(t, store.SetPoints(ctx, u.ID, 5000))
	require.NoError(t, store.SetPointsIfUnchanged(ctx, u.ID, 5000, 0))

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Points)

	assert.ErrorIs(t, store.SetPointsIfUnchanged(ctx, u.ID, 5000, 0), storage.ErrBalanceChanged)
	assert.ErrorIs(t, store.SetPointsIfUnchanged(ctx, "missing", 0, 0), storage.ErrUserNotFound)
	assert.ErrorIs(t, store.SetPoints(ctx, "missing", 1), storage.ErrUserNotFound)
}
