package storage

import (
	"context"
	"errors"

	"linkrewards/internal/models"
)

var (
	// ErrUserNotFound is returned when no users row matches the identifier.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned on registration with an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrBalanceChanged is returned by SetPointsIfUnchanged when the stored
	// balance no longer equals the expected value.
	ErrBalanceChanged = errors.New("point balance changed concurrently")
)

// Store is the hosted backend the client talks to: the tasks catalog,
// the users table and the credentials used by the auth provider.
type Store interface {
	// ListTasks returns every task ordered by sort_order ascending.
	ListTasks(ctx context.Context) ([]models.Task, error)
	// UpsertTask inserts or replaces a catalog row.
	UpsertTask(ctx context.Context, t models.Task) (models.Task, error)

	CreateUser(ctx context.Context, username, passwordHash string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	// Credentials resolves a username to its user id and password hash.
	Credentials(ctx context.Context, username string) (string, string, error)

	// AwardTask adds points and appends taskID to completed_tasks in a single
	// statement evaluated by the database.
	AwardTask(ctx context.Context, userID string, taskID, points int64) error
	// SetPoints overwrites the balance.
	SetPoints(ctx context.Context, userID string, points int64) error
	// SetPointsIfUnchanged overwrites the balance only while it still equals expected.
	SetPointsIfUnchanged(ctx context.Context, userID string, expected, points int64) error

	Close() error
}
