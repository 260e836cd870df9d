package tasks

import (
	"context"
	"log/slog"

	"linkrewards/internal/models"
	"linkrewards/internal/notify"
)

const fetchFailedMessage = "Failed to load tasks. Please try again later."

// Lister is the read side of the backend used by the repository.
type Lister interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
}

// Repository fetches the task catalog for display.
type Repository struct {
	backend  Lister
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewRepository wires a repository to the backend.
func NewRepository(backend Lister, notifier *notify.Notifier, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{backend: backend, notifier: notifier, logger: logger}
}

// Fetch returns every task ordered by sort order. On failure the user is
// notified once and an empty catalog is returned.
func (r *Repository) Fetch(ctx context.Context) []models.Task {
	tasks, err := r.backend.ListTasks(ctx)
	if err != nil {
		r.logger.Error("fetch tasks", slog.String("error", err.Error()))
		r.notifier.Error(fetchFailedMessage)
		return []models.Task{}
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks
}
