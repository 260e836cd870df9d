// Package verify runs the task completion flow of the detail view.
//
// The "verification" is a placeholder: it plays a fixed script of status
// messages on a timer and then awards the points. Nothing about the task is
// checked against the outside world.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"linkrewards/internal/models"
	"linkrewards/internal/notify"
)

// Steps is the scripted sequence shown while verifying.
var Steps = [...]string{
	"Checking task URL accessibility...",
	"Verifying task completion conditions...",
	"Validating user interaction...",
	"Confirming requirements...",
	"Processing points reward...",
}

// DefaultStepDelay is the pause after each step.
const DefaultStepDelay = time.Second

const (
	successMessage = "Task completed! Points awarded."
	failureMessage = "Failed to verify task completion"
)

var (
	ErrBusy             = errors.New("verification already running")
	ErrClosed           = errors.New("detail view closed")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// State of the detail view. The view itself only moves between Idle,
// Verifying and Success; a failed attempt returns it to Idle and Failed is
// reported through Snapshot.Outcome.
type State string

const (
	Idle      State = "idle"
	Verifying State = "verifying"
	Success   State = "success"
	Failed    State = "failed"
)

// Identity re-resolves the signed-in user.
type Identity interface {
	GetUser(ctx context.Context) (*models.User, error)
}

// Awarder credits a completed task to a user.
type Awarder interface {
	AwardTask(ctx context.Context, userID string, taskID, points int64) error
}

// Options tune a Detail.
type Options struct {
	StepDelay time.Duration
	// OnAwarded runs after the points were written, before the view closes.
	OnAwarded func(ctx context.Context)
}

// Snapshot is the renderable state of a Detail.
type Snapshot struct {
	Task     models.Task `json:"task"`
	State    State       `json:"state"`
	Progress int         `json:"progress"`
	Steps    []string    `json:"steps"`
	// Outcome is the result of the last finished attempt, empty before one.
	Outcome State  `json:"outcome,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Closed  bool   `json:"closed"`
}

// Detail is one open task detail view.
type Detail struct {
	task     models.Task
	identity Identity
	awarder  Awarder
	notifier *notify.Notifier
	logger   *slog.Logger
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	progress int
	log      []string
	outcome  State
	reason   string
	closed   bool
	done     chan struct{}
}

// Open creates an idle detail view for task.
func Open(task models.Task, identity Identity, awarder Awarder, notifier *notify.Notifier, logger *slog.Logger, opts Options) *Detail {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = DefaultStepDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Detail{
		task:     task,
		identity: identity,
		awarder:  awarder,
		notifier: notifier,
		logger:   logger.With(slog.Int64("task_id", task.ID)),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		state:    Idle,
	}
}

// Task returns the task shown by the view.
func (d *Detail) Task() models.Task {
	return d.task
}

// Snapshot returns a copy of the current view state.
func (d *Detail) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		Task:     d.task,
		State:    d.state,
		Progress: d.progress,
		Steps:    append([]string{}, d.log...),
		Outcome:  d.outcome,
		Reason:   d.reason,
		Closed:   d.closed,
	}
}

// Verify starts the scripted sequence in the background.
func (d *Detail) Verify() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.state == Verifying {
		return ErrBusy
	}
	d.state = Verifying
	d.progress = 0
	d.log = nil
	d.done = make(chan struct{})
	go d.run(d.done)
	return nil
}

// Done is closed once the running attempt has finished. Without an attempt
// the returned channel is already closed.
func (d *Detail) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return d.done
}

// Close discards the view. A pending sequence stops before its write; a
// write that already started is not interrupted.
func (d *Detail) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
}

// Closed reports whether the view was closed.
func (d *Detail) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Detail) run(done chan struct{}) {
	defer close(done)

	for i, step := range Steps {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		d.log = append(d.log, step)
		d.progress = (i + 1) * 100 / len(Steps)
		d.mu.Unlock()

		timer := time.NewTimer(d.opts.StepDelay)
		select {
		case <-d.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	user, err := d.identity.GetUser(d.ctx)
	if d.ctx.Err() != nil {
		return
	}
	if err == nil && user == nil {
		err = ErrNotAuthenticated
	}
	if err != nil {
		d.fail(err)
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	writeCtx := context.WithoutCancel(d.ctx)
	if err := d.awarder.AwardTask(writeCtx, user.ID, d.task.ID, d.task.Points); err != nil {
		d.fail(err)
		return
	}

	d.logger.Info("task awarded", slog.String("user_id", user.ID), slog.Int64("points", d.task.Points))
	if d.opts.OnAwarded != nil {
		d.opts.OnAwarded(writeCtx)
	}
	d.notifier.Success(successMessage)

	d.mu.Lock()
	d.state = Success
	d.outcome = Success
	d.reason = ""
	d.progress = 0
	d.log = nil
	d.closed = true
	d.mu.Unlock()
	d.cancel()
}

func (d *Detail) fail(err error) {
	d.logger.Warn("verification failed", slog.String("error", err.Error()))
	if errors.Is(err, ErrNotAuthenticated) {
		d.notifier.Error(failureMessage + ": " + err.Error())
	} else {
		d.notifier.Error(failureMessage)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Idle
	d.outcome = Failed
	d.reason = err.Error()
	d.progress = 0
	d.log = nil
}
