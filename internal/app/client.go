package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"linkrewards/internal/auth"
	"linkrewards/internal/models"
	"linkrewards/internal/notify"
	"linkrewards/internal/rewards"
	"linkrewards/internal/session"
	"linkrewards/internal/storage"
	"linkrewards/internal/tasks"
	"linkrewards/internal/verify"
)

var (
	ErrSignedOut    = errors.New("not signed in")
	ErrTaskNotFound = errors.New("task not found")
	ErrNoDetail     = errors.New("no task opened")
	ErrNoRewards    = errors.New("rewards not opened")
)

// Config holds the knobs shared by every client.
type Config struct {
	StepDelay         time.Duration
	RedeemGuard       bool
	NotificationLimit int
	IdleTimeout       time.Duration
	// MaxClients bounds the registry; the least recently seen client is
	// dropped to make room for a new one.
	MaxClients int
}

// Client is the state of one browser: its session, the loaded catalog and
// whichever dialogs are open.
type Client struct {
	ID string

	auth     *auth.Client
	store    storage.Store
	notifier *notify.Notifier
	session  *session.Store
	repo     *tasks.Repository
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	tasks    []models.Task
	detail   *verify.Detail
	rewards  *rewards.Flow
	lastSeen time.Time
}

func newClient(id string, provider *auth.Provider, store storage.Store, cfg Config, logger *slog.Logger) *Client {
	logger = logger.With(slog.String("client_id", id))
	authClient := provider.NewClient()
	notifier := notify.New(cfg.NotificationLimit, logger)
	return &Client{
		ID:       id,
		auth:     authClient,
		store:    store,
		notifier: notifier,
		session:  session.New(authClient, notifier, logger),
		repo:     tasks.NewRepository(store, notifier, logger),
		cfg:      cfg,
		logger:   logger,
		tasks:    []models.Task{},
	}
}

// Init resolves the session and loads the catalog.
func (c *Client) Init(ctx context.Context) {
	c.session.Init(ctx)
	c.RefreshTasks(ctx)
}

// Notifications drains pending messages.
func (c *Client) Notifications() []notify.Notification {
	return c.notifier.Drain()
}

// User is the local projection of the signed-in user.
func (c *Client) User() (models.User, bool) {
	return c.session.Current()
}

func (c *Client) SignUp(ctx context.Context, username, password string) (models.User, error) {
	s, err := c.auth.SignUp(ctx, username, password)
	if err != nil {
		return models.User{}, err
	}
	return s.User, nil
}

func (c *Client) SignIn(ctx context.Context, username, password string) (models.User, error) {
	s, err := c.auth.SignIn(ctx, username, password)
	if err != nil {
		return models.User{}, err
	}
	return s.User, nil
}

// SignOut ends the session and discards open dialogs.
func (c *Client) SignOut() {
	c.closeDialogs()
	c.auth.SignOut()
}

// RefreshTasks re-fetches the catalog.
func (c *Client) RefreshTasks(ctx context.Context) {
	fetched := c.repo.Fetch(ctx)
	c.mu.Lock()
	c.tasks = fetched
	c.mu.Unlock()
}

// Board groups the loaded catalog by section.
func (c *Client) Board() []models.Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tasks.Group(c.tasks)
}

// OpenTask shows the detail view of a task, replacing any open one.
func (c *Client) OpenTask(id int64) (verify.Snapshot, error) {
	if _, ok := c.User(); !ok {
		return verify.Snapshot{}, ErrSignedOut
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := tasks.Find(c.tasks, id)
	if !ok {
		return verify.Snapshot{}, ErrTaskNotFound
	}
	if c.detail != nil {
		c.detail.Close()
	}
	c.detail = verify.Open(task, c.auth, c.store, c.notifier, c.logger, verify.Options{
		StepDelay: c.cfg.StepDelay,
		OnAwarded: c.refreshSession,
	})
	return c.detail.Snapshot(), nil
}

// Detail returns the open detail view, if any.
func (c *Client) Detail() (*verify.Detail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detail == nil || c.detail.Closed() {
		return nil, ErrNoDetail
	}
	return c.detail, nil
}

// CloseDetail discards the detail view.
func (c *Client) CloseDetail() {
	c.mu.Lock()
	d := c.detail
	c.detail = nil
	c.mu.Unlock()
	if d != nil {
		d.Close()
	}
}

// OpenRewards opens the cash-out dialog against the current local balance.
func (c *Client) OpenRewards() (*rewards.Flow, error) {
	u, ok := c.User()
	if !ok {
		return nil, ErrSignedOut
	}
	flow := rewards.Open(u, c.store, c.notifier, c.logger, c.cfg.RedeemGuard)
	c.mu.Lock()
	c.rewards = flow
	c.mu.Unlock()
	return flow, nil
}

// Rewards returns the open cash-out dialog.
func (c *Client) Rewards() (*rewards.Flow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rewards == nil || c.rewards.Closed() {
		return nil, ErrNoRewards
	}
	return c.rewards, nil
}

// Redeem submits a cash-out from the open dialog.
func (c *Client) Redeem(ctx context.Context, amount int64) error {
	flow, err := c.Rewards()
	if err != nil {
		return err
	}
	if err := flow.Redeem(ctx, amount); err != nil {
		return err
	}
	c.refreshSession(ctx)
	return nil
}

// CloseRewards dismisses the cash-out dialog.
func (c *Client) CloseRewards() {
	c.mu.Lock()
	flow := c.rewards
	c.rewards = nil
	c.mu.Unlock()
	if flow != nil {
		flow.Close()
	}
}

// Close tears the client down: open dialogs are discarded and the auth
// subscription is released.
func (c *Client) Close() {
	c.closeDialogs()
	c.session.Close()
}

func (c *Client) closeDialogs() {
	c.CloseDetail()
	c.CloseRewards()
}

func (c *Client) refreshSession(ctx context.Context) {
	if err := c.session.Refresh(ctx); err != nil {
		c.logger.Warn("refresh session", slog.String("error", err.Error()))
	}
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}
