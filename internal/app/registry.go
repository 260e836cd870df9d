package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkrewards/internal/auth"
	"linkrewards/internal/storage"
)

// Registry owns the clients of every connected browser.
type Registry struct {
	provider *auth.Provider
	store    storage.Store
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry builds an empty registry.
func NewRegistry(provider *auth.Provider, store storage.Store, cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 10000
	}
	return &Registry{
		provider: provider,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		clients:  make(map[string]*Client),
	}
}

// Get returns a known client and marks it active.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	c, ok := r.clients[id]
	r.mu.Unlock()
	if ok {
		c.touch(r.now())
	}
	return c, ok
}

// Create registers and initializes a new client.
func (r *Registry) Create(ctx context.Context) *Client {
	c := newClient(uuid.NewString(), r.provider, r.store, r.cfg, r.logger)
	c.touch(r.now())
	c.Init(ctx)

	r.mu.Lock()
	r.clients[c.ID] = c
	var evicted *Client
	if len(r.clients) > r.cfg.MaxClients {
		evicted = r.oldestLocked(c.ID)
		if evicted != nil {
			delete(r.clients, evicted.ID)
		}
	}
	r.mu.Unlock()

	if evicted != nil {
		evicted.Close()
		r.logger.Warn("client limit reached; dropped least recently seen",
			slog.String("client_id", evicted.ID), slog.Int("limit", r.cfg.MaxClients))
	}
	r.logger.Debug("client created", slog.String("client_id", c.ID))
	return c
}

func (r *Registry) oldestLocked(skip string) *Client {
	var oldest *Client
	var seen time.Time
	for id, c := range r.clients {
		if id == skip {
			continue
		}
		if at := c.idleSince(); oldest == nil || at.Before(seen) {
			oldest, seen = c, at
		}
	}
	return oldest
}

// Drop tears a client down and forgets it.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	c, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Len reports the number of live clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep drops clients idle for longer than the configured timeout.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var stale []*Client
	for id, c := range r.clients {
		if c.idleSince().Before(cutoff) {
			stale = append(stale, c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("dropped idle clients", slog.Int("count", len(stale)))
	}
	return len(stale)
}

// Run sweeps periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close tears down every client.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}
