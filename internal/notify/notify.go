package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Kind classifies a notification for display.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a transient, human-readable message for the user.
type Notification struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier queues notifications until the frontend drains them.
type Notifier struct {
	mu     sync.Mutex
	queue  []Notification
	limit  int
	logger *slog.Logger
}

// New creates a Notifier holding at most limit undelivered messages; older
// ones are dropped first. A limit of zero means unbounded.
func New(limit int, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{limit: limit, logger: logger}
}

// Success queues a confirmation message.
func (n *Notifier) Success(msg string) {
	n.push(KindSuccess, msg)
}

// Error queues a failure message.
func (n *Notifier) Error(msg string) {
	n.push(KindError, msg)
}

func (n *Notifier) push(kind Kind, msg string) {
	n.logger.Debug("notification", slog.String("kind", string(kind)), slog.String("message", msg))

	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(n.queue, Notification{Kind: kind, Message: msg, At: time.Now()})
	if n.limit > 0 && len(n.queue) > n.limit {
		n.queue = n.queue[len(n.queue)-n.limit:]
	}
}

// Drain returns and clears every pending notification.
func (n *Notifier) Drain() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.queue
	n.queue = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Pending returns a copy of the queue without clearing it.
func (n *Notifier) Pending() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification{}, n.queue...)
}
