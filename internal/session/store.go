package session

import (
	"context"
	"log/slog"
	"sync"

	"linkrewards/internal/auth"
	"linkrewards/internal/models"
	"linkrewards/internal/notify"
)

const initFailedMessage = "Failed to initialize the application"

// AuthClient is the part of the auth SDK the session store depends on.
type AuthClient interface {
	GetSession(ctx context.Context) (*auth.Session, error)
	GetUser(ctx context.Context) (*models.User, error)
	OnAuthStateChange(fn auth.Listener) (unsubscribe func())
}

// Store keeps the local projection of the signed-in user.
type Store struct {
	client   AuthClient
	notifier *notify.Notifier
	logger   *slog.Logger

	mu          sync.RWMutex
	user        *models.User
	unsubscribe func()
	closeOnce   sync.Once
}

// New returns an unauthenticated store; call Init to resolve the session.
func New(client AuthClient, notifier *notify.Notifier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, notifier: notifier, logger: logger}
}

// Init registers for auth events and resolves the session currently held
// by the provider. Failures leave the store signed out and are reported to
// the user; they are never returned.
func (s *Store) Init(ctx context.Context) {
	s.mu.Lock()
	if s.unsubscribe == nil {
		s.unsubscribe = s.client.OnAuthStateChange(s.handle)
	}
	s.mu.Unlock()

	sess, err := s.client.GetSession(ctx)
	if err != nil {
		s.logger.Error("resolve session", slog.String("error", err.Error()))
		s.notifier.Error(initFailedMessage)
		s.setUser(nil)
		return
	}
	s.setUser(project(sess))
}

// Refresh replaces the projection with the user row as the backend has it now.
func (s *Store) Refresh(ctx context.Context) error {
	u, err := s.client.GetUser(ctx)
	if err != nil {
		return err
	}
	if u != nil {
		normalize(u)
	}
	s.setUser(u)
	return nil
}

// Current returns a copy of the signed-in user.
func (s *Store) Current() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	u := *s.user
	u.CompletedTasks = append([]int64{}, s.user.CompletedTasks...)
	return u, true
}

// Close removes the auth subscription. Only the first call has an effect.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsubscribe := s.unsubscribe
		s.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	})
}

func (s *Store) handle(event auth.Event, sess *auth.Session) {
	s.logger.Info("auth state changed", slog.String("event", string(event)))
	s.setUser(project(sess))
}

func (s *Store) setUser(u *models.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func project(sess *auth.Session) *models.User {
	if sess == nil {
		return nil
	}
	u := sess.User
	u.CompletedTasks = append([]int64{}, sess.User.CompletedTasks...)
	normalize(&u)
	return &u
}

func normalize(u *models.User) {
	if u.CompletedTasks == nil {
		u.CompletedTasks = []int64{}
	}
}
