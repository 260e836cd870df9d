package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"linkrewards/internal/models"
	"linkrewards/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// Session is an authenticated session. User is a snapshot taken when the
// session was issued and is not refreshed afterwards.
type Session struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        models.User `json:"user"`
}

// Provider issues and verifies sessions for accounts kept in the store.
type Provider struct {
	store  storage.Store
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewProvider builds a provider signing HS256 tokens with key.
func NewProvider(store storage.Store, key string, ttl time.Duration, logger *slog.Logger) (*Provider, error) {
	if key == "" {
		return nil, fmt.Errorf("empty signing key")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{store: store, key: []byte(key), ttl: ttl, now: time.Now, logger: logger}, nil
}

// SignUp registers a new account and returns a session for it.
func (p *Provider) SignUp(ctx context.Context, username, password string) (Session, error) {
	if len(password) < minPasswordLength {
		return Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := p.store.CreateUser(ctx, username, string(hash))
	if err != nil {
		return Session{}, err
	}
	p.logger.Info("user registered", slog.String("user_id", u.ID))
	return p.issue(u)
}

// SignIn checks the password and returns a fresh session.
func (p *Provider) SignIn(ctx context.Context, username, password string) (Session, error) {
	id, hash, err := p.store.Credentials(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	u, err := p.store.GetUser(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return p.issue(u)
}

// Verify validates the token and re-reads the user it was issued for.
func (p *Provider) Verify(ctx context.Context, token string) (models.User, error) {
	subject, err := p.subject(token)
	if err != nil {
		return models.User{}, err
	}
	return p.store.GetUser(ctx, subject)
}

func (p *Provider) subject(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (p *Provider) issue(u models.User) (Session, error) {
	now := p.now()
	expires := now.Add(p.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(p.key)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{AccessToken: signed, ExpiresAt: expires, User: u}, nil
}
