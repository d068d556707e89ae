package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned when a username/password pair is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Manager moves a browser between the anonymous and admin states.
type Manager struct {
	admins   *AdminRepository
	sessions SessionStore
	key      string
	issuer   string
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a manager; ttl <= 0 defaults to 12 hours.
func NewManager(admins *AdminRepository, sessions SessionStore, signingKey string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		admins:   admins,
		sessions: sessions,
		key:      signingKey,
		issuer:   "faceattend",
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL is the lifetime of new sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Login verifies credentials and opens a session, returning the signed
// cookie token.
func (m *Manager) Login(ctx context.Context, username, password string) (string, Session, error) {
	if username == "" || password == "" {
		return "", Session{}, ErrInvalidCredentials
	}
	admin, err := m.admins.Get(ctx, username)
	if err != nil {
		return "", Session{}, fmt.Errorf("load admin: %w", err)
	}
	if admin == nil || !CheckPassword(admin.PasswordHash, password) {
		return "", Session{}, ErrInvalidCredentials
	}

	now := m.now()
	s := Session{
		ID:        uuid.NewString(),
		Username:  admin.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	token, _, err := Issue(s.ID, s.Username, m.issuer, m.key, now, m.ttl)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session: %w", err)
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return "", Session{}, fmt.Errorf("store session: %w", err)
	}
	return token, s, nil
}

// Authenticate resolves a cookie token to its live session.
func (m *Manager) Authenticate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}
	claims, err := Parse(token, m.key, m.issuer)
	if err != nil {
		return Session{}, ErrSessionNotFound
	}
	s, err := m.sessions.Get(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if s.Username != claims.Subject {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// Logout ends the session named by token. Unknown tokens are ignored.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := Parse(token, m.key, m.issuer)
	if err != nil {
		return nil
	}
	return m.sessions.Delete(ctx, claims.ID)
}
