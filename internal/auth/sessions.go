package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown, revoked or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// Session is a logged-in admin.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore tracks admin sessions. Create replaces any earlier session
// of the same admin, so each admin has at most one live session.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// MemorySessions keeps sessions in process memory.
type MemorySessions struct {
	mu     sync.Mutex
	byID   map[string]Session
	byUser map[string]string
	now    func() time.Time
}

// NewMemorySessions creates an empty in-memory store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		byID:   make(map[string]Session),
		byUser: make(map[string]string),
		now:    time.Now,
	}
}

func (m *MemorySessions) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byUser[s.Username]; ok {
		delete(m.byID, old)
	}
	m.byID[s.ID] = s
	m.byUser[s.Username] = s.ID
	return nil
}

func (m *MemorySessions) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !m.now().Before(s.ExpiresAt) {
		m.deleteLocked(id)
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(id)
	return nil
}

func (m *MemorySessions) deleteLocked(id string) {
	s, ok := m.byID[id]
	if !ok {
		return
	}
	delete(m.byID, id)
	if m.byUser[s.Username] == id {
		delete(m.byUser, s.Username)
	}
}

// RedisSessions stores sessions as expiring Redis keys.
type RedisSessions struct {
	client *redis.Client
	prefix string
}

// NewRedisSessions builds a store under key prefix.
func NewRedisSessions(client *redis.Client, prefix string) *RedisSessions {
	if prefix == "" {
		prefix = "faceattend:"
	}
	return &RedisSessions{client: client, prefix: prefix}
}

func (r *RedisSessions) sessionKey(id string) string { return r.prefix + "session:" + id }
func (r *RedisSessions) userKey(name string) string  { return r.prefix + "admin-session:" + name }

func (r *RedisSessions) Create(ctx context.Context, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	old, err := r.client.GetSet(ctx, r.userKey(s.Username), s.ID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("swap admin session: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if old != "" && old != s.ID {
			p.Del(ctx, r.sessionKey(old))
		}
		p.Set(ctx, r.sessionKey(s.ID), payload, ttl)
		p.Expire(ctx, r.userKey(s.Username), ttl)
		return nil
	})
	return err
}

func (r *RedisSessions) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *RedisSessions) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.sessionKey(id)).Err(); err != nil {
		return err
	}
	// Only clear the admin pointer if it still names this session.
	cur, err := r.client.Get(ctx, r.userKey(s.Username)).Result()
	if err == nil && cur == id {
		return r.client.Del(ctx, r.userKey(s.Username)).Err()
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
