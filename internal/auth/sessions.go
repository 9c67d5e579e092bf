package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "board:admin_session:"

// SessionStore keeps live admin sessions.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, admin uuid.UUID, ttl time.Duration) error
	Lookup(ctx context.Context, sessionID string) (uuid.UUID, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisSessions stores sessions as keys with a TTL.
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions creates a Redis-backed session store.
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (r *RedisSessions) Save(ctx context.Context, sessionID string, admin uuid.UUID, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, admin.String(), ttl).Err()
}

func (r *RedisSessions) Lookup(ctx context.Context, sessionID string) (uuid.UUID, error) {
	v, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup session: %w", err)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, ErrSessionNotFound
	}
	return id, nil
}

func (r *RedisSessions) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

type memorySession struct {
	admin     uuid.UUID
	expiresAt time.Time
}

// MemorySessions keeps sessions in process. Sessions do not survive restarts.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

// NewMemorySessions creates an in-process session store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]memorySession), now: time.Now}
}

func (m *MemorySessions) Save(_ context.Context, sessionID string, admin uuid.UUID, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = memorySession{admin: admin, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemorySessions) Lookup(_ context.Context, sessionID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return uuid.Nil, ErrSessionNotFound
	}
	if m.now().After(s.expiresAt) {
		delete(m.sessions, sessionID)
		return uuid.Nil, ErrSessionNotFound
	}
	return s.admin, nil
}

func (m *MemorySessions) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
