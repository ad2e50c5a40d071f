package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/kritika/pkg/redis"
)

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Save stores a copy of s
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *s
	m.sessions[s.ID] = &stored
	return nil
}

// Load returns a copy of the session; expired entries are evicted
func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.Expired(m.now()) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, ErrExpired
	}

	out := *s
	return &out, nil
}

// Delete removes a session; unknown ids are ignored
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RedisStore keeps sessions in Redis so every API instance sees them.
// Entries expire with the session.
type RedisStore struct {
	cache *redis.Cache
	now   func() time.Time
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(cache *redis.Cache) *RedisStore {
	return &RedisStore{cache: cache, now: time.Now}
}

// Save stores s until it expires
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return ErrExpired
	}
	if err := r.cache.Set(ctx, redis.SessionKey(s.ID), s, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load fetches a session by id
func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	var s Session
	found, err := r.cache.Get(ctx, redis.SessionKey(id), &s)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	if s.Expired(r.now()) {
		return nil, ErrExpired
	}
	return &s, nil
}

// Delete removes a session
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.cache.Delete(ctx, redis.SessionKey(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
