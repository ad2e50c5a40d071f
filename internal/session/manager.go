package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/kritika/pkg/logger"
)

// Manager issues and resolves sessions
// ⭐ SSOT: 세션 발급/검증은 Manager에서만
type Manager struct {
	store  Store
	auth   Authenticator
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewManager creates a session manager
func NewManager(store Store, auth Authenticator, ttl time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		auth:   auth,
		ttl:    ttl,
		logger: log.Component("session"),
		now:    time.Now,
	}
}

// Login authenticates credential and opens a new session
func (m *Manager) Login(ctx context.Context, credential string) (*Session, error) {
	user, err := m.auth.Authenticate(ctx, credential)
	if err != nil {
		m.logger.Warn("Login rejected")
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}

	m.logger.WithFields(map[string]interface{}{
		"user":       user,
		"expires_at": s.ExpiresAt,
	}).Info("Session opened")

	return s, nil
}

// Resolve returns the live session with id
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return nil, ErrExpired
	}
	return s, nil
}

// Logout ends the session with id
func (m *Manager) Logout(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Debug("Session closed")
	return nil
}
