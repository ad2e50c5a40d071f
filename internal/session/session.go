// Package session replaces the browser-side "logged in" flag with a
// server-issued session. A Session travels in the request context; the
// Manager creates and resolves sessions through a Store and checks
// credentials with an Authenticator.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown session ids
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned for sessions past ExpiresAt
	ErrExpired = errors.New("session expired")
	// ErrUnauthorized is returned when credentials are rejected
	ErrUnauthorized = errors.New("unauthorized")
)

// Session is one authenticated viewer
type Session struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by NewContext
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
