package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/kritika/internal/session"
	"github.com/wonny/kritika/pkg/logger"
)

// SessionCookie carries the session id for browser clients
const SessionCookie = "kritika_session"

// SessionHandler opens and closes viewer sessions
type SessionHandler struct {
	manager  *session.Manager
	validate *validator.Validate
	secure   bool
	logger   *logger.Logger
}

// NewSessionHandler creates a session handler. secure marks the cookie Secure.
func NewSessionHandler(m *session.Manager, validate *validator.Validate, secure bool, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		manager:  m,
		validate: validate,
		secure:   secure,
		logger:   log.Component("session_handler"),
	}
}

// LoginRequest is the body of POST /api/session
type LoginRequest struct {
	AccessCode string `json:"access_code" validate:"required,max=128"`
}

// SessionResponse describes an open session
type SessionResponse struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login opens a session for a valid access code
// POST /api/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "access_code is required")
		return
	}

	s, err := h.manager.Login(r.Context(), req.AccessCode)
	if errors.Is(err, session.ErrUnauthorized) {
		respondError(w, http.StatusUnauthorized, "invalid access code")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to open session")
		respondError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, http.StatusCreated, SessionResponse{ID: s.ID, User: s.User, ExpiresAt: s.ExpiresAt})
}

// Logout closes the caller's session, if any
// DELETE /api/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := SessionID(r); id != "" {
		if err := h.manager.Logout(r.Context(), id); err != nil {
			h.logger.WithError(err).Error("Failed to close session")
			respondError(w, http.StatusInternalServerError, "failed to close session")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the session resolved by the middleware
// GET /api/session
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "login required")
		return
	}
	respondJSON(w, http.StatusOK, SessionResponse{ID: s.ID, User: s.User, ExpiresAt: s.ExpiresAt})
}

// SessionID extracts the session id from "Authorization: Bearer <id>" or the cookie
func SessionID(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
