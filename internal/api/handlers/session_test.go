package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kritika/internal/session"
	"github.com/wonny/kritika/pkg/logger"
)

func newSessionHandler() (*SessionHandler, *session.Manager, *session.MemoryStore) {
	store := session.NewMemoryStore()
	m := session.NewManager(store, session.NewAccessCodes([]string{"asha:s3cret", "open"}), time.Hour, logger.Nop())
	return NewSessionHandler(m, NewValidator(), false, logger.Nop()), m, store
}

func login(h *SessionHandler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(body)))
	return rec
}

func TestSession_Login(t *testing.T) {
	h, _, store := newSessionHandler()

	rec := login(h, `{"access_code":"s3cret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body SessionResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "asha", body.User)
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, 1, store.Len())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, body.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSession_LoginGuest(t *testing.T) {
	h, _, _ := newSessionHandler()

	rec := login(h, `{"access_code":"open"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body SessionResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, session.GuestUser, body.User)
}

func TestSession_LoginRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong code", `{"access_code":"nope"}`, http.StatusUnauthorized},
		{"empty code", `{"access_code":""}`, http.StatusBadRequest},
		{"no body", ``, http.StatusBadRequest},
		{"unknown field", `{"access_code":"open","user":"x"}`, http.StatusBadRequest},
		{"too long", `{"access_code":"` + strings.Repeat("a", 129) + `"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, store := newSessionHandler()
			rec := login(h, tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestSession_MeAndLogout(t *testing.T) {
	h, m, store := newSessionHandler()

	rec := login(h, `{"access_code":"s3cret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var opened SessionResponse
	decodeBody(t, rec, &opened)

	// Me reads the session placed in the context by the middleware
	s, err := m.Resolve(t.Context(), opened.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req = req.WithContext(session.NewContext(req.Context(), s))
	rec = httptest.NewRecorder()
	h.Me(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var me SessionResponse
	decodeBody(t, rec, &me)
	assert.Equal(t, opened.ID, me.ID)

	req = httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer "+opened.ID)
	rec = httptest.NewRecorder()
	h.Logout(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, store.Len())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestSession_MeWithoutSession(t *testing.T) {
	h, _, _ := newSessionHandler()

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, SessionID(req))

	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", SessionID(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", SessionID(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "from-cookie", SessionID(req))
}
