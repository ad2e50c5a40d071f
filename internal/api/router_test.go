package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kritika/internal/annotator"
	"github.com/wonny/kritika/internal/api/handlers"
	"github.com/wonny/kritika/internal/catalog"
	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/internal/search"
	"github.com/wonny/kritika/internal/session"
	"github.com/wonny/kritika/pkg/logger"
)

type staticSource []contracts.StockRecord

func (s staticSource) FetchRecords(ctx context.Context) ([]contracts.StockRecord, error) {
	return s, nil
}

type stubBroker struct{}

func (stubBroker) AccessToken(ctx context.Context) (string, error) { return "tok-1", nil }

func (stubBroker) LastPrice(ctx context.Context, token, exchange, symbol string) (*contracts.Quote, error) {
	return &contracts.Quote{
		Symbol:    symbol,
		Exchange:  exchange,
		LastPrice: decimal.RequireFromString("3512.45"),
		Source:    "broker",
		FetchedAt: time.Now(),
	}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return newRouterWith(t, nil)
}

func newRouterWith(t *testing.T, quote *handlers.QuoteHandler) http.Handler {
	t.Helper()
	log := logger.Nop()

	var tcs, infy contracts.StockRecord
	require.NoError(t, json.Unmarshal([]byte(`{"Ticker":"NSE:TCS","Stock Name":"Tata Consultancy Services","LTP":3500}`), &tcs))
	require.NoError(t, json.Unmarshal([]byte(`{"Ticker":"NSE:INFY","Stock Name":"Infosys","LTP":1500}`), &infy))

	idx, err := search.New()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	c := catalog.New(staticSource{tcs, infy}, idx, log)
	require.NoError(t, c.Load(context.Background()))

	sessions := session.NewManager(session.NewMemoryStore(), session.NewAccessCodes([]string{"open"}), time.Hour, log)
	a := annotator.Default()

	return NewRouter(Handlers{
		Health:  handlers.NewHealthHandler(c, nil, nil, log),
		Stocks:  handlers.NewStocksHandler(c, a, log),
		Session: handlers.NewSessionHandler(sessions, handlers.NewValidator(), false, log),
		Quote:   quote,
	}, sessions, log)
}

func do(h http.Handler, method, target, body, sessionID string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if sessionID != "" {
		req.Header.Set("Authorization", "Bearer "+sessionID)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func openSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(h, http.MethodPost, "/api/session", `{"access_code":"open"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var body handlers.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.ID
}

func TestRouter_HealthIsPublic(t *testing.T) {
	h := newTestRouter(t)

	rec := do(h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_StocksRequireSession(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name      string
		sessionID string
	}{
		{"no session", ""},
		{"malformed id", "not-a-uuid"},
		{"unknown id", "6f1c1f7e-3a0b-4b8e-9a59-1f6d2b8f0c11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, "/api/stocks", "", tt.sessionID)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestRouter_SessionFlow(t *testing.T) {
	h := newTestRouter(t)
	id := openSession(t, h)

	rec := do(h, http.MethodGet, "/api/session", "", id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), session.GuestUser)

	rec = do(h, http.MethodGet, "/api/stocks", "", id)
	require.Equal(t, http.StatusOK, rec.Code)
	var list handlers.StockListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)

	// search must not be captured by /stocks/{ticker}
	rec = do(h, http.MethodGet, "/api/stocks/search?q=infosys", "", id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"query":"infosys"`)

	rec = do(h, http.MethodGet, "/api/stocks/tcs", "", id)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodDelete, "/api/session", "", id)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodGet, "/api/stocks", "", id)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CookieSession(t *testing.T) {
	h := newTestRouter(t)
	id := openSession(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/INFY", nil)
	req.AddCookie(&http.Cookie{Name: handlers.SessionCookie, Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_NilHandlersLeaveRoutesOut(t *testing.T) {
	h := newTestRouter(t)

	// no quote or content handler configured
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/generate-token", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/content/home", "", "").Code)
}

func TestRouter_QuoteEndpointsRequireSession(t *testing.T) {
	q := handlers.NewQuoteHandler(stubBroker{}, nil, handlers.NewValidator(), "NSE", logger.Nop())
	h := newRouterWith(t, q)
	id := openSession(t, h)

	tests := []struct {
		name      string
		target    string
		sessionID string
		want      int
	}{
		{"token without session", "/generate-token", "", http.StatusUnauthorized},
		{"feed without session", "/market-feed?accessToken=tok-1&symbol=TCS", "", http.StatusUnauthorized},
		{"feed with unknown session", "/market-feed?accessToken=tok-1&symbol=TCS", "6f1c1f7e-3a0b-4b8e-9a59-1f6d2b8f0c11", http.StatusUnauthorized},
		{"token with session", "/generate-token", id, http.StatusOK},
		{"feed with session", "/market-feed?accessToken=tok-1&symbol=TCS", id, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, "", tt.sessionID)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	// the feed subrouter must not shadow other routes
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/stocks", "", id).Code)
}
