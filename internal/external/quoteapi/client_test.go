package quoteapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kritika/internal/session"
	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/logger"
)

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name    string
		feed    string
		want    string
		wantErr bool
	}{
		{"last_price", `{"last_price": 3456.75}`, "3456.75", false},
		{"ltp", `{"ltp": 12.5}`, "12.5", false},
		{"LTP", `{"LTP": "99"}`, "99", false},
		{"first present wins", `{"LTP": 3, "ltp": 2, "last_price": 1}`, "1", false},
		{"null skipped", `{"last_price": null, "ltp": 7}`, "7", false},
		{"zero is a price", `{"last_price": 0, "ltp": 7}`, "0", false},
		{"none", `{"price": 10}`, "", true},
		{"not numeric", `{"last_price": "n/a"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var feed map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(tt.feed), &feed))

			got, err := ExtractPrice(feed)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestQuote(t *testing.T) {
	var feedCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate-token":
			w.Write([]byte(`{"accessToken":"tok-42"}`))
		case "/market-feed":
			feedCalls.Add(1)
			q := r.URL.Query()
			assert.Equal(t, "tok-42", q.Get("accessToken"))
			assert.Equal(t, "NSE", q.Get("exchange"))
			assert.Equal(t, "TCS", q.Get("symbol"))
			w.Write([]byte(`{"ltp": 3456.7}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, httputil.New(logger.Nop(), time.Second), logger.Nop())

	q, err := client.Quote(context.Background(), "NSE", "TCS")
	require.NoError(t, err)
	assert.Equal(t, "3456.7", q.LastPrice.String())
	assert.Equal(t, "NSE:TCS", q.Instrument())
	assert.Equal(t, "backend", q.Source)
	assert.Equal(t, int32(1), feedCalls.Load())
}

func TestQuote_MissingTokenStopsChain(t *testing.T) {
	var feedCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate-token":
			w.Write([]byte(`{"token":"wrong-key"}`))
		case "/market-feed":
			feedCalls.Add(1)
			w.Write([]byte(`{"ltp": 1}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, httputil.New(logger.Nop(), time.Second), logger.Nop())

	_, err := client.Quote(context.Background(), "NSE", "TCS")
	assert.ErrorIs(t, err, ErrNoAccessToken)
	assert.Equal(t, int32(0), feedCalls.Load())
}

func TestQuote_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "token endpoint down",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "feed without price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/generate-token" {
					w.Write([]byte(`{"accessToken":"t"}`))
					return
				}
				w.Write([]byte(`{"volume": 10}`))
			},
			wantErr: ErrNoPrice,
		},
		{
			name: "feed error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/generate-token" {
					w.Write([]byte(`{"accessToken":"t"}`))
					return
				}
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, httputil.New(logger.Nop(), time.Second), logger.Nop())
			q, err := client.Quote(context.Background(), "NSE", "TCS")
			assert.Nil(t, q)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestQuote_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, httputil.New(logger.Nop(), 50*time.Millisecond), logger.Nop())
	_, err := client.Quote(context.Background(), "NSE", "TCS")
	assert.Error(t, err)
}

func TestQuote_SendsSession(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/generate-token":
			w.Write([]byte(`{"accessToken":"tok-42"}`))
		case "/market-feed":
			w.Write([]byte(`{"ltp": 1}`))
		}
	}))
	defer server.Close()

	base := NewClient(server.URL, httputil.New(logger.Nop(), time.Second), logger.Nop())

	tests := []struct {
		name   string
		client *Client
		ctx    context.Context
		want   string
	}{
		{"no session", base, context.Background(), ""},
		{"static session", base.WithSession("sid-1"), context.Background(), "Bearer sid-1"},
		{"context session wins", base.WithSession("sid-1"), session.NewContext(context.Background(), &session.Session{ID: "sid-2"}), "Bearer sid-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			_, err := tt.client.Quote(tt.ctx, "NSE", "TCS")
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want, tt.want}, seen)
		})
	}
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/session", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["access_code"] != "open" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"sid-9","user":"guest"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, httputil.New(logger.Nop(), time.Second), logger.Nop())

	id, err := client.Login(context.Background(), "open")
	require.NoError(t, err)
	assert.Equal(t, "sid-9", id)

	_, err = client.Login(context.Background(), "wrong")
	assert.True(t, httputil.IsStatus(err, http.StatusUnauthorized))
}
