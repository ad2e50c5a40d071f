package sheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/logger"
)

func newClient(url string) *Client {
	return NewClient(url, httputil.New(logger.Nop(), time.Second), logger.Nop())
}

func TestFetchRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"Ticker": "NSE:TCS", "Stock Name": "TCS", "LTP": 3890.45, "P/E Ratio": "29.1"},
			{"Ticker": "", "Stock Name": ""},
			{"Ticker": "NSE:ITC", "Stock Name": "ITC", "LTP": "410.2"}
		]`))
	}))
	defer server.Close()

	records, err := newClient(server.URL).FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "TCS", records[0].Ticker)
	assert.Equal(t, "NSE", records[0].Exchange)
	assert.Equal(t, "ITC", records[1].Ticker)
	assert.Equal(t, []string{"Ticker", "Stock Name", "LTP", "P/E Ratio"}, records[0].Keys())
}

func TestFetchRecords_EmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	records, err := newClient(server.URL).FetchRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchRecords_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "not an array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error": "quota exceeded"}`))
			},
		},
		{
			name: "row not an object",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`["NSE:TCS"]`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			records, err := newClient(server.URL).FetchRecords(context.Background())
			assert.Error(t, err)
			assert.Nil(t, records)
		})
	}
}
