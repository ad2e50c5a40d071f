package quoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/internal/session"
	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/logger"
)

var (
	// ErrNoAccessToken is returned when /generate-token answers without a token
	ErrNoAccessToken = errors.New("no access token in response")
	// ErrNoPrice is returned when /market-feed exposes none of the price keys
	ErrNoPrice = errors.New("no price in market feed")
	// ErrNoSession is returned when /api/session answers without an id
	ErrNoSession = errors.New("no session in response")
)

// PriceKeys are the market-feed keys checked for the traded price, in order
var PriceKeys = []string{"last_price", "ltp", "LTP"}

// Client talks to the live-quote backend: /generate-token then /market-feed
// ⭐ SSOT: 실시간 시세 2단계 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	sessionID  string
}

// NewClient creates a live-quote backend client
func NewClient(baseURL string, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("quoteapi"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// WithSession returns a copy that authenticates with a fixed session id.
// A session carried in the request context takes precedence.
func (c *Client) WithSession(id string) *Client {
	cp := *c
	cp.sessionID = id
	return &cp
}

// Login opens a session with an access code via POST /api/session
func (c *Client) Login(ctx context.Context, accessCode string) (string, error) {
	body, err := json.Marshal(map[string]string{"access_code": accessCode})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/session", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.httpClient.DoJSON(req, &resp); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	if resp.ID == "" {
		return "", ErrNoSession
	}
	return resp.ID, nil
}

// getJSON sends an authenticated GET
func (c *Client) getJSON(ctx context.Context, rawURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	id := c.sessionID
	if s, ok := session.FromContext(ctx); ok {
		id = s.ID
	}
	if id != "" {
		req.Header.Set("Authorization", "Bearer "+id)
	}
	return c.httpClient.DoJSON(req, dest)
}

// AccessToken calls GET /generate-token
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/generate-token", &resp); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return resp.AccessToken, nil
}

// LastPrice calls GET /market-feed with a token from AccessToken
func (c *Client) LastPrice(ctx context.Context, accessToken, exchange, symbol string) (*contracts.Quote, error) {
	params := url.Values{}
	params.Set("accessToken", accessToken)
	params.Set("exchange", exchange)
	params.Set("symbol", symbol)

	var feed map[string]json.RawMessage
	if err := c.getJSON(ctx, c.baseURL+"/market-feed?"+params.Encode(), &feed); err != nil {
		return nil, fmt.Errorf("market feed %s: %w", contracts.InstrumentKey(exchange, symbol), err)
	}

	price, err := ExtractPrice(feed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", contracts.InstrumentKey(exchange, symbol), err)
	}

	return &contracts.Quote{
		Symbol:    symbol,
		Exchange:  exchange,
		LastPrice: price,
		Source:    "backend",
		FetchedAt: time.Now(),
	}, nil
}

// Quote runs the two-step chain. Any failure aborts the chain.
func (c *Client) Quote(ctx context.Context, exchange, symbol string) (*contracts.Quote, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	q, err := c.LastPrice(ctx, token, exchange, symbol)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"instrument": q.Instrument(),
		"last_price": q.LastPrice.String(),
	}).Debug("Live quote fetched")

	return q, nil
}

// ExtractPrice returns the first PriceKeys entry that is present and not
// null. A present but non-numeric value is an error.
func ExtractPrice(feed map[string]json.RawMessage) (decimal.Decimal, error) {
	for _, key := range PriceKeys {
		raw, ok := feed[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}

		var d decimal.Decimal
		if err := d.UnmarshalJSON(raw); err != nil {
			return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return decimal.Zero, ErrNoPrice
}
