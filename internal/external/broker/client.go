package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/pkg/config"
	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/logger"
)

var (
	// ErrNotConfigured is returned when broker credentials are missing
	ErrNotConfigured = errors.New("broker credentials not configured")
	// ErrNoPrice is returned when the broker has no last price for the instrument
	ErrNoPrice = errors.New("no last price")
	// ErrTokenRejected is returned when the broker refuses the access token
	ErrTokenRejected = errors.New("access token rejected")
)

// tokenMargin is subtracted from the advertised token lifetime
const tokenMargin = time.Minute

// Client handles communication with the broker quote API
// ⭐ SSOT: 브로커 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.BrokerConfig
	baseURL    string
	now        func() time.Time

	// Token management
	accessToken string
	tokenExpiry time.Time
	tokenMu     sync.RWMutex
}

// NewClient creates a new broker API client
func NewClient(cfg config.BrokerConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("broker"),
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		now:        time.Now,
	}
}

// AccessToken returns a valid access token, refreshing if necessary
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	// Double-check after acquiring write lock
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return "", ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.APIKey)
	form.Set("client_secret", c.cfg.APISecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tokenResp TokenResponse
	if err := c.httpClient.DoJSON(req, &tokenResp); err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response without access_token")
	}

	lifetime := time.Duration(tokenResp.ExpiresIn) * time.Second
	if lifetime > 2*tokenMargin {
		lifetime -= tokenMargin // 1분 여유
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = c.now().Add(lifetime)

	c.logger.WithFields(map[string]interface{}{
		"expires_in": tokenResp.ExpiresIn,
	}).Info("Broker access token refreshed")

	return c.accessToken, nil
}

// Invalidate drops the cached token so the next call fetches a new one
func (c *Client) Invalidate() {
	c.tokenMu.Lock()
	c.accessToken = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}

// LastPrice gets the last traded price of exchange:symbol using accessToken
func (c *Client) LastPrice(ctx context.Context, accessToken, exchange, symbol string) (*contracts.Quote, error) {
	if exchange == "" {
		exchange = c.cfg.DefaultExchange
	}
	instrument := contracts.InstrumentKey(strings.ToUpper(exchange), strings.ToUpper(symbol))

	endpoint := fmt.Sprintf("%s/quote/ltp?%s", c.baseURL, url.Values{"i": {instrument}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var result ltpResponse
	if err := c.httpClient.DoJSON(req, &result); err != nil {
		if httputil.IsStatus(err, http.StatusUnauthorized) || httputil.IsStatus(err, http.StatusForbidden) {
			return nil, fmt.Errorf("%s: %w", instrument, ErrTokenRejected)
		}
		return nil, fmt.Errorf("ltp %s: %w", instrument, err)
	}

	if result.Status != "" && result.Status != "success" {
		if result.ErrorType == "TokenException" {
			return nil, fmt.Errorf("%s: %w", instrument, ErrTokenRejected)
		}
		return nil, fmt.Errorf("API error: %s - %s", result.ErrorType, result.Message)
	}

	raw, ok := result.Data[instrument]
	if !ok {
		return nil, fmt.Errorf("%s: %w", instrument, ErrNoPrice)
	}

	var entry ltpEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode %s: %w", instrument, err)
	}
	if !entry.LastPrice.Valid {
		return nil, fmt.Errorf("%s: %w", instrument, ErrNoPrice)
	}

	return &contracts.Quote{
		Symbol:    strings.ToUpper(symbol),
		Exchange:  strings.ToUpper(exchange),
		LastPrice: entry.LastPrice.Decimal,
		Source:    "broker",
		FetchedAt: c.now(),
	}, nil
}

// Quote gets a token and then the last price. A rejected token is dropped
// from the cache so the following call re-authenticates.
func (c *Client) Quote(ctx context.Context, exchange, symbol string) (*contracts.Quote, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	q, err := c.LastPrice(ctx, token, exchange, symbol)
	if errors.Is(err, ErrTokenRejected) {
		c.Invalidate()
	}
	return q, err
}
