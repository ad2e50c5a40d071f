package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/internal/external/broker"
	"github.com/wonny/kritika/internal/realtime/cache"
	"github.com/wonny/kritika/pkg/logger"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9&._-]{0,31}$`)

// NewValidator returns a validator with the "ticker" and "exchange" tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return tickerPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("exchange", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "NSE", "BSE", "NFO", "BFO", "MCX", "CDS":
			return true
		}
		return false
	})
	return v
}

// Broker is the upstream of the live-quote backend
type Broker interface {
	contracts.TokenIssuer
	contracts.PriceSource
}

// QuoteHandler serves the /generate-token and /market-feed pair
// ⭐ SSOT: 실시간 시세 백엔드 엔드포인트는 이 구조체에서만
type QuoteHandler struct {
	broker          Broker
	cache           *cache.QuoteCache
	validate        *validator.Validate
	defaultExchange string
	logger          *logger.Logger
}

// NewQuoteHandler creates the live-quote backend handler
func NewQuoteHandler(b Broker, c *cache.QuoteCache, validate *validator.Validate, defaultExchange string, log *logger.Logger) *QuoteHandler {
	return &QuoteHandler{
		broker:          b,
		cache:           c,
		validate:        validate,
		defaultExchange: strings.ToUpper(defaultExchange),
		logger:          log.Component("quote_handler"),
	}
}

// TokenResponse is the body of GET /generate-token
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// MarketFeedRequest holds the /market-feed query parameters
type MarketFeedRequest struct {
	AccessToken string `validate:"required,max=512"`
	Exchange    string `validate:"required,exchange"`
	Symbol      string `validate:"required,ticker"`
}

// MarketFeedResponse is the body of GET /market-feed
type MarketFeedResponse struct {
	Symbol    string      `json:"symbol"`
	Exchange  string      `json:"exchange"`
	LastPrice json.Number `json:"last_price"`
	Source    string      `json:"source"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// GenerateToken hands out a broker access token
// GET /generate-token
func (h *QuoteHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.broker.AccessToken(r.Context())
	if errors.Is(err, broker.ErrNotConfigured) {
		respondError(w, http.StatusServiceUnavailable, "broker not configured")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate access token")
		respondError(w, http.StatusBadGateway, "failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{AccessToken: token})
}

// MarketFeed returns the last traded price of one instrument
// GET /market-feed?accessToken=...&exchange=NSE&symbol=TCS
func (h *QuoteHandler) MarketFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := MarketFeedRequest{
		AccessToken: strings.TrimSpace(q.Get("accessToken")),
		Exchange:    strings.ToUpper(strings.TrimSpace(q.Get("exchange"))),
		Symbol:      strings.ToUpper(strings.TrimSpace(q.Get("symbol"))),
	}
	if req.Exchange == "" {
		req.Exchange = h.defaultExchange
	}

	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	fetch := func(ctx context.Context) (*contracts.Quote, error) {
		return h.broker.LastPrice(ctx, req.AccessToken, req.Exchange, req.Symbol)
	}

	var (
		quote *contracts.Quote
		err   error
	)
	if h.cache != nil {
		quote, err = h.cache.GetOrFetch(r.Context(), cache.Scope(req.AccessToken), req.Exchange, req.Symbol, fetch)
	} else {
		quote, err = fetch(r.Context())
	}

	switch {
	case err == nil:
	case errors.Is(err, broker.ErrTokenRejected):
		respondError(w, http.StatusUnauthorized, "access token rejected")
		return
	case errors.Is(err, broker.ErrNoPrice):
		respondError(w, http.StatusNotFound, "no price for instrument")
		return
	default:
		h.logger.WithError(err).WithField("instrument", contracts.InstrumentKey(req.Exchange, req.Symbol)).
			Error("Failed to fetch market feed")
		respondError(w, http.StatusBadGateway, "failed to fetch market feed")
		return
	}

	respondJSON(w, http.StatusOK, MarketFeedResponse{
		Symbol:    quote.Symbol,
		Exchange:  quote.Exchange,
		LastPrice: json.Number(quote.LastPrice.String()),
		Source:    quote.Source,
		FetchedAt: quote.FetchedAt,
	})
}

// validationMessage names the first offending parameter
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		switch field {
		case "AccessToken":
			field = "accessToken"
		default:
			field = strings.ToLower(field)
		}
		return "invalid or missing parameter: " + field
	}
	return "invalid parameters"
}
