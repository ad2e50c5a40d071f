package broker

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// TokenResponse represents the OAuth client-credential token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// ltpResponse is the envelope of GET /quote/ltp
type ltpResponse struct {
	Status    string                     `json:"status"` // success, error
	Message   string                     `json:"message"`
	ErrorType string                     `json:"error_type"`
	Data      map[string]json.RawMessage `json:"data"`
}

// ltpEntry is one instrument in the LTP payload
type ltpEntry struct {
	InstrumentToken int64               `json:"instrument_token"`
	LastPrice       decimal.NullDecimal `json:"last_price"`
}
