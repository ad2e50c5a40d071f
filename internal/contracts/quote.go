package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a live traded price for one instrument
type Quote struct {
	Symbol    string          `json:"symbol"`
	Exchange  string          `json:"exchange"`
	LastPrice decimal.Decimal `json:"last_price"`
	Source    string          `json:"source"` // "broker", "cache", "backend"
	FetchedAt time.Time       `json:"fetched_at"`
}

// Instrument returns the broker instrument key, e.g. "NSE:TCS"
func (q Quote) Instrument() string {
	return InstrumentKey(q.Exchange, q.Symbol)
}

// InstrumentKey joins exchange and symbol the way the broker addresses instruments
func InstrumentKey(exchange, symbol string) string {
	return exchange + ":" + symbol
}
