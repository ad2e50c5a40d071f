package contracts

import "context"

// RecordSource supplies the full stock record set
// ⭐ SSOT: 종목 리스트 공급 인터페이스
type RecordSource interface {
	FetchRecords(ctx context.Context) ([]StockRecord, error)
}

// PageSource supplies landing page copy
type PageSource interface {
	FetchPage(ctx context.Context, slug string) (*PageCopy, error)
}

// TokenIssuer hands out broker access tokens
type TokenIssuer interface {
	AccessToken(ctx context.Context) (string, error)
}

// PriceSource resolves the last traded price with a given access token
type PriceSource interface {
	LastPrice(ctx context.Context, accessToken, exchange, symbol string) (*Quote, error)
}

// QuoteSource resolves a live quote end to end (token, then price)
type QuoteSource interface {
	Quote(ctx context.Context, exchange, symbol string) (*Quote, error)
}
