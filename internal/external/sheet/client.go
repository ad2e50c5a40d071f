package sheet

import (
	"context"
	"fmt"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/logger"
)

// Client fetches the spreadsheet-backed stock list
// ⭐ SSOT: 종목 시트 API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	url        string
}

// NewClient creates a sheet client for the given endpoint
func NewClient(url string, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("sheet"),
		url:        url,
	}
}

// FetchRecords downloads every row. Rows without a ticker (blank sheet
// lines) are dropped; tickers come back with the exchange prefix stripped.
func (c *Client) FetchRecords(ctx context.Context) ([]contracts.StockRecord, error) {
	var rows []contracts.StockRecord
	if err := c.httpClient.GetJSON(ctx, c.url, &rows); err != nil {
		return nil, fmt.Errorf("fetch stock list: %w", err)
	}

	records := make([]contracts.StockRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if row.Ticker == "" {
			skipped++
			continue
		}
		records = append(records, row)
	}

	c.logger.WithFields(map[string]interface{}{
		"records": len(records),
		"skipped": skipped,
	}).Info("Stock list fetched")

	return records, nil
}
