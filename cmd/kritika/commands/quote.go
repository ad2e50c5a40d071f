package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/internal/external/quoteapi"
	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/logger"
)

// quoteCmd represents the quote command
var quoteCmd = &cobra.Command{
	Use:   "quote [EXCHANGE:]SYMBOL",
	Short: "실시간 현재가 조회",
	Long: `실시간 시세 백엔드에서 현재가를 조회합니다.

/generate-token 으로 액세스 토큰을 받은 뒤
/market-feed 로 현재가를 요청합니다. 두 엔드포인트 모두 세션이 필요하며
--session 이 없으면 --access-code (default: $AUTH_ACCESS_CODES 첫 번째 값)로 로그인합니다.

Example:
  go run ./cmd/kritika quote TCS
  go run ./cmd/kritika quote BSE:RELIANCE
  go run ./cmd/kritika quote INFY --backend http://localhost:8080 --access-code open`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

var (
	quoteBackend    string
	quoteExchange   string
	quoteSession    string
	quoteAccessCode string
)

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteBackend, "backend", "", "시세 백엔드 URL (default: $QUOTE_BACKEND_URL)")
	quoteCmd.Flags().StringVar(&quoteExchange, "exchange", "", "거래소 (default: $BROKER_DEFAULT_EXCHANGE)")
	quoteCmd.Flags().StringVar(&quoteSession, "session", "", "기존 세션 ID")
	quoteCmd.Flags().StringVar(&quoteAccessCode, "access-code", "", "로그인 액세스 코드")
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	backend := cfg.Quote.BackendURL
	if quoteBackend != "" {
		backend = quoteBackend
	}

	symbol, exchange := contracts.NormalizeTicker(args[0])
	if quoteExchange != "" {
		exchange = quoteExchange
	}
	if exchange == "" {
		exchange = cfg.Broker.DefaultExchange
	}
	symbol, exchange = strings.ToUpper(symbol), strings.ToUpper(exchange)

	client := quoteapi.NewClient(backend, httputil.New(log, cfg.Quote.Timeout), log)

	start := time.Now()
	sessionID := quoteSession
	if sessionID == "" {
		code := quoteAccessCode
		if code == "" && len(cfg.Session.AccessCodes) > 0 {
			code = cfg.Session.AccessCodes[0]
		}
		if code == "" {
			return fmt.Errorf("quote needs --session or --access-code")
		}
		if sessionID, err = client.Login(cmd.Context(), code); err != nil {
			PrintError(fmt.Sprintf("login: %v", err))
			return err
		}
	}
	client = client.WithSession(sessionID)

	quote, err := client.Quote(cmd.Context(), exchange, symbol)
	if err != nil {
		PrintError(fmt.Sprintf("%s: %v", contracts.InstrumentKey(exchange, symbol), err))
		return err
	}

	PrintHeader("Live Quote")
	PrintKV("Instrument", quote.Instrument())
	PrintKV("LTP", newAnnotator(cfg).FormatAmount(quote.LastPrice))
	PrintKV("Raw", quote.LastPrice.String())
	PrintKV("Backend", backend)
	PrintKV("Fetched", quote.FetchedAt.Format(time.RFC3339))
	PrintKV("Took", time.Since(start).Round(time.Millisecond))
	PrintSeparator()
	return nil
}
