package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kritika/internal/api"
	"github.com/wonny/kritika/internal/api/handlers"
	"github.com/wonny/kritika/internal/external/broker"
	"github.com/wonny/kritika/internal/external/content"
	"github.com/wonny/kritika/internal/external/quoteapi"
	"github.com/wonny/kritika/internal/picker"
	"github.com/wonny/kritika/internal/realtime/cache"
	"github.com/wonny/kritika/internal/scheduler"
	"github.com/wonny/kritika/internal/scheduler/jobs"
	"github.com/wonny/kritika/internal/session"
	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/redis"
)

// snapshotsKept is how many catalog snapshots the prune job leaves in place
const snapshotsKept = 28

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 종목 리스트 로드 및 주기적 새로고침
- 실시간 시세 백엔드 (/generate-token, /market-feed)
- 세션 기반 종목 위젯 엔드포인트 제공

Endpoints:
  GET    /health                 - Health check
  GET    /generate-token         - 브로커 액세스 토큰
  GET    /market-feed            - 종목 현재가
  POST   /api/session            - 로그인
  DELETE /api/session            - 로그아웃
  GET    /api/content/{slug}     - 페이지 문구
  GET    /api/stocks             - 종목 리스트 (세션 필요)
  GET    /api/stocks/search?q=   - 종목 검색 (세션 필요)
  GET    /api/stocks/{ticker}    - 종목 상세 (세션 필요)
  GET    /ws/picker              - 종목 선택 스트림 (세션 필요)

Example:
  go run ./cmd/kritika api
  go run ./cmd/kritika api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Kritika API Server ===")
	ctx := cmd.Context()

	// 1. Config, logger, Redis, database
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port":     cfg.Port,
		"env":      cfg.Env,
		"redis":    a.redis.Enabled(),
		"database": a.db != nil,
	}).Info("Initializing API server")

	// 2. Catalog (initial load failure leaves an empty or fallback list)
	stocks, err := a.newCatalog()
	if err != nil {
		return err
	}
	if err := stocks.Load(ctx); err != nil {
		log.WithError(err).Warn("Initial stock list load failed")
	}

	// 3. Live-quote backend: broker upstream behind a quote cache
	brokerHTTP := httputil.New(log, cfg.Quote.Timeout).
		WithRateLimiter(a.limiter, redis.BrokerRateLimit(cfg.Broker.RateLimit))
	brokerClient := broker.NewClient(cfg.Broker, brokerHTTP, log)
	quotes := cache.NewQuoteCache(cfg.Quote.CacheTTL, log).WithFetchTimeout(cfg.Quote.Timeout)

	// 4. Picker quotes go through the two-step backend chain
	quoteClient := quoteapi.NewClient(cfg.Quote.BackendURL, httputil.New(log, cfg.Quote.Timeout), log)

	// 5. Sessions
	var store session.Store = session.NewMemoryStore()
	if a.redis.Enabled() {
		store = session.NewRedisStore(a.cache)
	}
	codes := session.NewAccessCodes(cfg.Session.AccessCodes)
	if codes.Len() == 0 {
		log.Warn("AUTH_ACCESS_CODES is empty; nobody can log in")
	}
	sessions := session.NewManager(store, codes, cfg.Session.TTL, log)

	// 6. Scheduler
	sched := scheduler.New(scheduler.DefaultConfig(), log)
	schedJobs := []scheduler.Job{
		jobs.NewCatalogRefreshJob(stocks, cfg.CatalogRefreshSchedule, log),
		jobs.NewCacheCleanupJob(quotes, log),
	}
	if a.snapshots != nil {
		schedJobs = append(schedJobs, jobs.NewSnapshotPruneJob(a.snapshots, snapshotsKept, log))
	}
	for _, job := range schedJobs {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("add job %s: %w", job.Name(), err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// 7. Handlers and router
	validate := handlers.NewValidator()
	h := api.Handlers{
		Health:  handlers.NewHealthHandler(stocks, a.db, sched, log),
		Stocks:  handlers.NewStocksHandler(stocks, a.annotator, log),
		Session: handlers.NewSessionHandler(sessions, validate, cfg.Env == "production", log),
		Quote:   handlers.NewQuoteHandler(brokerClient, quotes, validate, cfg.Broker.DefaultExchange, log),
		Picker: handlers.NewPickerHandler(quoteClient, stocks, a.annotator, picker.Config{
			DefaultExchange: cfg.Broker.DefaultExchange,
			Timeout:         cfg.Quote.Timeout,
		}, log),
	}
	if cfg.Sources.ContentURL != "" {
		// page copy is not time-critical; retry transient failures
		pagesHTTP := httputil.New(log, cfg.Sources.Timeout).WithRetry(2, 500*time.Millisecond)
		pages := content.NewClient(cfg.Sources.ContentURL, pagesHTTP, log)
		h.Content = handlers.NewContentHandler(pages, a.cache, log)
	}

	router := api.NewRouter(h, sessions, log)
	server := api.New(cfg, log, router)

	// 8. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
