package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kritika/internal/external/sheet"
	"github.com/wonny/kritika/pkg/httputil"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "외부 연결 점검",
	Long: `설정과 외부 의존성 연결을 점검합니다.

이 명령어는:
- 환경변수 로드 및 검증
- Redis 연결 (REDIS_ENABLED=true 일 때)
- PostgreSQL 연결 및 풀 통계 (DATABASE_URL 설정 시)
- 종목 리스트 소스 응답 확인

Example:
  go run ./cmd/kritika check
  go run ./cmd/kritika check --env production`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Kritika Connection Check ===")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	defer a.Close()
	cfg := a.cfg

	PrintSuccess(fmt.Sprintf("Config loaded (ENV: %s)", cfg.Env))
	fmt.Printf("   Stocks URL: %s\n", redactURL(cfg.Sources.StocksURL))

	if a.redis.Enabled() {
		PrintSuccess(fmt.Sprintf("Redis connected (%s:%s)", cfg.Redis.Host, cfg.Redis.Port))
	} else {
		fmt.Println("ℹ️  Redis disabled")
	}

	if a.db != nil {
		status := a.db.HealthCheck(ctx)
		if !status.Healthy {
			PrintError("Database health check failed: " + status.Error)
			return fmt.Errorf("database unhealthy: %s", status.Error)
		}
		PrintSuccess("Database healthy")
		fmt.Printf("   Response Time: %v\n", status.ResponseTime)
		fmt.Printf("   Total Connections: %d\n", status.TotalConns)
		fmt.Printf("   Idle Connections: %d\n", status.IdleConns)
	} else {
		fmt.Println("ℹ️  Database not configured")
	}

	source := sheet.NewClient(cfg.Sources.StocksURL, httputil.New(a.log, cfg.Sources.Timeout), a.log)
	start := time.Now()
	records, err := source.FetchRecords(ctx)
	if err != nil {
		PrintError("Stock list fetch failed: " + err.Error())
		return err
	}
	PrintSuccess(fmt.Sprintf("Stock list fetched: %d records in %v", len(records), time.Since(start).Round(time.Millisecond)))

	fmt.Println("\n✅ All checks passed!")
	return nil
}

// redactURL hides credentials and query strings (sheet URLs carry keys)
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	if u.RawQuery != "" {
		u.RawQuery = "***"
	}
	return u.String()
}
