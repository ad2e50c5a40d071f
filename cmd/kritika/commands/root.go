package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/kritika/pkg/config"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kritika",
	Short: "Kritika - 종목 리스트, 밸류에이션, 실시간 시세",
	Long: `Kritika Unified CLI

스프레드시트 기반 종목 리스트에 밸류에이션 라벨을 붙이고
브로커 API를 통해 실시간 시세를 제공합니다.

Usage:
  go run ./cmd/kritika [command]

Examples:
  go run ./cmd/kritika api
  go run ./cmd/kritika annotate
  go run ./cmd/kritika quote NSE:TCS
  go run ./cmd/kritika snapshot latest`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}

// loadConfig reads the environment and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
