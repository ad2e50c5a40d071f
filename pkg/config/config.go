package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Upstream data sources
	Sources SourcesConfig

	// Broker API (live quote upstream)
	Broker BrokerConfig

	// Live-quote backend as seen by clients
	Quote QuoteConfig

	// Display formatting
	Display DisplayConfig

	// Session
	Session SessionConfig

	// Redis
	Redis RedisConfig

	// Database (optional snapshot store)
	Database DatabaseConfig

	// Scheduler
	CatalogRefreshSchedule string

	// Logging
	LogLevel  string
	LogFormat string
}

// SourcesConfig holds the spreadsheet-backed stock list and content API endpoints
type SourcesConfig struct {
	StocksURL  string
	ContentURL string
	Timeout    time.Duration
}

// BrokerConfig holds broker API credentials
type BrokerConfig struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	DefaultExchange string
	RateLimit       int // requests per second
}

// QuoteConfig holds settings for the /generate-token + /market-feed chain
type QuoteConfig struct {
	BackendURL string
	Timeout    time.Duration
	CacheTTL   time.Duration
}

// DisplayConfig holds currency formatting options
type DisplayConfig struct {
	CurrencySymbol string
	Locale         string
}

// SessionConfig holds session lifetime and access codes
type SessionConfig struct {
	TTL         time.Duration
	AccessCodes []string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a snapshot database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Sources: SourcesConfig{
			StocksURL:  getEnv("STOCKS_URL", ""),
			ContentURL: getEnv("CONTENT_URL", ""),
			Timeout:    getEnvAsDuration("SOURCE_TIMEOUT", "15s"),
		},

		Broker: BrokerConfig{
			BaseURL:         getEnv("BROKER_BASE_URL", "https://api.kite.trade"),
			APIKey:          getEnv("BROKER_API_KEY", ""),
			APISecret:       getEnv("BROKER_API_SECRET", ""),
			DefaultExchange: getEnv("BROKER_DEFAULT_EXCHANGE", "NSE"),
			RateLimit:       getEnvAsInt("BROKER_RATE_LIMIT", 3),
		},

		Quote: QuoteConfig{
			BackendURL: getEnv("QUOTE_BACKEND_URL", "http://localhost:8080"),
			Timeout:    getEnvAsDuration("QUOTE_TIMEOUT", "10s"),
			CacheTTL:   getEnvAsDuration("QUOTE_CACHE_TTL", "5s"),
		},

		Display: DisplayConfig{
			CurrencySymbol: getEnv("CURRENCY_SYMBOL", "₹"),
			Locale:         getEnv("DISPLAY_LOCALE", "en-IN"),
		},

		Session: SessionConfig{
			TTL:         getEnvAsDuration("SESSION_TTL", "24h"),
			AccessCodes: getEnvAsList("AUTH_ACCESS_CODES"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// 6시간마다 종목 리스트 새로고침 (초 단위 포함 cron)
		CatalogRefreshSchedule: getEnv("CATALOG_REFRESH_SCHEDULE", "0 0 */6 * * *"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Sources.StocksURL == "" {
		return fmt.Errorf("STOCKS_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Broker.RateLimit <= 0 {
		return fmt.Errorf("BROKER_RATE_LIMIT must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
