package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/kritika/internal/annotator"
	"github.com/wonny/kritika/internal/catalog"
	"github.com/wonny/kritika/internal/external/sheet"
	"github.com/wonny/kritika/internal/search"
	"github.com/wonny/kritika/pkg/config"
	"github.com/wonny/kritika/pkg/database"
	"github.com/wonny/kritika/pkg/httputil"
	"github.com/wonny/kritika/pkg/logger"
	"github.com/wonny/kritika/pkg/redis"
)

// redisPrefix namespaces every key this service writes
const redisPrefix = "kritika"

// app holds the infrastructure shared by the commands
type app struct {
	cfg *config.Config
	log *logger.Logger

	redis   *redis.Client
	cache   *redis.Cache
	limiter *redis.RateLimiter

	db        *database.DB // nil when DATABASE_URL is unset
	snapshots *catalog.Repository

	annotator *annotator.Annotator
}

// newApp loads config and connects Redis and Postgres when configured
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg)

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		redis:   redisClient,
		cache:   redis.NewCache(redisClient, redisPrefix),
		limiter: redis.NewRateLimiter(redisClient, redisPrefix),
		annotator: newAnnotator(cfg),
	}

	db, err := database.New(ctx, cfg.Database)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Info("Snapshot database not configured")
	case err != nil:
		redisClient.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	default:
		a.db = db
		a.snapshots = catalog.NewRepository(db.Pool)
		if err := a.snapshots.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure snapshot schema: %w", err)
		}
		log.Info("Connected to database")
	}

	return a, nil
}

func newAnnotator(cfg *config.Config) *annotator.Annotator {
	return annotator.New(annotator.Options{
		CurrencySymbol: cfg.Display.CurrencySymbol,
		Locale:         cfg.Display.Locale,
	})
}

// newCatalog wires the sheet source, search index, Redis copy and snapshots
func (a *app) newCatalog() (*catalog.Catalog, error) {
	index, err := search.New()
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}

	httpClient := httputil.New(a.log, a.cfg.Sources.Timeout)
	source := sheet.NewClient(a.cfg.Sources.StocksURL, httpClient, a.log)

	c := catalog.New(source, index, a.log)
	if a.redis.Enabled() {
		c.WithCache(a.cache)
	}
	if a.snapshots != nil {
		c.WithSnapshots(a.snapshots)
	}
	return c, nil
}

// Close releases connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
}
