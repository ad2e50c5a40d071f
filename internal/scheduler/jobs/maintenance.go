package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/kritika/pkg/logger"
)

// StaleCleaner drops expired entries; realtime/cache.QuoteCache implements it
type StaleCleaner interface {
	CleanStale() int
}

// CacheCleanupJob cleans stale quotes from cache
type CacheCleanupJob struct {
	cache  StaleCleaner
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(c StaleCleaner, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:  c,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *CacheCleanupJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	count := j.cache.CleanStale()

	if count > 0 {
		j.logger.WithField("removed", count).Info("Cache cleanup completed")
	}

	return nil
}

// SnapshotPruner deletes old catalog snapshots
type SnapshotPruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// SnapshotPruneJob keeps the snapshot table bounded
type SnapshotPruneJob struct {
	repo   SnapshotPruner
	keep   int
	logger *logger.Logger
}

// NewSnapshotPruneJob creates a job keeping the newest keep snapshots
func NewSnapshotPruneJob(repo SnapshotPruner, keep int, log *logger.Logger) *SnapshotPruneJob {
	return &SnapshotPruneJob{
		repo:   repo,
		keep:   keep,
		logger: log,
	}
}

// Name returns the job name
func (j *SnapshotPruneJob) Name() string {
	return "snapshot_prune"
}

// Schedule returns the cron schedule (daily at 03:30)
func (j *SnapshotPruneJob) Schedule() string {
	return "0 30 3 * * *"
}

// Run executes the prune
func (j *SnapshotPruneJob) Run(ctx context.Context) error {
	if j.keep < 1 {
		return fmt.Errorf("snapshot prune: keep must be positive, got %d", j.keep)
	}

	removed, err := j.repo.Prune(ctx, j.keep)
	if err != nil {
		return err
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Old catalog snapshots pruned")
	}
	return nil
}
