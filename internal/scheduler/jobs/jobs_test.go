package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/kritika/pkg/logger"
)

type fakeCatalog struct {
	err   error
	loads int
}

func (f *fakeCatalog) Load(ctx context.Context) error {
	f.loads++
	return f.err
}

func (f *fakeCatalog) Len() int { return 3 }

type fakeCleaner struct{ removed int }

func (f *fakeCleaner) CleanStale() int { return f.removed }

type fakePruner struct {
	keep int
	err  error
}

func (f *fakePruner) Prune(ctx context.Context, keep int) (int64, error) {
	f.keep = keep
	return 2, f.err
}

func TestCatalogRefreshJob(t *testing.T) {
	c := &fakeCatalog{}
	job := NewCatalogRefreshJob(c, "0 0 */6 * * *", logger.Nop())

	assert.Equal(t, "catalog_refresh", job.Name())
	assert.Equal(t, "0 0 */6 * * *", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, c.loads)

	c.err = errors.New("sheet down")
	assert.Error(t, job.Run(context.Background()))
}

func TestCacheCleanupJob(t *testing.T) {
	job := NewCacheCleanupJob(&fakeCleaner{removed: 4}, logger.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	assert.NoError(t, job.Run(context.Background()))
}

func TestSnapshotPruneJob(t *testing.T) {
	p := &fakePruner{}
	job := NewSnapshotPruneJob(p, 10, logger.Nop())
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 10, p.keep)

	assert.Error(t, NewSnapshotPruneJob(p, 0, logger.Nop()).Run(context.Background()))

	p.err = errors.New("db down")
	assert.Error(t, job.Run(context.Background()))
}
