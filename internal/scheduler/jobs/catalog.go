package jobs

import (
	"context"

	"github.com/wonny/kritika/pkg/logger"
)

// CatalogLoader is the part of catalog.Catalog the refresh job drives
type CatalogLoader interface {
	Load(ctx context.Context) error
	Len() int
}

// CatalogRefreshJob reloads the stock list from the sheet
type CatalogRefreshJob struct {
	catalog  CatalogLoader
	schedule string
	logger   *logger.Logger
}

// NewCatalogRefreshJob creates a refresh job running on schedule
func NewCatalogRefreshJob(c CatalogLoader, schedule string, log *logger.Logger) *CatalogRefreshJob {
	return &CatalogRefreshJob{
		catalog:  c,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *CatalogRefreshJob) Name() string {
	return "catalog_refresh"
}

// Schedule returns the configured cron schedule
func (j *CatalogRefreshJob) Schedule() string {
	return j.schedule
}

// Run reloads the catalog; the previous list survives a failure
func (j *CatalogRefreshJob) Run(ctx context.Context) error {
	if err := j.catalog.Load(ctx); err != nil {
		return err
	}

	j.logger.WithField("count", j.catalog.Len()).Info("Catalog refreshed")
	return nil
}
