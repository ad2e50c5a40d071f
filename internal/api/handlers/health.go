package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/kritika/internal/catalog"
	"github.com/wonny/kritika/internal/scheduler"
	"github.com/wonny/kritika/pkg/database"
	"github.com/wonny/kritika/pkg/logger"
)

// CatalogStats reports catalog state
type CatalogStats interface {
	Stats() catalog.Stats
}

// JobRunner is the part of scheduler.Scheduler exposed over HTTP
type JobRunner interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(jobName string) error
}

// HealthHandler reports service health
type HealthHandler struct {
	catalog CatalogStats
	db      *database.DB
	jobs    JobRunner
	logger  *logger.Logger
}

// NewHealthHandler creates a health handler; db and jobs may be nil
func NewHealthHandler(c CatalogStats, db *database.DB, jobs JobRunner, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		catalog: c,
		db:      db,
		jobs:    jobs,
		logger:  log.Component("health_handler"),
	}
}

// Health returns ok while the service can answer; "degraded" when the
// catalog is empty or the database is unreachable
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	body := map[string]interface{}{
		"service": "kritika-api",
	}

	if h.catalog != nil {
		stats := h.catalog.Stats()
		body["catalog"] = stats
		if stats.Count == 0 {
			status = "degraded"
		}
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbStatus := h.db.HealthCheck(ctx)
		body["database"] = dbStatus
		if !dbStatus.Healthy {
			status = "degraded"
		}
	}

	body["status"] = status
	respondJSON(w, http.StatusOK, body)
}

// Jobs returns scheduler statistics
// GET /api/jobs
func (h *HealthHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	respondJSON(w, http.StatusOK, h.jobs.GetJobStats())
}

// RunJob triggers a job outside its schedule
// POST /api/jobs/{name}/run
func (h *HealthHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if h.jobs == nil {
		respondError(w, http.StatusNotFound, "scheduler not running")
		return
	}

	if err := h.jobs.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered manually")
	respondJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "started"})
}
