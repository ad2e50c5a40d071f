package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/internal/external/content"
	"github.com/wonny/kritika/pkg/logger"
	"github.com/wonny/kritika/pkg/redis"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// JSONCache is the subset of redis.Cache used for page copy
type JSONCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ContentHandler serves landing page copy
type ContentHandler struct {
	pages  contracts.PageSource
	cache  JSONCache
	logger *logger.Logger
}

// NewContentHandler creates a content handler; cache may be nil
func NewContentHandler(pages contracts.PageSource, cache JSONCache, log *logger.Logger) *ContentHandler {
	return &ContentHandler{
		pages:  pages,
		cache:  cache,
		logger: log.Component("content_handler"),
	}
}

// GetPage returns one page with its sections
// GET /api/content/{slug}
func (h *ContentHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := mux.Vars(r)["slug"]

	if !slugPattern.MatchString(slug) {
		respondError(w, http.StatusBadRequest, "invalid page slug")
		return
	}

	if h.cache != nil {
		var cached contracts.PageCopy
		found, err := h.cache.Get(ctx, redis.PageKey(slug), &cached)
		if err != nil {
			h.logger.WithError(err).Warn("Page cache read failed")
		}
		if found {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	page, err := h.pages.FetchPage(ctx, slug)
	if errors.Is(err, content.ErrPageNotFound) {
		respondError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("slug", slug).Error("Failed to fetch page copy")
		respondError(w, http.StatusBadGateway, "failed to fetch page")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, redis.PageKey(slug), page, redis.TTLMedium); err != nil {
			h.logger.WithError(err).Warn("Page cache write failed")
		}
	}

	respondJSON(w, http.StatusOK, page)
}
