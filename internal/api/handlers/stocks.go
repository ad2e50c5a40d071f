package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/kritika/internal/annotator"
	"github.com/wonny/kritika/internal/catalog"
	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/pkg/logger"
)

// maxSearchLimit caps ?limit= on search
const maxSearchLimit = 100

// StockCatalog is what the stock endpoints read from
type StockCatalog interface {
	Records() []contracts.StockRecord
	Get(ticker string) (contracts.StockRecord, error)
	Search(query string, limit int) ([]contracts.StockRecord, error)
	Stats() catalog.Stats
}

// StocksHandler serves the annotated stock list
// ⭐ SSOT: 종목 리스트 API 핸들러는 이 구조체에서만
type StocksHandler struct {
	catalog   StockCatalog
	annotator *annotator.Annotator
	logger    *logger.Logger
}

// NewStocksHandler creates a new stocks handler
func NewStocksHandler(c StockCatalog, a *annotator.Annotator, log *logger.Logger) *StocksHandler {
	return &StocksHandler{
		catalog:   c,
		annotator: a,
		logger:    log.Component("stocks_handler"),
	}
}

// StockListResponse is the body of GET /api/stocks
type StockListResponse struct {
	Count  int                    `json:"count"`
	Stats  catalog.Stats          `json:"stats"`
	Stocks []annotator.Annotation `json:"stocks"`
}

// StockResponse is the body of GET /api/stocks/{ticker}
type StockResponse struct {
	Annotation annotator.Annotation   `json:"annotation"`
	Record     *contracts.StockRecord `json:"record"`
}

// List returns every record, annotated, in sheet order
// GET /api/stocks
func (h *StocksHandler) List(w http.ResponseWriter, r *http.Request) {
	records := h.catalog.Records()

	respondJSON(w, http.StatusOK, StockListResponse{
		Count:  len(records),
		Stats:  h.catalog.Stats(),
		Stocks: h.annotator.AnnotateAll(records),
	})
}

// Search returns records matching ?q=, best first
// GET /api/stocks/search?q=tata&limit=10
func (h *StocksHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = l
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	records, err := h.catalog.Search(query, limit)
	if err != nil {
		h.logger.WithError(err).WithField("query", query).Error("Stock search failed")
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":  query,
		"count":  len(records),
		"stocks": h.annotator.AnnotateAll(records),
	})
}

// Get returns one annotated record with its raw sheet row
// GET /api/stocks/{ticker}
func (h *StocksHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	rec, err := h.catalog.Get(ticker)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "stock not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to get stock")
		respondError(w, http.StatusInternalServerError, "failed to get stock")
		return
	}

	respondJSON(w, http.StatusOK, StockResponse{
		Annotation: h.annotator.Annotate(&rec),
		Record:     &rec,
	})
}
