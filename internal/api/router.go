package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/kritika/internal/api/handlers"
	"github.com/wonny/kritika/internal/session"
	"github.com/wonny/kritika/pkg/logger"
)

// Handlers groups the route handlers. Nil handlers leave their routes out.
type Handlers struct {
	Health  *handlers.HealthHandler
	Stocks  *handlers.StocksHandler
	Content *handlers.ContentHandler
	Session *handlers.SessionHandler
	Quote   *handlers.QuoteHandler
	Picker  *handlers.PickerHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, sessions *session.Manager, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	if h.Health != nil {
		r.HandleFunc("/health", h.Health.Health).Methods("GET")
	}

	// Live-quote backend, widget endpoints need a session like the rest
	if h.Quote != nil {
		feed := r.NewRoute().Subrouter()
		feed.Use(sessionMiddleware(sessions, log))
		feed.HandleFunc("/generate-token", h.Quote.GenerateToken).Methods("GET")
		feed.HandleFunc("/market-feed", h.Quote.MarketFeed).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Public endpoints
	if h.Session != nil {
		api.HandleFunc("/session", h.Session.Login).Methods("POST")
		api.HandleFunc("/session", h.Session.Logout).Methods("DELETE")
	}
	if h.Content != nil {
		api.HandleFunc("/content/{slug}", h.Content.GetPage).Methods("GET")
	}

	// Session-gated endpoints
	protected := api.NewRoute().Subrouter()
	protected.Use(sessionMiddleware(sessions, log))

	if h.Session != nil {
		protected.HandleFunc("/session", h.Session.Me).Methods("GET")
	}
	if h.Stocks != nil {
		protected.HandleFunc("/stocks", h.Stocks.List).Methods("GET")
		protected.HandleFunc("/stocks/search", h.Stocks.Search).Methods("GET")
		protected.HandleFunc("/stocks/{ticker}", h.Stocks.Get).Methods("GET")
	}
	if h.Health != nil {
		protected.HandleFunc("/jobs", h.Health.Jobs).Methods("GET")
		protected.HandleFunc("/jobs/{name}/run", h.Health.RunJob).Methods("POST")
	}

	if h.Picker != nil {
		ws := r.PathPrefix("/ws").Subrouter()
		ws.Use(sessionMiddleware(sessions, log))
		ws.HandleFunc("/picker", h.Picker.Serve).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}
