// Package picker tracks the stock a viewer has selected and its live price.
//
// Every Select bumps a generation counter and cancels the fetch started by
// the previous one. A fetch result is applied only while its generation is
// still the latest, so a slow response can never overwrite a newer choice.
package picker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wonny/kritika/internal/annotator"
	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/pkg/logger"
)

// Status of a selection
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// FailureMessage is shown for any failed quote fetch
const FailureMessage = "failed to fetch"

// ErrClosed is returned by Select after Close
var ErrClosed = errors.New("selector closed")

// RecordLookup finds a catalog record by ticker
type RecordLookup interface {
	Get(ticker string) (contracts.StockRecord, error)
}

// Selection is the displayed state for the current choice
type Selection struct {
	Generation uint64                `json:"generation"`
	Ticker     string                `json:"ticker"`
	Exchange   string                `json:"exchange"`
	Status     Status                `json:"status"`
	Record     *annotator.Annotation `json:"record,omitempty"`
	Quote      *contracts.Quote      `json:"quote,omitempty"`
	Price      string                `json:"price,omitempty"` // formatted last price
	Error      string                `json:"error,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Config holds selector settings
type Config struct {
	DefaultExchange string
	Timeout         time.Duration // per fetch; zero means none
}

// Selector owns one viewer's selection.
// ⭐ SSOT: 선택 상태 변경은 Selector를 통해서만
type Selector struct {
	quotes    contracts.QuoteSource
	records   RecordLookup
	annotator *annotator.Annotator
	cfg       Config
	logger    *logger.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current Selection
	closed  bool

	// notifyMu keeps listener calls in apply order
	notifyMu  sync.Mutex
	listeners map[int]func(Selection)
	nextID    int

	wg sync.WaitGroup
}

// New creates a selector. records may be nil.
func New(quotes contracts.QuoteSource, records RecordLookup, a *annotator.Annotator, cfg Config, log *logger.Logger) *Selector {
	return &Selector{
		quotes:    quotes,
		records:   records,
		annotator: a,
		cfg:       cfg,
		logger:    log.Component("picker"),
		current:   Selection{Status: StatusIdle},
		listeners: make(map[int]func(Selection)),
	}
}

// Select makes ticker the current choice and starts fetching its live price.
// ticker may carry an exchange prefix ("NSE:TCS"); exchange overrides it.
// ctx bounds the fetch. The returned selection is in the loading state.
func (s *Selector) Select(ctx context.Context, ticker, exchange string) (Selection, error) {
	symbol, prefix := contracts.NormalizeTicker(ticker)
	symbol = strings.ToUpper(symbol)

	sel := Selection{
		Ticker:    symbol,
		Exchange:  strings.ToUpper(strings.TrimSpace(exchange)),
		Status:    StatusLoading,
		UpdatedAt: time.Now(),
	}

	if s.records != nil {
		if rec, err := s.records.Get(ticker); err == nil {
			ann := s.annotator.Annotate(&rec)
			sel.Record = &ann
			if prefix == "" {
				prefix = rec.Exchange
			}
		}
	}
	if sel.Exchange == "" {
		sel.Exchange = prefix
	}
	if sel.Exchange == "" {
		sel.Exchange = strings.ToUpper(s.cfg.DefaultExchange)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Selection{}, ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.gen++
	sel.Generation = s.gen

	fetchCtx, cancel := s.fetchContext(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.applyLocked(sel)

	go s.fetch(fetchCtx, cancel, sel)

	return sel, nil
}

func (s *Selector) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Selector) fetch(ctx context.Context, cancel context.CancelFunc, sel Selection) {
	defer s.wg.Done()
	defer cancel()

	q, err := s.quotes.Quote(ctx, sel.Exchange, sel.Ticker)

	next := sel
	next.UpdatedAt = time.Now()
	if err != nil {
		next.Status = StatusFailed
		next.Error = FailureMessage
	} else {
		next.Status = StatusReady
		next.Quote = q
		next.Price = s.annotator.FormatAmount(q.LastPrice)
	}

	s.mu.Lock()
	if sel.Generation != s.gen || s.closed {
		s.mu.Unlock()
		s.logger.WithField("generation", sel.Generation).Debug("Dropped stale quote response")
		return
	}
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"instrument": contracts.InstrumentKey(sel.Exchange, sel.Ticker),
			"generation": sel.Generation,
		}).WithError(err).Warn("Quote fetch failed")
	}
	s.cancel = nil
	s.applyLocked(next)
}

// applyLocked stores sel and notifies listeners. Called with s.mu held;
// releases it.
func (s *Selector) applyLocked(sel Selection) {
	s.current = sel
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, fn := range s.listeners {
		fn(sel)
	}
}

// Current returns the latest applied selection
func (s *Selector) Current() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnUpdate registers fn for every applied selection and returns a function
// removing it. fn must not block or call Select.
func (s *Selector) OnUpdate(fn func(Selection)) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.listeners, id)
		s.notifyMu.Unlock()
	}
}

// Wait blocks until no fetch is in flight
func (s *Selector) Wait() {
	s.wg.Wait()
}

// Close cancels the in-flight fetch and waits for it to exit
func (s *Selector) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}
