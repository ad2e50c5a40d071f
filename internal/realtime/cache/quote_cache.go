package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/pkg/logger"
)

// FetchFunc loads a fresh quote on a cache miss
type FetchFunc func(ctx context.Context) (*contracts.Quote, error)

// DefaultFetchTimeout bounds a shared fetch when no timeout is configured
const DefaultFetchTimeout = 10 * time.Second

// QuoteCache is an in-memory TTL cache of live quotes keyed by scope and
// "EXCHANGE:SYMBOL". A scope is the fingerprint of the credential the quote
// was fetched with, so a hit is only served to callers holding that same
// credential. Entries older than the TTL are never served.
// ⭐ SSOT: 실시간 시세 캐싱은 이 구조체에서만
type QuoteCache struct {
	mu           sync.RWMutex
	quotes       map[string]*contracts.Quote
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *logger.Logger
	now          func() time.Time

	group singleflight.Group
}

// CacheStats holds cache statistics
type CacheStats struct {
	TotalCount int            `json:"total_count"`
	StaleCount int            `json:"stale_count"`
	BySource   map[string]int `json:"by_source"`
}

// NewQuoteCache creates a quote cache. A non-positive ttl disables caching.
func NewQuoteCache(ttl time.Duration, log *logger.Logger) *QuoteCache {
	return &QuoteCache{
		quotes: make(map[string]*contracts.Quote),
		ttl:          ttl,
		fetchTimeout: DefaultFetchTimeout,
		logger:       log.Component("quote_cache"),
		now:          time.Now,
	}
}

// WithFetchTimeout sets the deadline of a shared upstream fetch
func (c *QuoteCache) WithFetchTimeout(d time.Duration) *QuoteCache {
	if d > 0 {
		c.fetchTimeout = d
	}
	return c
}

// Scope fingerprints a credential. Raw tokens never become map keys.
func Scope(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:8])
}

func entryKey(scope, exchange, symbol string) string {
	return scope + "|" + contracts.InstrumentKey(exchange, symbol)
}

// Update stores q under scope unless a newer quote for the same instrument is cached
func (c *QuoteCache) Update(scope string, q *contracts.Quote) bool {
	if c.ttl <= 0 || q == nil {
		return false
	}

	key := entryKey(scope, q.Exchange, q.Symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.quotes[key]; ok && q.FetchedAt.Before(existing.FetchedAt) {
		c.logger.WithFields(map[string]interface{}{
			"instrument": key,
			"new_time":   q.FetchedAt,
			"old_time":   existing.FetchedAt,
		}).Debug("Rejected older quote")
		return false
	}

	stored := *q
	c.quotes[key] = &stored
	return true
}

// Get returns a copy of the quote cached under scope when it is still fresh
func (c *QuoteCache) Get(scope, exchange, symbol string) (*contracts.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[entryKey(scope, exchange, symbol)]
	if !ok || c.isStale(q) {
		return nil, false
	}

	out := *q
	out.Source = "cache"
	return &out, true
}

// GetOrFetch serves a fresh quote cached under scope or calls fetch once per
// scope and instrument, sharing the result between concurrent callers.
// The shared fetch runs detached from any single caller's cancellation,
// bounded by the fetch timeout; each caller still stops waiting when its own
// ctx ends. Only successful results are cached.
func (c *QuoteCache) GetOrFetch(ctx context.Context, scope, exchange, symbol string, fetch FetchFunc) (*contracts.Quote, error) {
	if q, ok := c.Get(scope, exchange, symbol); ok {
		return q, nil
	}

	key := entryKey(scope, exchange, symbol)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		q, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.Update(scope, q)
		return q, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	if res.Shared {
		c.logger.WithField("instrument", contracts.InstrumentKey(exchange, symbol)).Debug("Shared in-flight quote fetch")
	}

	q := *res.Val.(*contracts.Quote)
	return &q, nil
}

// Delete removes an instrument cached under scope
func (c *QuoteCache) Delete(scope, exchange, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.quotes, entryKey(scope, exchange, symbol))
}

// Clear clears all quotes
func (c *QuoteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes = make(map[string]*contracts.Quote)
	c.logger.Info("Cleared quote cache")
}

// Len returns the number of cached quotes, stale ones included
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.quotes)
}

// CleanStale removes stale quotes and returns how many were dropped
func (c *QuoteCache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, q := range c.quotes {
		if c.isStale(q) {
			delete(c.quotes, key)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Debug("Cleaned stale quotes from cache")
	}

	return count
}

// Stats returns cache statistics
func (c *QuoteCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		TotalCount: len(c.quotes),
		BySource:   make(map[string]int),
	}
	for _, q := range c.quotes {
		if c.isStale(q) {
			stats.StaleCount++
		}
		stats.BySource[q.Source]++
	}
	return stats
}

func (c *QuoteCache) isStale(q *contracts.Quote) bool {
	return c.now().Sub(q.FetchedAt) > c.ttl
}
