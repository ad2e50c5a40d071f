// Package catalog holds the in-memory stock list served to the picker.
//
// The list is fetched from the stock sheet, indexed for search, mirrored to
// Redis and optionally snapshotted to Postgres. A failed refresh keeps the
// previous list; a failed first load falls back to the Redis copy and then to
// the latest snapshot.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/internal/search"
	"github.com/wonny/kritika/pkg/logger"
	"github.com/wonny/kritika/pkg/redis"
)

// ErrNotFound is returned by Get for an unknown ticker
var ErrNotFound = errors.New("stock not found")

// Where the current record set came from
const (
	OriginNone     = ""
	OriginSheet    = "sheet"
	OriginCache    = "cache"
	OriginSnapshot = "snapshot"
)

// RecordCache is the subset of redis.Cache the catalog needs
type RecordCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SnapshotStore persists full record sets
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, records []contracts.StockRecord) (*Snapshot, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
}

// Stats describes the current record set
type Stats struct {
	Count     int       `json:"count"`
	Origin    string    `json:"origin"`
	LoadedAt  time.Time `json:"loaded_at"`
	Loads     int       `json:"loads"`
	Failures  int       `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
}

// Catalog is the process-wide stock list
// ⭐ SSOT: 종목 리스트 상태는 여기서만 보관
type Catalog struct {
	source    contracts.RecordSource
	index     *search.Index
	cache     RecordCache
	snapshots SnapshotStore
	logger    *logger.Logger

	loadMu sync.Mutex // serializes Load so index and records stay paired

	mu       sync.RWMutex
	records  []contracts.StockRecord
	byID     map[string]int
	byTicker map[string]int
	origin   string
	loadedAt time.Time
	loads    int
	failures int
	lastErr  error
}

// New creates an empty catalog
func New(source contracts.RecordSource, index *search.Index, log *logger.Logger) *Catalog {
	return &Catalog{
		source:   source,
		index:    index,
		logger:   log.Component("catalog"),
		byID:     make(map[string]int),
		byTicker: make(map[string]int),
	}
}

// WithCache mirrors every successful load to cache
func (c *Catalog) WithCache(cache RecordCache) *Catalog {
	c.cache = cache
	return c
}

// WithSnapshots persists every successful load to store
func (c *Catalog) WithSnapshots(store SnapshotStore) *Catalog {
	c.snapshots = store
	return c
}

// Load fetches the stock list and replaces the current set.
// On error the previous set stays in place.
func (c *Catalog) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	start := time.Now()

	records, err := c.source.FetchRecords(ctx)
	if err != nil {
		c.recordFailure(err)

		if c.Len() == 0 {
			if fallbackErr := c.loadFallback(ctx); fallbackErr == nil {
				return nil
			}
		}

		c.logger.WithError(err).WithField("kept", c.Len()).Error("Failed to load stock list")
		return fmt.Errorf("load stock list: %w", err)
	}

	if err := c.replace(records, OriginSheet); err != nil {
		c.recordFailure(err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.cache != nil {
		g.Go(func() error {
			if err := c.cache.Set(gctx, redis.StockListKey(), records, redis.TTLLong); err != nil {
				c.logger.WithError(err).Warn("Failed to cache stock list")
			}
			return nil
		})
	}
	if c.snapshots != nil {
		g.Go(func() error {
			snap, err := c.snapshots.SaveSnapshot(gctx, records)
			if err != nil {
				c.logger.WithError(err).Warn("Failed to save catalog snapshot")
				return nil
			}
			c.logger.WithField("snapshot_id", snap.ID).Debug("Catalog snapshot saved")
			return nil
		})
	}
	_ = g.Wait()

	c.logger.WithFields(map[string]interface{}{
		"count":    len(records),
		"duration": time.Since(start),
	}).Info("Stock list loaded")

	return nil
}

// loadFallback restores the set from Redis, then from the latest snapshot
func (c *Catalog) loadFallback(ctx context.Context) error {
	if c.cache != nil {
		var cached []contracts.StockRecord
		ok, err := c.cache.Get(ctx, redis.StockListKey(), &cached)
		if err != nil {
			c.logger.WithError(err).Warn("Failed to read cached stock list")
		}
		if ok && len(cached) > 0 {
			if err := c.replace(cached, OriginCache); err == nil {
				c.logger.WithField("count", len(cached)).Warn("Stock list restored from cache")
				return nil
			}
		}
	}

	if c.snapshots != nil {
		snap, err := c.snapshots.LatestSnapshot(ctx)
		if err == nil && len(snap.Records) > 0 {
			if err := c.replace(snap.Records, OriginSnapshot); err == nil {
				c.logger.WithFields(map[string]interface{}{
					"count":    len(snap.Records),
					"taken_at": snap.TakenAt,
				}).Warn("Stock list restored from snapshot")
				return nil
			}
		}
	}

	return errors.New("no fallback stock list")
}

func (c *Catalog) replace(records []contracts.StockRecord, origin string) error {
	if c.index != nil {
		if err := c.index.Build(records); err != nil {
			return fmt.Errorf("build search index: %w", err)
		}
	}

	byID := make(map[string]int, len(records))
	byTicker := make(map[string]int, len(records))
	for i := range records {
		r := &records[i]
		if _, dup := byID[search.DocID(r)]; !dup {
			byID[search.DocID(r)] = i
		}
		if _, dup := byTicker[strings.ToUpper(r.Ticker)]; !dup {
			byTicker[strings.ToUpper(r.Ticker)] = i
		}
	}

	c.mu.Lock()
	c.records = records
	c.byID = byID
	c.byTicker = byTicker
	c.origin = origin
	c.loadedAt = time.Now()
	c.loads++
	c.lastErr = nil
	c.mu.Unlock()

	return nil
}

func (c *Catalog) recordFailure(err error) {
	c.mu.Lock()
	c.failures++
	c.lastErr = err
	c.mu.Unlock()
}

// Records returns the current set in sheet order
func (c *Catalog) Records() []contracts.StockRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]contracts.StockRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Get finds a record by "EXCHANGE:TICKER" or bare ticker, case-insensitively
func (c *Catalog) Get(ticker string) (contracts.StockRecord, error) {
	symbol, exchange := contracts.NormalizeTicker(ticker)
	symbol = strings.ToUpper(symbol)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if exchange != "" {
		if i, ok := c.byID[contracts.InstrumentKey(exchange, symbol)]; ok {
			return c.records[i], nil
		}
		if i, ok := c.byID[symbol]; ok {
			return c.records[i], nil
		}
		return contracts.StockRecord{}, fmt.Errorf("%s: %w", ticker, ErrNotFound)
	}

	if i, ok := c.byTicker[symbol]; ok {
		return c.records[i], nil
	}
	return contracts.StockRecord{}, fmt.Errorf("%s: %w", ticker, ErrNotFound)
}

// Search returns records matching query, best first
func (c *Catalog) Search(query string, limit int) ([]contracts.StockRecord, error) {
	if c.index == nil {
		return nil, errors.New("search index not configured")
	}

	ids, err := c.index.Search(query, limit)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]contracts.StockRecord, 0, len(ids))
	for _, id := range ids {
		if i, ok := c.byID[id]; ok {
			out = append(out, c.records[i])
		}
	}
	return out, nil
}

// Stats reports the state of the current set
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Count:    len(c.records),
		Origin:   c.origin,
		LoadedAt: c.loadedAt,
		Loads:    c.loads,
		Failures: c.failures,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}
