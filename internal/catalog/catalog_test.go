package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kritika/internal/contracts"
	"github.com/wonny/kritika/internal/search"
	"github.com/wonny/kritika/pkg/logger"
	"github.com/wonny/kritika/pkg/redis"
)

type fakeSource struct {
	mu      sync.Mutex
	records []contracts.StockRecord
	err     error
}

func (f *fakeSource) set(records []contracts.StockRecord, err error) {
	f.mu.Lock()
	f.records, f.err = records, err
	f.mu.Unlock()
}

func (f *fakeSource) FetchRecords(ctx context.Context) ([]contracts.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.err
}

// fakeCache round-trips through JSON like redis.Cache does
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.data[key] = raw
	f.mu.Unlock()
	return nil
}

type fakeSnapshots struct {
	mu    sync.Mutex
	saved []*Snapshot
}

func (f *fakeSnapshots) SaveSnapshot(ctx context.Context, records []contracts.StockRecord) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := &Snapshot{ID: int64(len(f.saved) + 1), TakenAt: time.Now(), Count: len(records), Records: records}
	f.saved = append(f.saved, snap)
	return snap, nil
}

func (f *fakeSnapshots) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil, ErrNoSnapshot
	}
	return f.saved[len(f.saved)-1], nil
}

func record(ticker, name string) contracts.StockRecord {
	var r contracts.StockRecord
	r.Set(contracts.KeyTicker, contracts.String(ticker))
	r.Set(contracts.KeyName, contracts.String(name))
	r.Set(contracts.KeyLTP, contracts.Number(100))
	return r
}

func sampleRecords() []contracts.StockRecord {
	return []contracts.StockRecord{
		record("NSE:TCS", "Tata Consultancy Services"),
		record("NSE:INFY", "Infosys"),
		record("BSE:INFY", "Infosys BSE"),
		record("WIPRO", "Wipro"),
	}
}

func newTestCatalog(t *testing.T, src *fakeSource) *Catalog {
	t.Helper()
	idx, err := search.New()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return New(src, idx, logger.Nop())
}

func TestLoad(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	c := newTestCatalog(t, src)

	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, 4, c.Len())
	records := c.Records()
	require.Len(t, records, 4)
	assert.Equal(t, "TCS", records[0].Ticker)
	assert.Equal(t, "WIPRO", records[3].Ticker)

	stats := c.Stats()
	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, OriginSheet, stats.Origin)
	assert.Equal(t, 1, stats.Loads)
	assert.Zero(t, stats.Failures)
}

func TestGet(t *testing.T) {
	c := newTestCatalog(t, &fakeSource{records: sampleRecords()})
	require.NoError(t, c.Load(context.Background()))

	tests := []struct {
		ticker string
		name   string
	}{
		{"TCS", "Tata Consultancy Services"},
		{"tcs", "Tata Consultancy Services"},
		{"NSE:TCS", "Tata Consultancy Services"},
		{"INFY", "Infosys"}, // first listing wins
		{"bse:infy", "Infosys BSE"},
		{"WIPRO", "Wipro"},
		{"NSE:WIPRO", "Wipro"}, // sheet gave no exchange
	}
	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			r, err := c.Get(tt.ticker)
			require.NoError(t, err)
			assert.Equal(t, tt.name, r.Name)
		})
	}

	_, err := c.Get("HDFCBANK")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Get("BSE:TCS")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch(t *testing.T) {
	c := newTestCatalog(t, &fakeSource{records: sampleRecords()})
	require.NoError(t, c.Load(context.Background()))

	got, err := c.Search("tcs", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Tata Consultancy Services", got[0].Name)

	got, err = c.Search("", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_FailureKeepsPrevious(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	c := newTestCatalog(t, src)
	require.NoError(t, c.Load(context.Background()))

	src.set(nil, errors.New("sheet down"))
	err := c.Load(context.Background())
	require.Error(t, err)

	assert.Equal(t, 4, c.Len())
	stats := c.Stats()
	assert.Equal(t, 1, stats.Failures)
	assert.Contains(t, stats.LastError, "sheet down")
	assert.Equal(t, OriginSheet, stats.Origin)
}

func TestLoad_FirstFailureIsEmpty(t *testing.T) {
	c := newTestCatalog(t, &fakeSource{err: errors.New("sheet down")})

	require.Error(t, c.Load(context.Background()))
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Records())
}

func TestLoad_MirrorsAndFallsBackToCache(t *testing.T) {
	cache := newFakeCache()

	first := newTestCatalog(t, &fakeSource{records: sampleRecords()}).WithCache(cache)
	require.NoError(t, first.Load(context.Background()))

	_, ok := cache.data[redis.StockListKey()]
	require.True(t, ok)

	second := newTestCatalog(t, &fakeSource{err: errors.New("sheet down")}).WithCache(cache)
	require.NoError(t, second.Load(context.Background()))

	assert.Equal(t, 4, second.Len())
	assert.Equal(t, OriginCache, second.Stats().Origin)

	r, err := second.Get("NSE:TCS")
	require.NoError(t, err)
	assert.Equal(t, []string{contracts.KeyTicker, contracts.KeyName, contracts.KeyLTP}, r.Keys())
}

func TestLoad_FallsBackToSnapshot(t *testing.T) {
	snaps := &fakeSnapshots{}

	first := newTestCatalog(t, &fakeSource{records: sampleRecords()}).WithSnapshots(snaps)
	require.NoError(t, first.Load(context.Background()))
	require.Len(t, snaps.saved, 1)
	assert.Equal(t, 4, snaps.saved[0].Count)

	second := newTestCatalog(t, &fakeSource{err: errors.New("sheet down")}).WithSnapshots(snaps)
	require.NoError(t, second.Load(context.Background()))
	assert.Equal(t, OriginSnapshot, second.Stats().Origin)
	assert.Equal(t, 4, second.Len())
}

func TestLoad_Concurrent(t *testing.T) {
	c := newTestCatalog(t, &fakeSource{records: sampleRecords()})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Load(context.Background()))
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Search("infy", 5)
			_ = c.Records()
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, c.Stats().Loads)
}
