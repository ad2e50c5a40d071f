package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kritika/internal/contracts"
)

func record(ticker, name string) contracts.StockRecord {
	var r contracts.StockRecord
	r.Set(contracts.KeyTicker, contracts.String(ticker))
	r.Set(contracts.KeyName, contracts.String(name))
	return r
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	require.NoError(t, idx.Build([]contracts.StockRecord{
		record("NSE:TCS", "Tata Consultancy Services"),
		record("NSE:TATAMOTORS", "Tata Motors"),
		record("INFY", "Infosys"),
		record("NSE:HDFCBANK", "HDFC Bank"),
		record("NSE:BAJAJ-AUTO", "Bajaj Auto"),
		record("", "No ticker row"),
	}))
	return idx
}

func TestDocID(t *testing.T) {
	r := record("nse:TCS", "Tata Consultancy Services")
	assert.Equal(t, "NSE:TCS", DocID(&r))

	r = record("INFY", "Infosys")
	assert.Equal(t, "INFY", DocID(&r))
}

func TestIndex_Count(t *testing.T) {
	idx := newTestIndex(t)
	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}

func TestIndex_Search(t *testing.T) {
	idx := newTestIndex(t)

	tests := []struct {
		name  string
		query string
		first string
		all   []string
	}{
		{"exact ticker", "tcs", "NSE:TCS", []string{"NSE:TCS"}},
		{"ticker upper case", "TCS", "NSE:TCS", []string{"NSE:TCS"}},
		{"ticker prefix wins over name", "tata", "NSE:TATAMOTORS", []string{"NSE:TATAMOTORS", "NSE:TCS"}},
		{"name typo", "infosis", "INFY", []string{"INFY"}},
		{"name prefix", "hdf", "NSE:HDFCBANK", []string{"NSE:HDFCBANK"}},
		{"hyphenated ticker", "bajaj-auto", "NSE:BAJAJ-AUTO", []string{"NSE:BAJAJ-AUTO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := idx.Search(tt.query, 10)
			require.NoError(t, err)
			require.NotEmpty(t, ids)
			assert.Equal(t, tt.first, ids[0])
			assert.ElementsMatch(t, tt.all, ids)
		})
	}
}

func TestIndex_SearchEmptyAndLimit(t *testing.T) {
	idx := newTestIndex(t)

	ids, err := idx.Search("   ", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = idx.Search("tata", 1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	ids, err = idx.Search("zzzz", 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIndex_Rebuild(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Build([]contracts.StockRecord{
		record("NSE:WIPRO", "Wipro"),
	}))

	ids, err := idx.Search("tcs", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = idx.Search("wipro", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"NSE:WIPRO"}, ids)
}
