// Package search keeps an in-memory full text index over the stock catalog.
package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/wonny/kritika/internal/contracts"
)

// DefaultLimit caps results when the caller passes no limit
const DefaultLimit = 20

const tickerAnalyzer = "ticker_keyword"

// document is what gets indexed for one record
type document struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// Index is a rebuildable in-memory bleve index.
// Build swaps the whole index; searches see either the old or the new one.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

// New creates an empty index
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

// DocID is the identifier a record is indexed under: "EXCHANGE:TICKER",
// or the bare ticker when the sheet gave no exchange.
func DocID(r *contracts.StockRecord) string {
	if r.Exchange == "" {
		return r.Ticker
	}
	return contracts.InstrumentKey(r.Exchange, r.Ticker)
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	// 티커는 토큰 분리 없이 소문자 키워드로 (BAJAJ-AUTO 같은 심볼 보존)
	_ = indexMapping.AddCustomAnalyzer(tickerAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})

	tickerField := bleve.NewTextFieldMapping()
	tickerField.Analyzer = tickerAnalyzer
	tickerField.Store = true

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = standard.Name
	nameField.Store = true

	exchangeField := bleve.NewKeywordFieldMapping()
	exchangeField.Store = true

	stockMapping := bleve.NewDocumentMapping()
	stockMapping.AddFieldMappingsAt("ticker", tickerField)
	stockMapping.AddFieldMappingsAt("name", nameField)
	stockMapping.AddFieldMappingsAt("exchange", exchangeField)

	indexMapping.DefaultMapping = stockMapping
	return indexMapping
}

// Build replaces the index contents with records
func (i *Index) Build(records []contracts.StockRecord) error {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	batch := idx.NewBatch()
	for n := range records {
		r := &records[n]
		if r.Ticker == "" {
			continue
		}
		doc := document{Ticker: r.Ticker, Name: r.Name, Exchange: r.Exchange}
		if err := batch.Index(DocID(r), doc); err != nil {
			idx.Close()
			return fmt.Errorf("add %s to batch: %w", r.Ticker, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("execute batch: %w", err)
	}

	i.mu.Lock()
	old := i.index
	i.index = idx
	i.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Search returns matching document ids, best first.
// Ticker matches outrank name matches; names tolerate one typo.
func (i *Index) Search(text string, limit int) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	lower := strings.ToLower(text)

	exact := bleve.NewTermQuery(lower)
	exact.SetField("ticker")
	exact.SetBoost(10.0)

	prefix := bleve.NewPrefixQuery(lower)
	prefix.SetField("ticker")
	prefix.SetBoost(5.0)

	name := bleve.NewMatchQuery(text)
	name.SetField("name")
	name.SetBoost(3.0)

	fuzzy := bleve.NewMatchQuery(text)
	fuzzy.SetField("name")
	fuzzy.SetFuzziness(1)
	fuzzy.SetBoost(1.0)

	queries := []query.Query{exact, prefix, name, fuzzy}

	// 입력 중인 마지막 단어는 이름 접두어로도 검색
	words := strings.Fields(lower)
	namePrefix := bleve.NewPrefixQuery(words[len(words)-1])
	namePrefix.SetField("name")
	namePrefix.SetBoost(2.0)
	queries = append(queries, namePrefix)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(queries...), limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	i.mu.RLock()
	defer i.mu.RUnlock()

	result, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Count returns the number of indexed records
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Close releases the index
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}
