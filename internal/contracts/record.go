package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field keys of the stock sheet
const (
	KeyTicker       = "Ticker"
	KeyName         = "Stock Name"
	KeyLTP          = "LTP"
	KeyValuation    = "VALUATION"
	KeyFundamentals = "FUNDAMENTALS"
	KeyRating       = "Kritika RATING"

	KeyPERatio = "P/E Ratio"
	KeyAvgROE  = "Avg ROE"
	KeyAvgROCE = "Avg ROCE"

	// 시트에 남아있는 테스트용 컬럼
	KeyAvgROETest = "AVG ROE TEST"
	KeyROCETest   = "ROCE TEST"
)

// Field is one extra (non schema) key of a record
type Field struct {
	Key   string
	Value Value
}

// StockRecord is one instrument row of the stock sheet
// ⭐ SSOT: 종목 레코드 구조는 여기서만 정의
type StockRecord struct {
	Ticker    string // bare ticker, exchange prefix stripped
	Exchange  string // prefix that was stripped, empty if none
	RawTicker string // ticker as delivered by the sheet

	Name         string
	LTP          Value
	Valuation    Value
	Fundamentals Value
	Rating       Value

	// Extra holds every key outside the fixed schema, in sheet order
	Extra []Field

	order []string
}

// NormalizeTicker strips an exchange prefix: "NSE:TCS" -> ("TCS", "NSE")
func NormalizeTicker(raw string) (ticker, exchange string) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return strings.TrimSpace(raw[i+1:]), strings.ToUpper(strings.TrimSpace(raw[:i]))
	}
	return raw, ""
}

// Set assigns key, routing fixed schema keys to their typed fields.
// A key keeps the position of its first appearance.
func (r *StockRecord) Set(key string, v Value) {
	if !r.has(key) {
		r.order = append(r.order, key)
	}

	switch key {
	case KeyTicker:
		r.RawTicker = v.Text()
		r.Ticker, r.Exchange = NormalizeTicker(r.RawTicker)
	case KeyName:
		r.Name = v.Text()
	case KeyLTP:
		r.LTP = v
	case KeyValuation:
		r.Valuation = v
	case KeyFundamentals:
		r.Fundamentals = v
	case KeyRating:
		r.Rating = v
	default:
		for i := range r.Extra {
			if r.Extra[i].Key == key {
				r.Extra[i].Value = v
				return
			}
		}
		r.Extra = append(r.Extra, Field{Key: key, Value: v})
	}
}

// Get returns the value stored under key; unknown keys are absent
func (r *StockRecord) Get(key string) Value {
	switch key {
	case KeyTicker:
		if r.RawTicker == "" && r.Ticker == "" {
			return Value{}
		}
		return String(r.rawTicker())
	case KeyName:
		if r.Name == "" && !r.has(KeyName) {
			return Value{}
		}
		return String(r.Name)
	case KeyLTP:
		return r.LTP
	case KeyValuation:
		return r.Valuation
	case KeyFundamentals:
		return r.Fundamentals
	case KeyRating:
		return r.Rating
	}

	for _, f := range r.Extra {
		if f.Key == key {
			return f.Value
		}
	}
	return Value{}
}

// Keys returns every key in insertion order. Records built without Set
// report their populated schema fields first, then Extra.
func (r *StockRecord) Keys() []string {
	if len(r.order) > 0 {
		return append([]string(nil), r.order...)
	}

	var keys []string
	if r.Ticker != "" || r.RawTicker != "" {
		keys = append(keys, KeyTicker)
	}
	if r.Name != "" {
		keys = append(keys, KeyName)
	}
	if !r.LTP.IsAbsent() {
		keys = append(keys, KeyLTP)
	}
	if !r.Valuation.IsAbsent() {
		keys = append(keys, KeyValuation)
	}
	if !r.Fundamentals.IsAbsent() {
		keys = append(keys, KeyFundamentals)
	}
	if !r.Rating.IsAbsent() {
		keys = append(keys, KeyRating)
	}
	for _, f := range r.Extra {
		keys = append(keys, f.Key)
	}
	return keys
}

func (r *StockRecord) has(key string) bool {
	for _, k := range r.order {
		if k == key {
			return true
		}
	}
	return false
}

func (r *StockRecord) rawTicker() string {
	if r.RawTicker != "" {
		return r.RawTicker
	}
	if r.Exchange != "" {
		return r.Exchange + ":" + r.Ticker
	}
	return r.Ticker
}

// UnmarshalJSON decodes a sheet row keeping the key order
func (r *StockRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("stock record must be a JSON object")
	}

	*r = StockRecord{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		r.Set(key, v)
	}

	_, err = dec.Token()
	return err
}

// MarshalJSON re-emits the row in sheet shape and order
func (r StockRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, key := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.Get(key))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
