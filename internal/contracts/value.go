package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ValueKind is the JSON shape a record value arrived in
type ValueKind int

const (
	KindAbsent ValueKind = iota // missing key or JSON null
	KindString
	KindNumber
	KindBool
)

// Value is one cell of a stock record: text, number, bool or absent.
// The zero Value is absent.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// String builds a text value
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number builds a numeric value
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool builds a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the value's JSON shape
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports a missing or null value
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Str returns the text of a string value
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the number of a numeric value
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Truthy follows sheet semantics: "", 0, NaN, false and absent are falsy
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindBool:
		return v.b
	default:
		return false
	}
}

// Text renders the raw value unchanged; absent renders empty
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		switch {
		case math.IsInf(v.num, 1):
			return "Infinity"
		case math.IsInf(v.num, -1):
			return "-Infinity"
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// UnmarshalJSON accepts any JSON scalar. Nested arrays/objects are kept as
// their raw JSON text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}

	switch data[0] {
	case 'n':
		*v = Value{}
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{', '[':
		*v = String(string(data))
	default:
		// out-of-range literals saturate to ±Inf (or 0) instead of failing the row
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return fmt.Errorf("invalid number %q: %w", data, err)
		}
		*v = Number(f)
	}
	return nil
}

// MarshalJSON writes the value back in its original shape
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}
