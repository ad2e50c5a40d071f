// Package annotator turns raw stock sheet rows into display-ready annotations.
//
// Every function here is pure. Malformed or missing upstream data never
// fails: it resolves to the neutral tag or the "-" placeholder.
package annotator

// DisplayTag is the color/category class of a rendered value
type DisplayTag string

const (
	TagStrongPositive DisplayTag = "strong-positive"
	TagPositive       DisplayTag = "positive"
	TagWarning        DisplayTag = "warning"
	TagNegative       DisplayTag = "negative"
	TagNeutral        DisplayTag = "neutral"
)

// FieldKind tells the display layer which renderer a field needs
type FieldKind string

const (
	FieldMetric       FieldKind = "metric"
	FieldRating       FieldKind = "rating"
	FieldFundamentals FieldKind = "fundamentals"
)

// FieldView is one rendered field of a record
type FieldView struct {
	Key     string     `json:"key"`
	Kind    FieldKind  `json:"kind"`
	Display string     `json:"display"`
	Tag     DisplayTag `json:"tag"`
	Stars   int        `json:"stars,omitempty"`
}

// Annotation is the display-ready form of one stock record
type Annotation struct {
	Ticker         string      `json:"ticker"`
	Exchange       string      `json:"exchange,omitempty"`
	Name           string      `json:"name"`
	LTP            string      `json:"ltp"`
	Valuation      DisplayTag  `json:"valuation"`
	ValuationLabel string      `json:"valuation_label"`
	Fields         []FieldView `json:"fields"`
}
