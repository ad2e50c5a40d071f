package annotator

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/wonny/kritika/internal/contracts"
)

const (
	// Placeholder is shown for falsy values
	Placeholder = "-"

	// DefaultRatingMarkers are the characters counted as one star each
	DefaultRatingMarkers = "★⭐*"

	starGlyph = "★"
)

// excludedKeys never go through generic field rendering
var excludedKeys = map[string]bool{
	contracts.KeyTicker:     true,
	contracts.KeyName:       true,
	contracts.KeyAvgROETest: true,
	contracts.KeyROCETest:   true,
	contracts.KeyLTP:        true,
	contracts.KeyValuation:  true,
}

// Options configures currency rendering and rating markers
type Options struct {
	CurrencySymbol string // e.g. "₹"
	Locale         string // BCP 47 tag used for digit grouping, e.g. "en-IN"
	RatingMarkers  string
}

// Annotator renders stock records. It is immutable and safe for concurrent use.
// ⭐ SSOT: 종목 표시 데이터 생성은 여기서만
type Annotator struct {
	symbol  string
	printer *message.Printer
	markers string
}

// New creates an Annotator; empty options fall back to INR / en-IN
func New(opts Options) *Annotator {
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "₹"
	}
	if opts.RatingMarkers == "" {
		opts.RatingMarkers = DefaultRatingMarkers
	}

	tag, err := language.Parse(opts.Locale)
	if err != nil || opts.Locale == "" {
		tag = language.Make("en-IN")
	}

	return &Annotator{
		symbol:  opts.CurrencySymbol,
		printer: message.NewPrinter(tag),
		markers: opts.RatingMarkers,
	}
}

var defaultAnnotator = New(Options{})

// Default returns the INR / en-IN annotator
func Default() *Annotator {
	return defaultAnnotator
}

// RatingStars counts the star markers of a rating value.
// Non-string values have zero stars.
func RatingStars(v contracts.Value) int {
	return defaultAnnotator.RatingStars(v)
}

// FormatValue renders a value with the default annotator
func FormatValue(key string, v contracts.Value) string {
	return defaultAnnotator.FormatValue(key, v)
}

// RatingStars counts the star markers of a rating value
func (a *Annotator) RatingStars(v contracts.Value) int {
	s, ok := v.Str()
	if !ok {
		return 0
	}

	count := 0
	for _, r := range s {
		if strings.ContainsRune(a.markers, r) {
			count++
		}
	}
	return count
}

// FormatValue renders one value: falsy -> "-", LTP -> currency, else raw
func (a *Annotator) FormatValue(key string, v contracts.Value) string {
	if !v.Truthy() {
		return Placeholder
	}
	if key == contracts.KeyLTP {
		return a.FormatCurrency(v)
	}
	return v.Text()
}

// FormatCurrency renders an amount with the currency symbol and locale
// grouping. Text that is not a number is shown unchanged.
func (a *Annotator) FormatCurrency(v contracts.Value) string {
	var amount decimal.Decimal

	if f, ok := v.Num(); ok {
		amount = decimal.NewFromFloat(f)
	} else {
		parsed, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v.Text()), ",", ""))
		if err != nil {
			return v.Text()
		}
		amount = parsed
	}

	return a.FormatAmount(amount)
}

// FormatAmount renders a decimal amount, rounded to paise
func (a *Annotator) FormatAmount(amount decimal.Decimal) string {
	rounded := amount.Round(2).InexactFloat64()
	return a.symbol + a.printer.Sprintf("%v", number.Decimal(rounded, number.MaxFractionDigits(2)))
}

// SelectFields renders every non excluded field in record order
func (a *Annotator) SelectFields(r *contracts.StockRecord) []FieldView {
	keys := r.Keys()
	views := make([]FieldView, 0, len(keys))

	for _, key := range keys {
		if excludedKeys[key] {
			continue
		}

		v := r.Get(key)
		switch key {
		case contracts.KeyRating:
			stars := a.RatingStars(v)
			views = append(views, FieldView{
				Key:     key,
				Kind:    FieldRating,
				Display: strings.Repeat(starGlyph, stars),
				Tag:     TagNeutral,
				Stars:   stars,
			})
		case contracts.KeyFundamentals:
			views = append(views, FieldView{
				Key:     key,
				Kind:    FieldFundamentals,
				Display: a.FormatValue(key, v),
				Tag:     FundamentalsTag(v),
			})
		default:
			views = append(views, FieldView{
				Key:     key,
				Kind:    FieldMetric,
				Display: a.FormatValue(key, v),
				Tag:     Classify(key, v),
			})
		}
	}

	return views
}

// Annotate builds the display-ready annotation of one record
func (a *Annotator) Annotate(r *contracts.StockRecord) Annotation {
	return Annotation{
		Ticker:         r.Ticker,
		Exchange:       r.Exchange,
		Name:           r.Name,
		LTP:            a.FormatValue(contracts.KeyLTP, r.LTP),
		Valuation:      ValuationTag(r.Valuation),
		ValuationLabel: a.FormatValue(contracts.KeyValuation, r.Valuation),
		Fields:         a.SelectFields(r),
	}
}

// AnnotateAll annotates records keeping their order
func (a *Annotator) AnnotateAll(records []contracts.StockRecord) []Annotation {
	out := make([]Annotation, len(records))
	for i := range records {
		out[i] = a.Annotate(&records[i])
	}
	return out
}
