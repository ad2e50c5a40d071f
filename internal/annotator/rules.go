package annotator

import (
	"strings"

	"github.com/wonny/kritika/internal/contracts"
)

// metricRule classifies one numeric metric against a fixed threshold
type metricRule struct {
	keys []string
	pass func(v float64) bool
}

// metricRules is the fixed rule table. NaN fails every comparison, so an
// unparseable value always lands on the negative side.
// ⭐ SSOT: 지표 색상 기준은 여기서만
var metricRules = []metricRule{
	{
		keys: []string{contracts.KeyPERatio},
		pass: func(v float64) bool { return v <= 15 },
	},
	{
		keys: []string{contracts.KeyAvgROE, contracts.KeyAvgROCE},
		pass: func(v float64) bool { return v >= 12 },
	},
}

var valuationTags = map[string]DisplayTag{
	"OVERVALUED":  TagNegative,
	"UNDERVALUED": TagPositive,
}

var fundamentalsTags = map[string]DisplayTag{
	"EXCELLENT":     TagStrongPositive,
	"STRONG":        TagPositive,
	"BELOW AVERAGE": TagWarning,
	"POOR":          TagNegative,
}

// Classify returns the display tag of one field. Unknown keys are neutral.
func Classify(key string, v contracts.Value) DisplayTag {
	switch key {
	case contracts.KeyValuation:
		return ValuationTag(v)
	case contracts.KeyFundamentals:
		return FundamentalsTag(v)
	}

	for _, rule := range metricRules {
		for _, k := range rule.keys {
			if k != key {
				continue
			}
			if rule.pass(numeric(v)) {
				return TagPositive
			}
			return TagNegative
		}
	}

	return TagNeutral
}

// ValuationTag classifies the VALUATION field, case-insensitively
func ValuationTag(v contracts.Value) DisplayTag {
	return lookupTag(valuationTags, v)
}

// FundamentalsTag classifies the FUNDAMENTALS field, case-insensitively
func FundamentalsTag(v contracts.Value) DisplayTag {
	return lookupTag(fundamentalsTags, v)
}

func lookupTag(table map[string]DisplayTag, v contracts.Value) DisplayTag {
	if tag, ok := table[strings.ToUpper(v.Text())]; ok {
		return tag
	}
	return TagNeutral
}
