package annotator

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/wonny/kritika/internal/contracts"
)

// numeric reads a metric the way the sheet front end did: numbers as is,
// strings by their longest leading float, anything else NaN.
func numeric(v contracts.Value) float64 {
	if f, ok := v.Num(); ok {
		return f
	}
	if s, ok := v.Str(); ok {
		return parseLeadingFloat(s)
	}
	return math.NaN()
}

// parseLeadingFloat parses the longest float prefix of s after leading
// whitespace. "12.5%" -> 12.5, "abc" -> NaN.
func parseLeadingFloat(s string) float64 {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return math.NaN()
	}

	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			end = k
		}
	}

	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return f
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
