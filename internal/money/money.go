// Package money parses and formats peso amounts. Amounts are whole pesos:
// "." and "," are thousands separators, never decimal marks.
package money

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	decoration = strings.NewReplacer("$", "", ".", "", ",", "", " ", "", "\u00a0", "", "COP", "", "cop", "")
	printer    = message.NewPrinter(language.English)
)

// Parse converts a clean number or a decorated string such as "$ 1.250.000"
// into an amount. Anything unparseable yields 0 and ok == false.
func Parse(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		return ParseString(n.String())
	case string:
		return ParseString(n)
	case bool:
		return 0, false
	default:
		return 0, false
	}
}

// ParseString is Parse for strings.
func ParseString(s string) (float64, bool) {
	s = strings.TrimSpace(decoration.Replace(s))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

// Amount is Parse without the flag.
func Amount(v any) float64 {
	f, _ := Parse(v)
	return f
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Format renders an amount with thousands separators and no decimals: 238000 -> "238,000".
func Format(v float64) string {
	return printer.Sprintf("%.0f", math.Round(v))
}

// COP renders "$ 238,000".
func COP(v float64) string {
	return "$ " + Format(v)
}
