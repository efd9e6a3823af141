// Package utils provides value coercion and display formatting shared by
// the gauge pipeline and its renderers.
package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/seenimoa/gaugeviz/pkg/models"
)

// FormatNumber formats a number with comma thousands grouping and up to
// two decimals, trailing zeros removed. e.g. 1234567.5 → "1,234,567.5"
func FormatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	negative := n < 0
	n = math.Abs(n)

	s := formatWithDecimals(n)
	intPart, decPart, _ := strings.Cut(s, ".")
	out := groupThousands(intPart)
	if decPart != "" {
		out += "." + decPart
	}
	if negative && out != "0" {
		return "-" + out
	}
	return out
}

// FormatInteger rounds to the nearest integer and groups thousands.
func FormatInteger(n float64) string {
	return FormatNumber(math.Round(n))
}

// FormatCompact formats a number with K/M/B/T suffixes.
// e.g. 1500 → "1.5K", 2500000 → "2.5M"
func FormatCompact(n float64) string {
	negative := n < 0
	a := math.Abs(n)

	prefix := ""
	if negative {
		prefix = "-"
	}

	switch {
	case a >= 1e12:
		return prefix + formatWithDecimals(a/1e12) + "T"
	case a >= 1e9:
		return prefix + formatWithDecimals(a/1e9) + "B"
	case a >= 1e6:
		return prefix + formatWithDecimals(a/1e6) + "M"
	case a >= 1e3:
		return prefix + formatWithDecimals(a/1e3) + "K"
	default:
		return prefix + formatWithDecimals(a)
	}
}

// FormatPercent treats n as a ratio and prints it as a percentage.
// e.g. 0.4567 → "45.67%"
func FormatPercent(n float64) string {
	return formatWithDecimals(n*100) + "%"
}

// FormatCurrency prints n with a currency code or symbol prefix.
// e.g. ("USD", 1234.5) → "USD 1,234.50"
func FormatCurrency(code string, n float64) string {
	negative := n < 0
	s := fmt.Sprintf("%.2f", math.Abs(n))
	intPart, decPart, _ := strings.Cut(s, ".")
	out := groupThousands(intPart) + "." + decPart
	if code != "" {
		out = code + " " + out
	}
	if negative {
		return "-" + out
	}
	return out
}

// Formatter resolves a named formatter. Names are case-insensitive:
// "number", "integer", "compact", "percent", "currency[:CODE]", "lakh"
// and "lakh_compact".
// Non-numeric values pass through every formatter unchanged.
func Formatter(name string) (models.ValueFormatter, bool) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(name), ":")
	var format func(float64) string
	switch strings.ToLower(kind) {
	case "number":
		format = FormatNumber
	case "integer":
		format = FormatInteger
	case "compact":
		format = FormatCompact
	case "percent":
		format = FormatPercent
	case "lakh":
		format = FormatLakh
	case "lakh_compact":
		format = FormatLakhCompact
	case "currency":
		code := strings.TrimSpace(arg)
		format = func(n float64) string { return FormatCurrency(code, n) }
	default:
		return nil, false
	}
	return func(v any) any {
		n, ok := ToFloat(v)
		if !ok {
			return v
		}
		return format(n)
	}, true
}

// ToFloat coerces a result value to float64. Strings are parsed; nil,
// booleans and non-finite values are rejected.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		p, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	head := len(digits) % 3
	if head > 0 {
		sb.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
