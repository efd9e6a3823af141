package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatLakh formats a number in the Indian numbering system: the last
// three digits, then groups of two, up to two decimals.
// e.g. 1234567.5 → "12,34,567.5"
func FormatLakh(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Sprint(n)
	}
	negative := n < 0
	s := formatWithDecimals(math.Abs(n))
	intPart, decPart, _ := strings.Cut(s, ".")

	out := groupLakh(intPart)
	if decPart != "" {
		out += "." + decPart
	}
	if negative && out != "0" {
		return "-" + out
	}
	return out
}

// FormatLakhCompact formats a number with K/L/Cr suffixes.
// e.g. 1500000 → "15 L", 192734500000 → "19273.45 Cr"
func FormatLakhCompact(n float64) string {
	prefix := ""
	if n < 0 {
		prefix = "-"
	}
	a := math.Abs(n)

	switch {
	case a >= 1e12:
		// Lakh crores
		return prefix + formatWithDecimals(a/1e12) + " L Cr"
	case a >= 1e7:
		return prefix + formatWithDecimals(a/1e7) + " Cr"
	case a >= 1e5:
		return prefix + formatWithDecimals(a/1e5) + " L"
	case a >= 1e3:
		return prefix + formatWithDecimals(a/1e3) + " K"
	default:
		return prefix + formatWithDecimals(a)
	}
}

// groupLakh groups an integer digit string Indian style (last 3, then 2s).
func groupLakh(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	// Take the last 3 digits
	result := digits[len(digits)-3:]
	remaining := digits[:len(digits)-3]

	// Group remaining digits in pairs from right
	for len(remaining) > 0 {
		if len(remaining) > 2 {
			result = remaining[len(remaining)-2:] + "," + result
			remaining = remaining[:len(remaining)-2]
		} else {
			result = remaining + "," + result
			remaining = ""
		}
	}
	return result
}
