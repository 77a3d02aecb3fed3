// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/roundup/internal/amount"
	"github.com/theirongolddev/roundup/internal/config"

	"github.com/shopspring/decimal"
)

// FormatMoney formats an integer minor-unit amount with its currency symbol.
// e.g., (123456, "GBP") -> "£1,234.56", (-70, "GBP") -> "-£0.70"
func FormatMoney(minor int64, currency string) string {
	return formatDecimal(amount.ToDecimal(minor), currency)
}

// FormatAmount formats a major-unit float such as a round-up total.
// The value is rounded to two places first.
func FormatAmount(v float64, currency string) string {
	return formatDecimal(decimal.NewFromFloat(v).Round(2), currency)
}

func formatDecimal(d decimal.Decimal, currency string) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return sign + config.CurrencySymbol(currency) + fixed
	}
	return sign + config.CurrencySymbol(currency) + FormatNumber(n) + "." + frac
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatDirection renders a feed direction as an arrow.
func FormatDirection(dir string) string {
	switch dir {
	case "OUT":
		return "↑ out"
	case "IN":
		return "↓ in"
	default:
		return dir
	}
}

// FormatTimestamp reformats an API timestamp for tables.
// Unparseable input is returned unchanged.
func FormatTimestamp(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("Mon 02 Jan 15:04")
}

// FormatWindow renders a week window as "02 Jan – 09 Jan".
func FormatWindow(from, to time.Time) string {
	return from.Local().Format("02 Jan") + " – " + to.Local().Format("02 Jan")
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
