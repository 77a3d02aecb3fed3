package config

import "strings"

// Currency describes how amounts in one ISO 4217 currency are shown.
type Currency struct {
	Code   string
	Symbol string
	// MinorExp is the number of minor-unit digits. Round-ups assume 2.
	MinorExp int
}

// DefaultCurrencies lists the settlement currencies the bank supports.
var DefaultCurrencies = map[string]Currency{
	"GBP": {Code: "GBP", Symbol: "£", MinorExp: 2},
	"EUR": {Code: "EUR", Symbol: "€", MinorExp: 2},
	"USD": {Code: "USD", Symbol: "$", MinorExp: 2},
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// LookupCurrency returns the currency for code, normalizing it first.
// Returns false if the code is unknown.
func LookupCurrency(code string) (Currency, bool) {
	c, ok := DefaultCurrencies[NormalizeCurrency(code)]
	return c, ok
}

// CurrencySymbol returns the display symbol for code, or the code itself
// followed by a space when unknown.
func CurrencySymbol(code string) string {
	if c, ok := LookupCurrency(code); ok {
		return c.Symbol
	}
	if code == "" {
		return ""
	}
	return NormalizeCurrency(code) + " "
}
