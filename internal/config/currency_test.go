package config

import "testing"

func TestLookupCurrency_Normalizes(t *testing.T) {
	c, ok := LookupCurrency(" gbp ")
	if !ok {
		t.Fatal("LookupCurrency returned !ok for gbp")
	}
	if c.Code != "GBP" || c.Symbol != "£" {
		t.Fatalf("LookupCurrency(gbp) = %+v", c)
	}

	if _, ok := LookupCurrency("XYZ"); ok {
		t.Fatal("LookupCurrency returned ok for unknown code")
	}
}

func TestCurrencySymbol(t *testing.T) {
	tests := []struct {
		code, want string
	}{
		{"GBP", "£"},
		{"eur", "€"},
		{"chf", "CHF "},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CurrencySymbol(tt.code); got != tt.want {
			t.Errorf("CurrencySymbol(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
