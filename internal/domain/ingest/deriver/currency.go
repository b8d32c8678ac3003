package deriver

import "strings"

// currencySymbols maps single currency symbols to their ISO-4217 code.
var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"₹": "INR",
}

// NormalizeCurrency uppercases the input and strips everything outside
// [A-Z$€£₹]. Three-letter codes pass through, single symbols map to their
// code, anything else is rejected so the caller's default can apply.
func NormalizeCurrency(raw string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r
		case r == '$' || r == '€' || r == '£' || r == '₹':
			return r
		}
		return -1
	}, strings.ToUpper(strings.TrimSpace(raw)))

	if code, ok := currencySymbols[cleaned]; ok {
		return code, true
	}
	if len(cleaned) == 3 && isLetters(cleaned) {
		return cleaned, true
	}
	return "", false
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
