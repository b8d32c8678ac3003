// Package canonical rewrites raw row values into a deterministic form and
// hashes them. The canonical form is stable under key reordering and under
// superficial formatting differences (whitespace, decimal notation, date
// notation), which makes the resulting SHA-256 usable as a dedup key.
package canonical

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Role is the semantic role implied by a field name. It selects which
// normalization applies to the field's value.
type Role int

const (
	RoleNone Role = iota
	RoleDate
	RoleNumeric
	RoleText
)

var (
	dateKeyPattern    = regexp.MustCompile(`(^|_)(date|time|timestamp|datetime|posted_at|occurred_at|transaction_date|value_date)$`)
	numericKeyPattern = regexp.MustCompile(`(^|_)(amount|amt|debit|credit|balance|fee|total|value)$`)

	textKeys = map[string]bool{
		"description": true,
		"merchant":    true,
		"memo":        true,
		"narration":   true,
		"payee":       true,
		"details":     true,
	}

	mdyPattern     = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2}|\d{4})$`)
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// NormalizeKey canonicalizes a field name for role lookup: NFKC, trim,
// lowercase, whitespace runs collapsed to underscores.
func NormalizeKey(key string) string {
	key = norm.NFKC.String(key)
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.Join(strings.Fields(key), "_")
}

// RoleForKey classifies an already raw field name by its normalized form.
func RoleForKey(key string) Role {
	k := NormalizeKey(key)
	switch {
	case dateKeyPattern.MatchString(k):
		return RoleDate
	case numericKeyPattern.MatchString(k):
		return RoleNumeric
	case textKeys[k]:
		return RoleText
	default:
		return RoleNone
	}
}

// NormalizeDate parses a date string and re-expresses it in ISO form:
// YYYY-MM-DD for pure dates, RFC 3339 for datetimes. The second return is
// false when the input is not recognizable as a date; callers pass the
// original through in that case.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if isoDatePattern.MatchString(s) {
		// time.Parse rejects calendar-invalid dates like 2026-02-30.
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}

	if m := mdyPattern.FindStringSubmatch(s); m != nil {
		if out, ok := normalizeMDY(m[1], m[2], m[3]); ok {
			return out, true
		}
		return "", false
	}

	dateLayouts := []string{
		"2006/01/02",
		"Jan 2, 2006",
		"2 Jan 2006",
		"January 2, 2006",
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	datetimeLayouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.RFC3339), true
		}
	}

	return "", false
}

// twoDigitYearPivot is frozen: persisted hashes depend on it.
const twoDigitYearPivot = 70

func normalizeMDY(monthStr, dayStr, yearStr string) (string, bool) {
	month := atoi(monthStr)
	day := atoi(dayStr)
	year := atoi(yearStr)
	if len(yearStr) == 2 {
		if year >= twoDigitYearPivot {
			year += 1900
		} else {
			year += 2000
		}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (2/30 -> 3/2); a round-trip mismatch
	// means the components were not a real calendar date.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// decimalScale is the fixed fractional scale for normalized amounts.
const decimalScale = 6

var currencySymbolReplacer = strings.NewReplacer("$", "", "€", "", "£", "", "₹", "")

// NormalizeDecimal rewrites a monetary-looking string as a sign-prefixed
// fixed-point string with exactly six fractional digits. Currency symbols and
// thousands separators are stripped, parenthesized values are negative
// (accounting notation), and the fractional part is rounded half-up on the
// first dropped digit. Returns false when the input holds no digits.
func NormalizeDecimal(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = currencySymbolReplacer.Replace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "+"):
		s = strings.TrimSpace(s[1:])
	}

	if !hasDigit(s) {
		return "", false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", false
	}
	// Round is half-away-from-zero; the value here is non-negative, so this
	// is exactly half-up on the first dropped digit. Do not switch to
	// banker's rounding: persisted row hashes depend on the tie-break.
	d = d.Round(decimalScale)
	if negative {
		d = d.Neg()
	}
	return d.StringFixed(decimalScale), true
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// NormalizeText lowercases free text and collapses whitespace runs.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// normalizePlainText is the default string treatment for non-special roles.
func normalizePlainText(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// CanonicalizeScalar normalizes a single scalar given the raw field name that
// holds it. Unparseable values degrade to plain-text normalization; nothing
// here ever errors.
func CanonicalizeScalar(key string, v any) any {
	if v == nil {
		return nil
	}

	role := RoleForKey(key)

	switch val := v.(type) {
	case string:
		switch role {
		case RoleDate:
			if out, ok := NormalizeDate(val); ok {
				return out
			}
			return normalizePlainText(val)
		case RoleNumeric:
			if out, ok := NormalizeDecimal(val); ok {
				return out
			}
			return normalizePlainText(val)
		case RoleText:
			return NormalizeText(val)
		default:
			return normalizePlainText(val)
		}
	case bool:
		return val
	case float64:
		if role == RoleNumeric {
			return decimal.NewFromFloat(val).Round(decimalScale).StringFixed(decimalScale)
		}
		return val
	case float32:
		return CanonicalizeScalar(key, float64(val))
	case int:
		return CanonicalizeScalar(key, int64(val))
	case int64:
		if role == RoleNumeric {
			return decimal.NewFromInt(val).StringFixed(decimalScale)
		}
		return val
	default:
		// Exotic scalar types are stringified so the serialization stays
		// representation independent.
		return normalizePlainText(fmt.Sprintf("%v", val))
	}
}
