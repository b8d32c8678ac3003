// Package deriver maps hashed raw rows to normalized transaction candidates.
// Field lookup is duck-typed: an explicit ordered list of candidate keys per
// semantic role, evaluated against a normalized-key lookup built from the
// row's original field names. Rows missing a required field are skipped, not
// errored; batch output is always <= batch input.
package deriver

import (
	"strconv"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/canonical"
)

// DefaultNormalizationVersion partitions generations of derivation rules.
// Bump it when the rules below change; persisted candidates stay immutable
// under their original version.
const DefaultNormalizationVersion = "v1"

// Options configures derivation. Explicit by design: no ambient env state.
type Options struct {
	// NormalizationVersion tags every produced candidate. Defaults to
	// DefaultNormalizationVersion when empty.
	NormalizationVersion string
	// DefaultCurrency is used when a row carries no recognizable currency.
	// When empty, such rows yield no candidate.
	DefaultCurrency string
}

// TransactionCandidate is the best-effort normalized transaction for one row.
type TransactionCandidate struct {
	RowSHA256            string  `json:"row_sha256"`
	OccurredAt           *string `json:"occurred_at"`
	Amount               string  `json:"amount"`
	Currency             string  `json:"currency"`
	Description          string  `json:"description"`
	Merchant             *string `json:"merchant"`
	AccountID            *string `json:"account_id"`
	Category             *string `json:"category"`
	NormalizationVersion string  `json:"normalization_version"`
}

// SkipReason says why a row produced no candidate.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipMissingAmount   SkipReason = "missing_amount"
	SkipMissingCurrency SkipReason = "missing_currency"
	SkipMissingDesc     SkipReason = "missing_description"
)

// Outcome is the per-row derivation result: either a candidate or a skip
// reason. The public batch API exposes only the derived subset; outcomes
// exist for observability.
type Outcome struct {
	RowIndex  int
	Candidate *TransactionCandidate
	Skipped   SkipReason
}

// Ordered candidate keys per semantic role. New source formats extend these
// lists; control flow stays untouched.
var (
	amountKeys      = []string{"amount", "amt", "debit", "credit", "value", "total", "transaction_amount"}
	currencyKeys    = []string{"currency", "currency_code", "ccy", "curr"}
	descriptionKeys = []string{"description", "memo", "narration", "details", "note", "remarks"}
	merchantKeys    = []string{"merchant", "payee", "merchant_name"}
	accountKeys     = []string{"account_id", "account", "account_number", "iban"}
	categoryKeys    = []string{"category", "type", "txn_type"}
	occurredAtKeys  = []string{"occurred_at", "transaction_date", "posted_at", "posted_date", "date", "value_date", "timestamp", "datetime"}
)

// Derive evaluates one hashed record. It never fabricates required fields:
// absent amount, currency, or description means a skip.
func Derive(rec canonical.NormalizedRecord, opts Options) Outcome {
	version := opts.NormalizationVersion
	if version == "" {
		version = DefaultNormalizationVersion
	}

	lookup := buildLookup(rec.RawJSON)

	amountRaw, ok := lookup.first(amountKeys)
	if !ok {
		return Outcome{RowIndex: rec.RowIndex, Skipped: SkipMissingAmount}
	}
	amount, ok := canonical.NormalizeDecimal(flatten(amountRaw))
	if !ok {
		return Outcome{RowIndex: rec.RowIndex, Skipped: SkipMissingAmount}
	}

	currency := opts.DefaultCurrency
	if raw, found := lookup.first(currencyKeys); found {
		if code, valid := NormalizeCurrency(flatten(raw)); valid {
			currency = code
		}
	}
	if currency == "" {
		return Outcome{RowIndex: rec.RowIndex, Skipped: SkipMissingCurrency}
	}

	description := ""
	if raw, found := lookup.first(descriptionKeys); found {
		description = canonical.NormalizeText(flatten(raw))
	}
	if description == "" {
		return Outcome{RowIndex: rec.RowIndex, Skipped: SkipMissingDesc}
	}

	candidate := &TransactionCandidate{
		RowSHA256:            rec.RowSHA256,
		Amount:               amount,
		Currency:             currency,
		Description:          description,
		Merchant:             optionalText(lookup, merchantKeys),
		AccountID:            optionalText(lookup, accountKeys),
		Category:             optionalText(lookup, categoryKeys),
		NormalizationVersion: version,
	}

	if raw, found := lookup.first(occurredAtKeys); found {
		if date, valid := canonical.NormalizeDate(flatten(raw)); valid {
			candidate.OccurredAt = &date
		}
	}

	return Outcome{RowIndex: rec.RowIndex, Candidate: candidate}
}

// DeriveAll evaluates every record independently and keeps skip outcomes.
func DeriveAll(records []canonical.NormalizedRecord, opts Options) []Outcome {
	outcomes := make([]Outcome, 0, len(records))
	for _, rec := range records {
		outcomes = append(outcomes, Derive(rec, opts))
	}
	return outcomes
}

// DeriveBatch returns only the derived candidates. Omissions are silent;
// callers auditing skips compare input and output lengths or use DeriveAll.
func DeriveBatch(records []canonical.NormalizedRecord, opts Options) []TransactionCandidate {
	candidates := make([]TransactionCandidate, 0, len(records))
	for _, outcome := range DeriveAll(records, opts) {
		if outcome.Candidate != nil {
			candidates = append(candidates, *outcome.Candidate)
		}
	}
	return candidates
}

// fieldLookup maps normalized field names to raw values, first occurrence
// wins. Built from the original (non-canonicalized) row.
type fieldLookup map[string]any

func buildLookup(rawJSON map[string]any) fieldLookup {
	lookup := make(fieldLookup, len(rawJSON))
	for key, value := range rawJSON {
		norm := canonical.NormalizeKey(key)
		if _, exists := lookup[norm]; !exists {
			lookup[norm] = value
		}
	}
	return lookup
}

// first returns the first present, non-null, non-empty value among the
// ordered candidate keys.
func (l fieldLookup) first(keys []string) (any, bool) {
	for _, key := range keys {
		value, ok := l[key]
		if !ok || value == nil {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return value, true
	}
	return nil, false
}

func optionalText(l fieldLookup, keys []string) *string {
	raw, ok := l.first(keys)
	if !ok {
		return nil
	}
	text := strings.Join(strings.Fields(flatten(raw)), " ")
	if text == "" {
		return nil
	}
	return &text
}

// flatten renders any scalar as a trimmed string for field-level parsing.
func flatten(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
