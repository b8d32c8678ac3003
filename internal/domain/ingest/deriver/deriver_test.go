package deriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/canonical"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/extractor"
)

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "iso code", input: "INR", want: "INR", ok: true},
		{name: "lowercase iso code", input: " usd ", want: "USD", ok: true},
		{name: "dollar symbol", input: "$", want: "USD", ok: true},
		{name: "euro symbol", input: "€", want: "EUR", ok: true},
		{name: "pound symbol", input: "£", want: "GBP", ok: true},
		{name: "rupee symbol", input: "₹", want: "INR", ok: true},
		{name: "symbol with noise", input: " $ ", want: "USD", ok: true},
		{name: "two letters", input: "XY", ok: false},
		{name: "four letters", input: "EURO", ok: false},
		{name: "digits", input: "123", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeCurrency(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func hashRecord(t *testing.T, raw map[string]any) canonical.NormalizedRecord {
	t.Helper()
	res := canonical.CanonicalizeAndHash(&extractor.Result{
		FormatMIMEType: extractor.MIMETypeCSV,
		Records:        []extractor.RawRecord{{RawJSON: raw, RowIndex: 0}},
	})
	return res.Records[0]
}

func TestDeriveFullRow(t *testing.T) {
	rec := hashRecord(t, map[string]any{
		"date":        "2/15/26",
		"amount":      "1,200.50",
		"currency":    "inr",
		"description": "Salary  CREDIT",
		"merchant":    "ACME Corp",
		"account":     "ACC-001",
		"category":    "income",
	})

	out := Derive(rec, Options{})
	require.NotNil(t, out.Candidate)
	assert.Equal(t, SkipNone, out.Skipped)

	c := out.Candidate
	assert.Equal(t, rec.RowSHA256, c.RowSHA256)
	require.NotNil(t, c.OccurredAt)
	assert.Equal(t, "2026-02-15", *c.OccurredAt)
	assert.Equal(t, "1200.500000", c.Amount)
	assert.Equal(t, "INR", c.Currency)
	assert.Equal(t, "salary credit", c.Description)
	require.NotNil(t, c.Merchant)
	assert.Equal(t, "ACME Corp", *c.Merchant)
	require.NotNil(t, c.AccountID)
	assert.Equal(t, "ACC-001", *c.AccountID)
	require.NotNil(t, c.Category)
	assert.Equal(t, "income", *c.Category)
	assert.Equal(t, DefaultNormalizationVersion, c.NormalizationVersion)
}

func TestDeriveSkipReasons(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		opts Options
		want SkipReason
	}{
		{
			name: "no amount field",
			raw:  map[string]any{"currency": "USD", "description": "x"},
			want: SkipMissingAmount,
		},
		{
			name: "unparseable amount",
			raw:  map[string]any{"amount": "N/A", "currency": "USD", "description": "x"},
			want: SkipMissingAmount,
		},
		{
			name: "no currency and no default",
			raw:  map[string]any{"amount": "5", "description": "x"},
			want: SkipMissingCurrency,
		},
		{
			name: "invalid currency and no default",
			raw:  map[string]any{"amount": "5", "currency": "XY", "description": "x"},
			want: SkipMissingCurrency,
		},
		{
			name: "no description",
			raw:  map[string]any{"amount": "5", "currency": "USD"},
			want: SkipMissingDesc,
		},
		{
			name: "blank description",
			raw:  map[string]any{"amount": "5", "currency": "USD", "description": "   "},
			want: SkipMissingDesc,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Derive(hashRecord(t, tt.raw), tt.opts)
			assert.Nil(t, out.Candidate)
			assert.Equal(t, tt.want, out.Skipped)
		})
	}
}

func TestDeriveDefaultCurrencyFallback(t *testing.T) {
	rec := hashRecord(t, map[string]any{"amount": "5", "description": "coffee"})

	out := Derive(rec, Options{DefaultCurrency: "EUR"})
	require.NotNil(t, out.Candidate)
	assert.Equal(t, "EUR", out.Candidate.Currency)

	// an invalid currency field also falls back rather than erroring
	rec = hashRecord(t, map[string]any{"amount": "5", "currency": "??", "description": "coffee"})
	out = Derive(rec, Options{DefaultCurrency: "EUR"})
	require.NotNil(t, out.Candidate)
	assert.Equal(t, "EUR", out.Candidate.Currency)
}

func TestDeriveCurrencySymbolField(t *testing.T) {
	rec := hashRecord(t, map[string]any{"amount": "5", "currency": "₹", "description": "chai"})
	out := Derive(rec, Options{})
	require.NotNil(t, out.Candidate)
	assert.Equal(t, "INR", out.Candidate.Currency)
}

func TestDeriveUnparseableDateStillYieldsCandidate(t *testing.T) {
	rec := hashRecord(t, map[string]any{
		"amount": "5", "currency": "USD", "description": "x", "date": "sometime soon",
	})
	out := Derive(rec, Options{})
	require.NotNil(t, out.Candidate)
	assert.Nil(t, out.Candidate.OccurredAt)
}

func TestDeriveKeyPriority(t *testing.T) {
	// "amount" outranks "debit"; "description" outranks "memo".
	rec := hashRecord(t, map[string]any{
		"debit":       "1.00",
		"amount":      "2.00",
		"memo":        "secondary",
		"description": "primary",
		"currency":    "USD",
	})
	out := Derive(rec, Options{})
	require.NotNil(t, out.Candidate)
	assert.Equal(t, "2.000000", out.Candidate.Amount)
	assert.Equal(t, "primary", out.Candidate.Description)
}

func TestDeriveNormalizedKeyLookup(t *testing.T) {
	// Field matching goes through key normalization: "Transaction Date" and
	// "AMOUNT" resolve like their snake_case forms.
	rec := hashRecord(t, map[string]any{
		"Transaction Date": "2026-03-01",
		"AMOUNT":           "9.99",
		"Description":      "Books",
		"Currency":         "GBP",
	})
	out := Derive(rec, Options{})
	require.NotNil(t, out.Candidate)
	require.NotNil(t, out.Candidate.OccurredAt)
	assert.Equal(t, "2026-03-01", *out.Candidate.OccurredAt)
	assert.Equal(t, "9.990000", out.Candidate.Amount)
	assert.Equal(t, "GBP", out.Candidate.Currency)
}

func TestDeriveNumericAmountValue(t *testing.T) {
	rec := hashRecord(t, map[string]any{"amount": 1200.5, "currency": "USD", "description": "x"})
	out := Derive(rec, Options{})
	require.NotNil(t, out.Candidate)
	assert.Equal(t, "1200.500000", out.Candidate.Amount)
}

func TestDeriveVersionTag(t *testing.T) {
	rec := hashRecord(t, map[string]any{"amount": "5", "currency": "USD", "description": "x"})
	out := Derive(rec, Options{NormalizationVersion: "v2"})
	require.NotNil(t, out.Candidate)
	assert.Equal(t, "v2", out.Candidate.NormalizationVersion)
}

func TestDeriveBatchKeepsOnlyCandidates(t *testing.T) {
	records := []canonical.NormalizedRecord{
		hashRecord(t, map[string]any{"amount": "1", "currency": "USD", "description": "ok"}),
		hashRecord(t, map[string]any{"description": "no amount"}),
		hashRecord(t, map[string]any{"amount": "3", "currency": "USD", "description": "also ok"}),
	}

	candidates := DeriveBatch(records, Options{})
	require.Len(t, candidates, 2)
	assert.Equal(t, "1.000000", candidates[0].Amount)
	assert.Equal(t, "3.000000", candidates[1].Amount)

	outcomes := DeriveAll(records, Options{})
	require.Len(t, outcomes, 3)
	assert.Equal(t, SkipMissingAmount, outcomes[1].Skipped)
}

func TestDeriveEndToEndCSV(t *testing.T) {
	data := []byte("date,amount,currency,description\n2026-02-15,1200.50,INR,Salary credit\n")
	res, err := extractor.Extract(data, "text/csv", "statement.csv")
	require.NoError(t, err)

	hashed := canonical.CanonicalizeAndHash(res)
	candidates := DeriveBatch(hashed.Records, Options{})
	require.Len(t, candidates, 1)

	c := candidates[0]
	require.NotNil(t, c.OccurredAt)
	assert.Equal(t, "2026-02-15", *c.OccurredAt)
	assert.Equal(t, "1200.500000", c.Amount)
	assert.Equal(t, "INR", c.Currency)
	assert.Equal(t, "salary credit", c.Description)
	assert.Equal(t, hashed.Records[0].RowSHA256, c.RowSHA256)
}
