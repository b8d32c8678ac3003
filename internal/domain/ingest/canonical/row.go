package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/extractor"
)

// NormalizedRecord is a raw record plus its content hash. RawJSON stays the
// original, uncanonicalized row; the canonical form exists only long enough
// to feed the hasher.
type NormalizedRecord struct {
	RawJSON   map[string]any `json:"raw_json"`
	RowIndex  int            `json:"row_index"`
	RowSHA256 string         `json:"row_sha256"`
}

// Result mirrors an extraction result with hashes attached.
type Result struct {
	FormatMIMEType string
	Records        []NormalizedRecord
}

// CanonicalizeValue recursively canonicalizes a row value. Mapping keys are
// sorted at serialization time; the role hint for a scalar is the nearest
// enclosing mapping key.
func CanonicalizeValue(key string, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = CanonicalizeValue(k, child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = CanonicalizeValue(key, child)
		}
		return out
	default:
		return CanonicalizeScalar(key, v)
	}
}

// Serialize renders a canonical value as a deterministic string: mappings as
// {"key":value,...} with keys sorted ascending by code point, sequences as
// [...], scalars as their JSON literal. No platform-dependent spacing.
func Serialize(v any) string {
	var b strings.Builder
	serializeInto(&b, v)
	return b.String()
}

func serializeInto(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(encodeString(k))
			b.WriteByte(':')
			serializeInto(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, child := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			serializeInto(b, child)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(encodeString(val))
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			b.WriteString(encodeString(strconv.FormatFloat(val, 'g', -1, 64)))
			return
		}
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case float32:
		serializeInto(b, float64(val))
	case int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	default:
		b.WriteString(encodeString(normalizePlainText(stringify(val))))
	}
}

func encodeString(s string) string {
	// json.Marshal never fails on a string and gives the canonical quoted
	// literal.
	out, _ := json.Marshal(s)
	return string(out)
}

func stringify(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}

// HashRow computes the content hash of one raw row: canonicalize, serialize,
// SHA-256, lowercase hex.
func HashRow(rawJSON map[string]any) string {
	canonical := CanonicalizeValue("", rawJSON)
	sum := sha256.Sum256([]byte(Serialize(canonical)))
	return hex.EncodeToString(sum[:])
}

// CanonicalizeAndHash attaches a row hash to every extracted record. It is
// pure and never fails; malformed scalars degrade inside canonicalization
// rather than erroring.
func CanonicalizeAndHash(res *extractor.Result) *Result {
	out := &Result{FormatMIMEType: res.FormatMIMEType, Records: make([]NormalizedRecord, 0, len(res.Records))}
	for _, rec := range res.Records {
		out.Records = append(out.Records, NormalizedRecord{
			RawJSON:   rec.RawJSON,
			RowIndex:  rec.RowIndex,
			RowSHA256: HashRow(rec.RawJSON),
		})
	}
	return out
}
