package extractor

import (
	"strings"
	"unicode"
)

// pdfTextField is the single field a PDF record carries.
const pdfTextField = "text"

// pdfEmptyPlaceholder substitutes for PDFs with no extractable text.
const pdfEmptyPlaceholder = "(no extractable text)"

// pdfTextLimit caps the extracted text length in characters.
const pdfTextLimit = 4000

// extractPDF is a stub: real text extraction (OCR, layout templates) is out
// of scope. It decodes the bytes as UTF-8 best-effort, collapses whitespace
// runs (including embedded NULs) to single spaces, truncates, and always
// yields exactly one record at index 0.
func extractPDF(data []byte) []RawRecord {
	text := strings.ToValidUTF8(string(data), " ")
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == 0
	})
	text = strings.Join(fields, " ")

	if runes := []rune(text); len(runes) > pdfTextLimit {
		text = string(runes[:pdfTextLimit])
	}
	if text == "" {
		text = pdfEmptyPlaceholder
	}

	return []RawRecord{{
		RawJSON:  map[string]any{pdfTextField: text},
		RowIndex: 0,
	}}
}
