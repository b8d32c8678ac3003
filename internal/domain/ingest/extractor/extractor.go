// Package extractor turns raw uploaded bytes into ordered raw records.
// Format detection checks the declared MIME type first and falls back to the
// filename extension; everything else is rejected with ErrUnsupportedFormat.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat indicates neither MIME type nor extension identified a
// supported document kind. This is the only fatal extraction error for
// structurally unrecognized input; data-quality problems never error.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Supported MIME types.
const (
	MIMETypeCSV  = "text/csv"
	MIMETypePDF  = "application/pdf"
	MIMETypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RawRecord is one extracted row. RawJSON maps field names to scalars (or
// nil); RowIndex is the 0-based position in document order and is immutable
// after extraction.
type RawRecord struct {
	RawJSON  map[string]any `json:"raw_json"`
	RowIndex int            `json:"row_index"`
}

// Result is an ordered extraction outcome for one document.
type Result struct {
	FormatMIMEType string
	Records        []RawRecord
}

type kind int

const (
	kindUnknown kind = iota
	kindCSV
	kindPDF
	kindXLSX
)

// Extract parses a byte buffer into raw records. mimeType and filename may
// each be empty; at least one must identify a supported format.
func Extract(data []byte, mimeType, filename string) (*Result, error) {
	switch detectKind(mimeType, filename) {
	case kindCSV:
		records, err := extractCSV(data)
		if err != nil {
			return nil, err
		}
		return &Result{FormatMIMEType: MIMETypeCSV, Records: records}, nil
	case kindPDF:
		return &Result{FormatMIMEType: MIMETypePDF, Records: extractPDF(data)}, nil
	case kindXLSX:
		records, err := extractXLSX(data)
		if err != nil {
			return nil, err
		}
		return &Result{FormatMIMEType: MIMETypeXLSX, Records: records}, nil
	default:
		return nil, fmt.Errorf("%w: mime=%q filename=%q", ErrUnsupportedFormat, mimeType, filename)
	}
}

func detectKind(mimeType, filename string) kind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case MIMETypeCSV:
		return kindCSV
	case MIMETypePDF:
		return kindPDF
	case MIMETypeXLSX:
		return kindXLSX
	}

	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".csv":
		return kindCSV
	case ".pdf":
		return kindPDF
	case ".xlsx":
		return kindXLSX
	}
	return kindUnknown
}

// headerize replaces empty header cells with positional placeholders.
func headerize(cells []string) []string {
	headers := make([]string, len(cells))
	for i, h := range cells {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		headers[i] = h
	}
	return headers
}

// rowToRecord pairs a data row with headers. Missing trailing fields become
// nil, extra fields are dropped; ragged rows never abort a parse.
func rowToRecord(headers []string, cells []string, rowIndex int) RawRecord {
	raw := make(map[string]any, len(headers))
	for i, h := range headers {
		if i < len(cells) {
			raw[h] = strings.TrimSpace(cells[i])
		} else {
			raw[h] = nil
		}
	}
	return RawRecord{RawJSON: raw, RowIndex: rowIndex}
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
