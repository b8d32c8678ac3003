package extractor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExtractCSV(t *testing.T) {
	data := []byte("date,amount,currency,description\n2026-02-15,1200.50,INR,Salary credit\n2026-02-16,-42.00,INR,Coffee\n")

	res, err := Extract(data, "text/csv", "statement.csv")
	require.NoError(t, err)
	assert.Equal(t, MIMETypeCSV, res.FormatMIMEType)
	require.Len(t, res.Records, 2)

	assert.Equal(t, 0, res.Records[0].RowIndex)
	assert.Equal(t, map[string]any{
		"date":        "2026-02-15",
		"amount":      "1200.50",
		"currency":    "INR",
		"description": "Salary credit",
	}, res.Records[0].RawJSON)
	assert.Equal(t, 1, res.Records[1].RowIndex)
}

func TestExtractCSVRaggedRows(t *testing.T) {
	data := []byte("a,b,c\n1,2\n1,2,3,4\n")

	res, err := Extract(data, "text/csv", "")
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	// missing trailing field becomes nil
	assert.Equal(t, map[string]any{"a": "1", "b": "2", "c": nil}, res.Records[0].RawJSON)
	// extra field is dropped
	assert.Equal(t, map[string]any{"a": "1", "b": "2", "c": "3"}, res.Records[1].RawJSON)
}

func TestExtractCSVEmptyHeaderCells(t *testing.T) {
	data := []byte("date,,amount\n2026-01-01,x,5\n")

	res, err := Extract(data, "text/csv", "")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, map[string]any{"date": "2026-01-01", "column_2": "x", "amount": "5"}, res.Records[0].RawJSON)
}

func TestExtractCSVHeaderOnly(t *testing.T) {
	res, err := Extract([]byte("date,amount\n"), "text/csv", "")
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestExtractCSVSkipsEmptyRows(t *testing.T) {
	data := []byte("a,b\n\n1,2\n , \n3,4\n")

	res, err := Extract(data, "text/csv", "")
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 0, res.Records[0].RowIndex)
	assert.Equal(t, 1, res.Records[1].RowIndex)
	assert.Equal(t, map[string]any{"a": "3", "b": "4"}, res.Records[1].RawJSON)
}

func TestExtractCSVStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("date,amount\n2026-01-01,5\n")...)

	res, err := Extract(data, "text/csv", "")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	_, ok := res.Records[0].RawJSON["date"]
	assert.True(t, ok, "BOM must not leak into the first header name")
}

func TestExtractCSVLatin1Fallback(t *testing.T) {
	// 0xE9 is é in latin-1 and invalid as a standalone UTF-8 byte.
	data := []byte("description,amount\ncaf\xe9,3.50\n")

	res, err := Extract(data, "text/csv", "")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "café", res.Records[0].RawJSON["description"])
}

func TestExtractDetection(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		filename string
		wantErr  bool
	}{
		{name: "mime with charset parameter", mimeType: "text/csv; charset=utf-8"},
		{name: "extension only", filename: "report.CSV"},
		{name: "mime wins over extension", mimeType: "text/csv", filename: "report.bin"},
		{name: "unknown mime falls back to extension", mimeType: "application/octet-stream", filename: "report.csv"},
		{name: "unsupported both", mimeType: "application/json", filename: "report.json", wantErr: true},
		{name: "nothing to go on", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract([]byte("a,b\n1,2\n"), tt.mimeType, tt.filename)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtractPDFStub(t *testing.T) {
	res, err := Extract([]byte("Statement\x00for   February\n2026"), "application/pdf", "")
	require.NoError(t, err)
	assert.Equal(t, MIMETypePDF, res.FormatMIMEType)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 0, res.Records[0].RowIndex)
	assert.Equal(t, map[string]any{"text": "Statement for February 2026"}, res.Records[0].RawJSON)
}

func TestExtractPDFEmpty(t *testing.T) {
	res, err := Extract(nil, "application/pdf", "")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "(no extractable text)", res.Records[0].RawJSON["text"])
}

func TestExtractPDFTruncates(t *testing.T) {
	res, err := Extract([]byte(strings.Repeat("x", 10000)), "application/pdf", "")
	require.NoError(t, err)
	text := res.Records[0].RawJSON["text"].(string)
	assert.Len(t, []rune(text), 4000)
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"date", "amount", "description"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"2026-02-15", "1200.50", "Salary credit"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"2026-02-16", "-42"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	res, err := Extract(buf.Bytes(), MIMETypeXLSX, "statement.xlsx")
	require.NoError(t, err)
	assert.Equal(t, MIMETypeXLSX, res.FormatMIMEType)
	require.Len(t, res.Records, 2)

	assert.Equal(t, map[string]any{
		"date":        "2026-02-15",
		"amount":      "1200.50",
		"description": "Salary credit",
	}, res.Records[0].RawJSON)
	// GetRows trims trailing empty cells; the short row pairs like a ragged
	// CSV row.
	assert.Equal(t, "2026-02-16", res.Records[1].RawJSON["date"])
	assert.Equal(t, "-42", res.Records[1].RawJSON["amount"])
	assert.Nil(t, res.Records[1].RawJSON["description"])
	assert.Equal(t, 1, res.Records[1].RowIndex)
}
