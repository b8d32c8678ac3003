package extractor

import (
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"
)

// extractCSV parses CSV bytes into raw records. The first row is the header;
// each later non-empty row becomes one record with a 0-based index among the
// data rows. A header-only or fully empty file yields zero records.
func extractCSV(data []byte) ([]RawRecord, error) {
	reader := csv.NewReader(strings.NewReader(string(normalizeCSVBytes(data))))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var headers []string
	var records []RawRecord
	rowIndex := 0

	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A row the csv reader cannot make sense of is skipped, not
			// fatal; ragged rows are already tolerated via FieldsPerRecord.
			continue
		}
		if isEmptyRow(cells) {
			continue
		}
		if headers == nil {
			headers = headerize(cells)
			continue
		}
		records = append(records, rowToRecord(headers, cells, rowIndex))
		rowIndex++
	}

	return records, nil
}

// normalizeCSVBytes strips a UTF-8 BOM and falls back to latin-1 decoding for
// byte streams that are not valid UTF-8.
func normalizeCSVBytes(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}
	return decodeLatin1(data)
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
