package extractor

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// extractXLSX reads the first sheet of a workbook. The first row is the
// header; data rows follow the same ragged-row rules as CSV.
func extractXLSX(data []byte) ([]RawRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var headers []string
	var records []RawRecord
	rowIndex := 0
	for _, cells := range rows {
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
