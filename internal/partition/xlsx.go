package partition

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// DecodeXLSX parses the first visible sheet of a workbook. Row 1 holds the
// headers; empty rows are skipped. Cells are read as stored, not as
// displayed, so a number formatted as "1,500" arrives as "1500".
func DecodeXLSX(data []byte) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	start := 0
	for start < len(rows) && isRowEmpty(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	headers := cleanHeaders(rows[start])
	out := make([][]string, 0, len(rows)-start-1)
	for _, row := range rows[start+1:] {
		if len(row) == 0 || isRowEmpty(row) {
			continue
		}
		out = append(out, alignRow(row, len(headers)))
	}

	return &RawTable{Columns: headers, Rows: out}, nil
}
