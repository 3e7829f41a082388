package partition

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// DecodeCSV parses a CSV partition. The first non-empty line holds the
// headers; the delimiter is sniffed from it (semicolon files are common in
// Brazilian exports).
func DecodeCSV(data []byte) (*RawTable, error) {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	reader := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	reader.Comma = sniffDelimiter(data)

	// Allow variable number of fields per row.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	// Skip leading blank lines before the header.
	start := 0
	for start < len(allRows) && isRowEmpty(allRows[start]) {
		start++
	}
	if start == len(allRows) {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers := cleanHeaders(allRows[start])
	rows := make([][]string, 0, len(allRows)-start-1)
	for _, row := range allRows[start+1:] {
		if isRowEmpty(row) {
			continue
		}
		rows = append(rows, alignRow(row, len(headers)))
	}

	return &RawTable{Columns: headers, Rows: rows}, nil
}

// sniffDelimiter picks between comma, semicolon and tab by counting them on
// the first line.
func sniffDelimiter(data []byte) rune {
	line := string(data)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	best, bestCount := ',', strings.Count(line, ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if n := strings.Count(line, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}
