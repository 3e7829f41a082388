// =============================================================================
// Rural Credit Season Pipeline - Partition Decoders
// =============================================================================
//
// This package turns the raw bytes of one partition into a RawTable: a list of
// column headers and rows of string cells. No renaming or type coercion is
// done here; that is the harmonizer's job.
//
// SUPPORTED FORMATS:
//   - Parquet (.parquet) : the format the datasets are published in
//   - CSV     (.csv)     : comma or semicolon separated, UTF-8 with optional BOM
//   - XLSX    (.xlsx)    : first sheet, first row holds the headers
//
// FORMAT DETECTION:
//   The file extension wins. Without a known extension the content is
//   sniffed: "PAR1" magic -> Parquet, "PK" zip magic -> XLSX, else CSV.
//
// =============================================================================

package partition

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// RAW TABLE
// =============================================================================

// RawTable is one decoded partition.
type RawTable struct {
	// Columns holds the cleaned headers, in source order.
	Columns []string

	// Rows holds the cells of each data row, aligned with Columns. Short
	// rows are padded with empty cells.
	Rows [][]string

	// Typed marks, per column, cells rendered from typed numeric values:
	// dot decimal separator, no grouping. Nil when the format carries no
	// types.
	Typed []bool
}

// IsTyped reports whether column idx holds rendered numeric values.
func (t *RawTable) IsTyped(idx int) bool {
	return idx >= 0 && idx < len(t.Typed) && t.Typed[idx]
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// FORMAT DETECTION
// =============================================================================

// Format is a supported partition encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
)

var parquetMagic = []byte("PAR1")

// DetectFormat picks the decoder for a partition from its name, falling back
// to content sniffing.
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".parquet", ".pq":
		return FormatParquet
	case ".csv", ".txt":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	}

	switch {
	case bytes.HasPrefix(data, parquetMagic):
		return FormatParquet
	case bytes.HasPrefix(data, []byte("PK")):
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Decode parses data according to its detected format.
//
// PARAMETERS:
//   - name: The partition file name, used for format detection.
//   - data: The raw partition content.
//
// RETURNS:
//   - The decoded RawTable.
//   - An error if the content is empty or cannot be parsed.
func Decode(name string, data []byte) (*RawTable, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("partition %s is empty", name)
	}

	format := DetectFormat(name, data)
	var (
		raw *RawTable
		err error
	)
	switch format {
	case FormatParquet:
		raw, err = DecodeParquet(data)
	case FormatXLSX:
		raw, err = DecodeXLSX(data)
	default:
		raw, err = DecodeCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s as %s: %w", name, format, err)
	}
	return raw, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// cleanHeaders trims headers and names empty ones after their position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\uFEFF"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// alignRow pads or truncates row to width and trims every cell.
func alignRow(row []string, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		out[i] = strings.TrimSpace(row[i])
	}
	return out
}
