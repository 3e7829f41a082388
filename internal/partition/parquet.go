package partition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
)

// parquetBatch is how many rows are read per call.
const parquetBatch = 4096

// DecodeParquet reads every row of a Parquet file. Column names come from
// the file footer exactly as written; columns keep their schema order and
// every value is rendered as a string. Integer and floating point columns
// are marked as typed.
func DecodeParquet(data []byte) (raw *RawTable, err error) {
	pf := newMemFile(data)

	// The reader panics on some malformed footers instead of returning an
	// error.
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("malformed parquet file: %v", r)
		}
	}()

	pr, err := reader.NewParquetReader(pf, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet reader: %w", err)
	}
	defer pr.ReadStop()

	columns, typed, err := schemaColumns(pr.Footer.GetSchema())
	if err != nil {
		return nil, err
	}

	total := int(pr.GetNumRows())
	raw = &RawTable{Columns: columns, Typed: typed, Rows: make([][]string, 0, total)}

	for read := 0; read < total; {
		n := parquetBatch
		if total-read < n {
			n = total - read
		}

		batch, err := pr.ReadByNumber(n)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows %d-%d: %w", read, read+n, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			v := reflect.Indirect(reflect.ValueOf(row))
			if v.Kind() != reflect.Struct {
				return nil, fmt.Errorf("unexpected parquet row type %T", row)
			}
			if v.NumField() != len(columns) {
				return nil, fmt.Errorf("parquet row has %d fields, schema has %d columns", v.NumField(), len(columns))
			}
			raw.Rows = append(raw.Rows, structCells(v))
		}
		read += len(batch)
	}

	return raw, nil
}

// schemaColumns lists the top-level columns of a file schema. The first
// element is the schema root; nested groups count as one column.
func schemaColumns(schema []*parquet.SchemaElement) ([]string, []bool, error) {
	if len(schema) == 0 {
		return nil, nil, errors.New("parquet file has no schema")
	}

	n := int(schema[0].GetNumChildren())
	names := make([]string, 0, n)
	typed := make([]bool, 0, n)

	for idx := 1; len(names) < n; {
		if idx >= len(schema) {
			return nil, nil, fmt.Errorf("parquet schema lists %d columns but holds %d", n, len(names))
		}
		el := schema[idx]
		names = append(names, el.GetName())
		typed = append(typed, el.GetNumChildren() == 0 && isNumeric(el))
		idx = skipSubtree(schema, idx)
	}
	return cleanHeaders(names), typed, nil
}

// skipSubtree returns the index just past the element at idx and all of
// its descendants.
func skipSubtree(schema []*parquet.SchemaElement, idx int) int {
	children := int(schema[idx].GetNumChildren())
	idx++
	for i := 0; i < children && idx < len(schema); i++ {
		idx = skipSubtree(schema, idx)
	}
	return idx
}

// isNumeric reports whether a leaf is rendered as a plain dot-decimal
// number. DECIMAL columns hold unscaled integers and are left out.
func isNumeric(el *parquet.SchemaElement) bool {
	if !el.IsSetType() {
		return false
	}
	if el.IsSetConvertedType() && el.GetConvertedType() == parquet.ConvertedType_DECIMAL {
		return false
	}
	switch el.GetType() {
	case parquet.Type_INT32, parquet.Type_INT64, parquet.Type_FLOAT, parquet.Type_DOUBLE:
		return true
	}
	return false
}

func structCells(v reflect.Value) []string {
	cells := make([]string, v.NumField())
	for i := range cells {
		cells[i] = formatValue(v.Field(i))
	}
	return cells
}

// formatValue renders a parquet value the way a CSV export would. Nulls
// become empty cells.
func formatValue(v reflect.Value) string {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	default:
		return fmt.Sprint(v.Interface())
	}
}

// =============================================================================
// IN-MEMORY PARQUET SOURCE
// =============================================================================

// memFile serves a byte slice through the source.ParquetFile interface.
// Every Open returns an independent cursor over the same bytes, so column
// readers never share a read offset.
type memFile struct {
	*bytes.Reader
	data []byte
}

var _ source.ParquetFile = (*memFile)(nil)

func newMemFile(data []byte) *memFile {
	return &memFile{Reader: bytes.NewReader(data), data: data}
}

func (f *memFile) Open(string) (source.ParquetFile, error) {
	return newMemFile(f.data), nil
}

func (f *memFile) Create(string) (source.ParquetFile, error) {
	return nil, errors.New("in-memory parquet source is read-only")
}

func (f *memFile) Write([]byte) (int, error) {
	return 0, io.ErrShortWrite
}

func (f *memFile) Close() error { return nil }
