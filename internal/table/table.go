package table

// Table is the harmonized, read-only concatenation of every partition that
// loaded successfully. A Table is never mutated after construction; a reload
// produces a new Table.
type Table struct {
	records    []Record
	columns    []string
	partitions []string
}

// New builds a table from already harmonized records. The slice is owned by
// the table after the call.
func New(records []Record, columns []string, partitions []string) *Table {
	return &Table{
		records:    records,
		columns:    append([]string(nil), columns...),
		partitions: append([]string(nil), partitions...),
	}
}

// Empty returns the explicit "no data available" table.
func Empty() *Table {
	return &Table{}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// At returns a pointer to row i. Callers must treat the record as read-only.
func (t *Table) At(i int) *Record {
	return &t.records[i]
}

// Each calls fn for every row in order until fn returns false.
func (t *Table) Each(fn func(i int, r *Record) bool) {
	if t == nil {
		return
	}
	for i := range t.records {
		if !fn(i, &t.records[i]) {
			return
		}
	}
}

// Columns returns the union of column names seen across partitions after
// renaming, in first-seen order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// Partitions returns the ids of the partitions the table was built from, in
// retrieval order.
func (t *Table) Partitions() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.partitions...)
}
