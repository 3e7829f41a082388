package table

import "fmt"

// SchemaCoercionError reports a required field that could not be coerced to
// its canonical type. Column always carries the canonical column name.
type SchemaCoercionError struct {
	// Column is the canonical column name, e.g. "amount_funding".
	Column string

	// Value is the offending raw value. Empty when the column itself is absent.
	Value string

	// Partition is the partition the value came from, when known.
	Partition string

	// Row is the 1-based row index within the partition, or 0 when the error
	// concerns the whole column.
	Row int

	// Reason is a short human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *SchemaCoercionError) Error() string {
	msg := fmt.Sprintf("column %q: %s", e.Column, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (value: %q)", e.Value)
	}
	if e.Partition != "" {
		msg += fmt.Sprintf(" [partition %s", e.Partition)
		if e.Row > 0 {
			msg += fmt.Sprintf(", row %d", e.Row)
		}
		msg += "]"
	}
	return msg
}
