package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurposeColumns(t *testing.T) {
	var cols []string
	for _, p := range Purposes() {
		cols = append(cols, p.Column())
	}
	assert.Equal(t, []string{
		"amount_funding",
		"amount_investment",
		"amount_commercialization",
		"amount_industrialization",
	}, cols)
	assert.Len(t, Purposes(), int(NumPurposes))
}

func TestEmptyTable(t *testing.T) {
	tbl := Empty()
	assert.True(t, tbl.IsEmpty())
	assert.Equal(t, 0, tbl.Len())
	assert.Empty(t, tbl.Partitions())

	var nilTable *Table
	assert.True(t, nilTable.IsEmpty())
}

func TestTableEachStopsEarly(t *testing.T) {
	tbl := New([]Record{{Season: "a"}, {Season: "b"}, {Season: "c"}}, []string{ColumnSeason}, []string{"p"})

	var seen []string
	tbl.Each(func(_ int, r *Record) bool {
		seen = append(seen, r.Season)
		return r.Season != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestSchemaCoercionErrorMessage(t *testing.T) {
	err := &SchemaCoercionError{
		Column:    "amount_funding",
		Value:     "abc",
		Partition: "2020-2021",
		Row:       4,
		Reason:    "not a number",
	}
	assert.Equal(t, `column "amount_funding": not a number (value: "abc") [partition 2020-2021, row 4]`, err.Error())
}

func TestNullIntString(t *testing.T) {
	assert.Equal(t, "", NullInt{}.String())
	assert.Equal(t, "7", Int(7).String())
}
