package harmonize

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/config"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/partition"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

func newHarmonizer(fill bool) *Harmonizer {
	return New(config.DefaultColumnAliases(), fill)
}

func TestHarmonize_RenamesAndCoerces(t *testing.T) {
	raw := &partition.RawTable{
		Columns: []string{"AnoSafra", "SEGMENTOIF", "nomeUF", "MesEmissao", "AnoEmissao", "VlCusteio", "VlInvestimento", "cdPrograma"},
		Rows: [][]string{
			{"2020-2021", "Banco Privado", "MT", "8", "2020", "1.500,50", "10", "0001"},
			{"2020-2021", "Cooperativa", "GO", "13.0", "x", "abc", "", "0002"},
		},
	}

	res, err := newHarmonizer(true).Harmonize("2020-2021", raw, NewInterner())
	require.NoError(t, err)

	assert.Equal(t, []string{
		table.ColumnSeason, table.ColumnInstitution, table.ColumnState,
		table.ColumnIssueMonth, table.ColumnIssueYear,
		"amount_funding", "amount_investment", "cdPrograma",
	}, res.Columns)
	require.Len(t, res.Records, 2)

	first := res.Records[0]
	assert.Equal(t, "2020-2021", first.Season)
	assert.Equal(t, "Banco Privado", first.Institution)
	assert.Equal(t, "MT", first.State)
	assert.Equal(t, table.Int(8), first.IssueMonth)
	assert.Equal(t, table.Int(2020), first.IssueYear)
	assert.True(t, first.Amount(table.Funding).Value.Equal(decimal.RequireFromString("1500.50")))
	assert.True(t, first.Amount(table.Commercialization).Valid, "absent amount column is a valid zero")
	assert.Equal(t, map[string]string{"cdPrograma": "0001"}, first.Extra)

	second := res.Records[1]
	assert.Equal(t, table.Int(13), second.IssueMonth, "out-of-range months are kept for data quality checks")
	assert.False(t, second.IssueYear.Valid)
	assert.False(t, second.Amount(table.Funding).Valid)
	assert.Equal(t, "abc", second.Amount(table.Funding).Raw)
	assert.True(t, second.Amount(table.Investment).Valid)
	assert.True(t, second.Amount(table.Investment).Value.IsZero())
}

func TestHarmonize_FillsSeasonFromPartition(t *testing.T) {
	raw := &partition.RawTable{
		Columns: []string{"SegmentoIF", "MesEmissao"},
		Rows:    [][]string{{"Banco", "7"}},
	}

	res, err := newHarmonizer(true).Harmonize("2019-2020", raw, NewInterner())
	require.NoError(t, err)
	assert.Equal(t, "2019-2020", res.Records[0].Season)
	assert.Equal(t, "2019-2020", res.Records[0].Partition)
}

func TestHarmonize_MissingRequiredColumns(t *testing.T) {
	tests := []struct {
		name   string
		fill   bool
		cols   []string
		column string
	}{
		{"no institution", true, []string{"AnoSafra", "MesEmissao"}, table.ColumnInstitution},
		{"no season without fill", false, []string{"SegmentoIF", "MesEmissao"}, table.ColumnSeason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &partition.RawTable{Columns: tt.cols, Rows: [][]string{make([]string, len(tt.cols))}}
			_, err := newHarmonizer(tt.fill).Harmonize("2020-2021", raw, NewInterner())

			var schemaErr *table.SchemaCoercionError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.column, schemaErr.Column)
			assert.Equal(t, "2020-2021", schemaErr.Partition)
		})
	}
}

func TestHarmonize_DuplicateCanonicalKeepsFirst(t *testing.T) {
	raw := &partition.RawTable{
		Columns: []string{"SegmentoIF", "Segmento"},
		Rows:    [][]string{{"Banco", "Outro"}},
	}

	res, err := newHarmonizer(true).Harmonize("2020-2021", raw, NewInterner())
	require.NoError(t, err)
	assert.Equal(t, []string{table.ColumnInstitution, "Segmento"}, res.Columns)
	assert.Equal(t, "Banco", res.Records[0].Institution)
	assert.Equal(t, "Outro", res.Records[0].Extra["Segmento"])
}

func TestInterner(t *testing.T) {
	in := NewInterner()
	a := in.Intern("Banco")
	b := in.Intern(string([]byte("Banco")))
	assert.Equal(t, a, b)
	assert.Equal(t, 1, in.Len())
	assert.Equal(t, "", in.Intern(""))
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want table.NullInt
	}{
		{"8", table.Int(8)},
		{" 08 ", table.Int(8)},
		{"8.0", table.Int(8)},
		{"2020", table.Int(2020)},
		{"8.5", table.NullInt{}},
		{"", table.NullInt{}},
		{"agosto", table.NullInt{}},
		{"NaN", table.NullInt{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInt(tt.in))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"1500.50", "1500.5", true},
		{"1.500,50", "1500.5", true},
		{"1,500.50", "1500.5", true},
		{"1500,5", "1500.5", true},
		{"R$ 2.000,00", "2000", true},
		{"1.500.000", "1500000", true},
		{"1.500.000,25", "1500000.25", true},
		{"0.125", "0.125", true},
		{"1234.567", "1234.567", true},
		{"-1.250,00", "-1250", true},
		{"", "0", true},
		{"n/a", "0", false},
		{"1.500", "0", false},
		{"1,500", "0", false},
		{"12.345", "0", false},
		{"1.50.000", "0", false},
		{"1,500,50", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseAmount(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, got.Value.String())
			}
		})
	}
}

func TestParseTypedAmount(t *testing.T) {
	got := ParseTypedAmount("12.345")
	require.True(t, got.Valid)
	assert.Equal(t, "12.345", got.Value.String())

	assert.False(t, ParseTypedAmount("1.500,50").Valid)
	assert.True(t, ParseTypedAmount("").Valid)
}

func TestHarmonize_AmountSeparators(t *testing.T) {
	raw := &partition.RawTable{
		Columns: []string{"SegmentoIF", "VlCusteio", "VlInvestimento"},
		Rows: [][]string{
			{"Banco", "1.500", "1.500"},
			{"Coop", "1500", "2,5"},
		},
		Typed: []bool{false, false, true},
	}

	res, err := newHarmonizer(true).Harmonize("2020-2021", raw, NewInterner())
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	first := res.Records[0]
	assert.False(t, first.Amount(table.Funding).Valid, "a lone group of three digits is ambiguous in text")
	assert.Equal(t, "1.500", first.Amount(table.Funding).Raw)
	assert.True(t, first.Amount(table.Investment).Value.Equal(decimal.RequireFromString("1.5")), "typed columns are dot decimal")

	second := res.Records[1]
	assert.True(t, second.Amount(table.Funding).Value.Equal(decimal.NewFromInt(1500)))
	assert.False(t, second.Amount(table.Investment).Valid, "typed columns never use a comma")
}
