package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

func record(partition string, month table.NullInt) table.Record {
	rec := table.Record{
		Partition:   partition,
		Season:      partition,
		Institution: "Banco",
		IssueMonth:  month,
		IssueYear:   table.Int(2020),
	}
	for _, p := range table.Purposes() {
		rec.Amounts[p] = table.Money(10)
	}
	return rec
}

func TestCheck_CleanTable(t *testing.T) {
	tbl := table.New([]table.Record{
		record("2020-2021", table.Int(8)),
		record("2020-2021", table.Int(9)),
	}, nil, []string{"2020-2021"})

	result := Check(tbl, Options{})
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 2, result.RowsChecked)
}

func TestCheck_CollectsIssuesPerColumn(t *testing.T) {
	bad := record("2020-2021", table.Int(13))
	bad.Amounts[table.Funding] = table.Amount{Raw: "abc"}

	noMonth := record("2020-2021", table.NullInt{})
	negative := record("2021-2022", table.Int(7))
	negative.Amounts[table.Investment] = table.Money(-5)

	tbl := table.New([]table.Record{
		record("2020-2021", table.Int(8)),
		bad,
		noMonth,
		record("2020-2021", table.Int(14)),
		negative,
	}, nil, []string{"2020-2021", "2021-2022"})

	result := Check(tbl, Options{})
	require.False(t, result.IsValid)
	assert.Equal(t, 2, result.ErrorCount)
	assert.Equal(t, 2, result.WarningCount)
	require.Len(t, result.Issues, 4)

	funding := result.Issues[0]
	assert.Equal(t, "amount_funding", funding.Column)
	assert.Equal(t, RuleNotNumeric, funding.Rule)
	assert.Equal(t, "abc", funding.Sample)
	assert.Equal(t, 2, funding.FirstRow)

	month := result.Issues[1]
	assert.Equal(t, table.ColumnIssueMonth, month.Column)
	assert.Equal(t, RuleMissing, month.Rule)

	outOfRange := result.Issues[2]
	assert.Equal(t, RuleOutOfRange, outOfRange.Rule)
	assert.Equal(t, 2, outOfRange.Count)
	assert.Equal(t, "13", outOfRange.Sample)

	neg := result.Issues[3]
	assert.Equal(t, "2021-2022", neg.Partition)
	assert.Equal(t, RuleNegative, neg.Rule)
	assert.Equal(t, 1, neg.FirstRow)
}

func TestCheck_WarningsAsErrors(t *testing.T) {
	tbl := table.New([]table.Record{record("2020-2021", table.NullInt{})}, nil, nil)

	assert.True(t, Check(tbl, Options{}).IsValid)
	assert.False(t, Check(tbl, Options{TreatWarningsAsErrors: true}).IsValid)
}

func TestCheck_EmptyTable(t *testing.T) {
	result := Check(table.Empty(), Options{})
	assert.True(t, result.IsValid)
	assert.Zero(t, result.RowsChecked)
}

func TestWriteIssueLog(t *testing.T) {
	tbl := table.New([]table.Record{record("2020-2021", table.Int(0))}, nil, nil)
	result := Check(tbl, Options{})

	path := filepath.Join(t.TempDir(), "quality.log")
	require.NoError(t, WriteIssueLog(result, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "errors: 1")
	assert.Contains(t, string(content), `column "issue_month": out_of_range`)
	assert.Equal(t, "No data quality issues.", FormatIssues(nil))
}
