// =============================================================================
// Rural Credit Season Pipeline - Shared Types
// =============================================================================
//
// This package contains the harmonized record and table types shared by every
// stage of the pipeline. Keeping them here avoids import cycles between:
//   - harmonize  (builds records)
//   - loader     (assembles the table)
//   - filter     (projects the table into a view)
//   - aggregate  (reduces the view)
//
// CANONICAL COLUMNS:
//   season, institution, state, issue_month, issue_year,
//   amount_funding, amount_investment, amount_commercialization,
//   amount_industrialization
//
// =============================================================================

package table

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CANONICAL COLUMN NAMES
// =============================================================================

const (
	ColumnSeason      = "season"
	ColumnInstitution = "institution"
	ColumnState       = "state"
	ColumnIssueMonth  = "issue_month"
	ColumnIssueYear   = "issue_year"
)

// =============================================================================
// AMOUNT PURPOSES
// =============================================================================

// Purpose identifies one of the fixed credit purposes carried by every record.
type Purpose int

const (
	Funding Purpose = iota
	Investment
	Commercialization
	Industrialization

	// NumPurposes is the number of amount columns on a record.
	NumPurposes
)

var purposeNames = [NumPurposes]string{
	"funding",
	"investment",
	"commercialization",
	"industrialization",
}

var purposeLabels = [NumPurposes]string{
	"Custeio",
	"Investimento",
	"Comercialização",
	"Industrialização",
}

// Purposes returns all purposes in column order.
func Purposes() []Purpose {
	return []Purpose{Funding, Investment, Commercialization, Industrialization}
}

// String returns the purpose name, e.g. "funding".
func (p Purpose) String() string {
	if p < 0 || p >= NumPurposes {
		return "purpose(" + strconv.Itoa(int(p)) + ")"
	}
	return purposeNames[p]
}

// Label returns the Portuguese display name, e.g. "Custeio".
func (p Purpose) Label() string {
	if p < 0 || p >= NumPurposes {
		return p.String()
	}
	return purposeLabels[p]
}

// Column returns the canonical column name, e.g. "amount_funding".
func (p Purpose) Column() string {
	return "amount_" + p.String()
}

// =============================================================================
// NULLABLE VALUES
// =============================================================================

// NullInt is an integer that may be missing. Values that fail numeric
// coercion during harmonization become a NullInt with Valid set to false.
type NullInt struct {
	Value int
	Valid bool
}

// Int returns a valid NullInt holding v.
func Int(v int) NullInt {
	return NullInt{Value: v, Valid: true}
}

// String renders the value, or an empty string when missing.
func (n NullInt) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.Itoa(n.Value)
}

// Amount is a monetary cell. Raw keeps the source text so that a cell which
// could not be parsed can be reported with its offending value.
type Amount struct {
	Value decimal.Decimal
	Raw   string
	Valid bool
}

// Money returns a valid Amount for v. Mostly used by tests and fixtures.
func Money(v float64) Amount {
	d := decimal.NewFromFloat(v)
	return Amount{Value: d, Raw: d.String(), Valid: true}
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one row of the harmonized table.
type Record struct {
	// Partition is the id of the partition the row was loaded from.
	Partition string

	Season      string
	Institution string
	State       string

	IssueMonth NullInt
	IssueYear  NullInt

	// Amounts is indexed by Purpose.
	Amounts [NumPurposes]Amount

	// Extra holds source columns without a canonical mapping, keyed by their
	// source header. It is nil when the source had no such columns.
	Extra map[string]string
}

// Amount returns the amount cell for purpose p.
func (r *Record) Amount(p Purpose) Amount {
	return r.Amounts[p]
}
