// =============================================================================
// Rural Credit Season Pipeline - Harmonization Engine
// =============================================================================
//
// This module converts one decoded partition into canonical records. Raw
// header names differ between yearly datasets ("SegmentoIF" in one year,
// "segmento_if" in another), so every partition goes through the same steps:
//
// STEPS:
//   1. Rename known raw headers to canonical names (case-insensitive).
//      Unknown headers pass through unchanged and end up in Record.Extra.
//   2. Check required columns. A partition without an institution column,
//      or without a season column when season filling is off, is rejected.
//   3. Coerce every cell:
//        season, institution, state -> interned strings
//        issue_month, issue_year    -> integers, or a missing marker
//        amount_*                   -> decimals, or an invalid marker that
//                                      keeps the raw text. Ambiguous text
//                                      such as "1.500" is invalid; typed
//                                      numeric columns parse as dot decimal
//
// A bad cell never fails the partition. It is carried forward so that data
// quality checks can report it and aggregation can reject it by column.
//
// =============================================================================

package harmonize

import (
	"sort"
	"strings"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/partition"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// =============================================================================
// HARMONIZER
// =============================================================================

// Harmonizer renames and coerces partitions. It is safe for concurrent use
// once constructed.
type Harmonizer struct {
	// rename maps a lower-cased raw header to its canonical name.
	rename map[string]string

	fillSeason bool
}

// Result is one harmonized partition.
type Result struct {
	Records []table.Record

	// Columns lists the headers after renaming, in source order. Duplicate
	// canonical targets keep only the first source column.
	Columns []string
}

// New creates a Harmonizer.
//
// PARAMETERS:
//   - aliases: Canonical column name -> raw header names that map to it.
//     The canonical name itself always maps to itself.
//   - fillSeason: Label rows with the partition id when the season column is
//     missing or a season cell is empty.
func New(aliases map[string][]string, fillSeason bool) *Harmonizer {
	h := &Harmonizer{
		rename:     make(map[string]string),
		fillSeason: fillSeason,
	}
	keys := make([]string, 0, len(aliases))
	for canonical := range aliases {
		keys = append(keys, canonical)
	}
	sort.Strings(keys)

	for _, canonical := range keys {
		h.rename[strings.ToLower(canonical)] = canonical
		for _, raw := range aliases[canonical] {
			key := strings.ToLower(strings.TrimSpace(raw))
			if _, taken := h.rename[key]; !taken {
				h.rename[key] = canonical
			}
		}
	}
	for _, canonical := range CanonicalColumns() {
		h.rename[canonical] = canonical
	}
	return h
}

// CanonicalColumns lists every canonical column name in display order.
func CanonicalColumns() []string {
	cols := []string{
		table.ColumnSeason,
		table.ColumnInstitution,
		table.ColumnState,
		table.ColumnIssueMonth,
		table.ColumnIssueYear,
	}
	for _, p := range table.Purposes() {
		cols = append(cols, p.Column())
	}
	return cols
}

// Canonical returns the canonical name for a raw header, or the header
// unchanged when it has no mapping.
func (h *Harmonizer) Canonical(raw string) string {
	if c, ok := h.rename[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return c
	}
	return raw
}

// =============================================================================
// HARMONIZATION
// =============================================================================

// columnPlan records where each canonical column lives in the raw table.
type columnPlan struct {
	season, institution, state int
	month, year                int
	amounts                    [table.NumPurposes]int

	// extra maps raw column index -> header for pass-through columns.
	extra map[int]string
}

// Harmonize converts raw into canonical records labelled with partitionID.
//
// PARAMETERS:
//   - partitionID: The partition id, used for season filling and errors.
//   - raw: The decoded partition.
//   - in: The interner shared by every partition of one load.
//
// RETURNS:
//   - The harmonized records and renamed columns.
//   - A *table.SchemaCoercionError if a required column is absent.
func (h *Harmonizer) Harmonize(partitionID string, raw *partition.RawTable, in *Interner) (*Result, error) {
	plan, columns := h.plan(raw)

	if plan.institution < 0 {
		return nil, &table.SchemaCoercionError{
			Column:    table.ColumnInstitution,
			Partition: partitionID,
			Reason:    "required column not found",
		}
	}
	if plan.season < 0 && !h.fillSeason {
		return nil, &table.SchemaCoercionError{
			Column:    table.ColumnSeason,
			Partition: partitionID,
			Reason:    "required column not found",
		}
	}

	records := make([]table.Record, len(raw.Rows))
	partitionLabel := in.Intern(partitionID)

	for i, row := range raw.Rows {
		rec := &records[i]
		rec.Partition = partitionLabel

		rec.Season = in.Intern(cell(row, plan.season))
		if rec.Season == "" && h.fillSeason {
			rec.Season = partitionLabel
		}
		rec.Institution = in.Intern(cell(row, plan.institution))
		rec.State = in.Intern(cell(row, plan.state))

		rec.IssueMonth = ParseInt(cell(row, plan.month))
		rec.IssueYear = ParseInt(cell(row, plan.year))

		for p, idx := range plan.amounts {
			if idx < 0 {
				rec.Amounts[p] = table.Amount{Valid: true}
				continue
			}
			if raw.IsTyped(idx) {
				rec.Amounts[p] = ParseTypedAmount(cell(row, idx))
				continue
			}
			rec.Amounts[p] = ParseAmount(cell(row, idx))
		}

		if len(plan.extra) > 0 {
			rec.Extra = make(map[string]string, len(plan.extra))
			for idx, name := range plan.extra {
				rec.Extra[name] = cell(row, idx)
			}
		}
	}

	return &Result{Records: records, Columns: columns}, nil
}

// plan resolves raw column positions for every canonical column.
func (h *Harmonizer) plan(raw *partition.RawTable) (columnPlan, []string) {
	plan := columnPlan{
		season: -1, institution: -1, state: -1,
		month: -1, year: -1,
	}
	for p := range plan.amounts {
		plan.amounts[p] = -1
	}

	amountIndex := make(map[string]table.Purpose, table.NumPurposes)
	for _, p := range table.Purposes() {
		amountIndex[p.Column()] = p
	}

	seen := make(map[string]bool)
	columns := make([]string, 0, len(raw.Columns))

	for idx, header := range raw.Columns {
		name := h.Canonical(header)

		if seen[name] {
			// A second column renamed onto the same canonical name keeps its
			// raw header.
			name = header
			if seen[name] {
				continue
			}
		}
		seen[name] = true
		columns = append(columns, name)

		switch name {
		case table.ColumnSeason:
			plan.season = idx
		case table.ColumnInstitution:
			plan.institution = idx
		case table.ColumnState:
			plan.state = idx
		case table.ColumnIssueMonth:
			plan.month = idx
		case table.ColumnIssueYear:
			plan.year = idx
		default:
			if p, ok := amountIndex[name]; ok {
				plan.amounts[p] = idx
				continue
			}
			if plan.extra == nil {
				plan.extra = make(map[int]string)
			}
			plan.extra[idx] = name
		}
	}

	return plan, columns
}

// cell returns row[idx], or "" when the column is absent.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
