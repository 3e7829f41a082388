// =============================================================================
// Rural Credit Season Pipeline - Aggregation
// =============================================================================
//
// This module reduces a filtered view into the two outputs handed to any
// presentation layer:
//
// MONTHLY EVOLUTION:
//   One row per (institution, season, issue month) with the sum of every
//   amount column. The total is also given in billions, computed once here.
//
// SEASON MARKET SHARE:
//   One table per season. Each row is an institution with its per-purpose
//   sums, its row total, its share of the season total and, per purpose,
//   its share of the season's total for that purpose. A zero denominator
//   yields a missing percentage, never zero and never a panic.
//
// ERRORS:
//   An amount cell that failed numeric coercion during load stops the
//   computation with a *table.SchemaCoercionError naming the column. It is
//   never counted as zero.
//
// =============================================================================

package aggregate

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/filter"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

var (
	billion = decimal.New(1, 9)
	hundred = decimal.NewFromInt(100)
)

// =============================================================================
// PERCENT
// =============================================================================

// Percent is a percentage that may be undefined. An undefined value is NaN
// and serializes to JSON null.
type Percent float64

// MissingPercent is the undefined percentage.
func MissingPercent() Percent {
	return Percent(math.NaN())
}

// IsMissing reports whether the percentage is undefined.
func (p Percent) IsMissing() bool {
	return math.IsNaN(float64(p))
}

// MarshalJSON implements json.Marshaler.
func (p Percent) MarshalJSON() ([]byte, error) {
	if p.IsMissing() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(p))
}

// percentOf returns 100*part/whole, or MissingPercent when whole is zero.
func percentOf(part, whole decimal.Decimal) Percent {
	if whole.IsZero() {
		return MissingPercent()
	}
	return Percent(part.Mul(hundred).DivRound(whole, 12).InexactFloat64())
}

// =============================================================================
// MONTHLY EVOLUTION
// =============================================================================

// EvolutionRow is one point of the monthly series.
type EvolutionRow struct {
	Institution   string          `json:"institution"`
	Season        string          `json:"season"`
	Month         int             `json:"issue_month"`
	Total         decimal.Decimal `json:"total"`
	TotalBillions float64         `json:"total_billions"`
}

type evolutionKey struct {
	institution, season string
	month               int
}

// MonthlyEvolution groups v by (institution, season, issue month) and sums
// every amount column into a single total per group.
//
// RETURNS:
//   - Rows sorted by institution, season and month. Empty for an empty view.
//   - A *table.SchemaCoercionError if an amount is not numeric.
func MonthlyEvolution(v *filter.View) ([]EvolutionRow, error) {
	sums := make(map[evolutionKey]decimal.Decimal)

	var err error
	v.Each(func(r *table.Record) bool {
		var total decimal.Decimal
		total, err = recordTotal(r)
		if err != nil {
			return false
		}
		key := evolutionKey{r.Institution, r.Season, r.IssueMonth.Value}
		sums[key] = sums[key].Add(total)
		return true
	})
	if err != nil {
		return nil, err
	}

	rows := make([]EvolutionRow, 0, len(sums))
	for key, total := range sums {
		rows = append(rows, EvolutionRow{
			Institution:   key.institution,
			Season:        key.season,
			Month:         key.month,
			Total:         total,
			TotalBillions: total.Div(billion).InexactFloat64(),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Institution != b.Institution {
			return a.Institution < b.Institution
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		return a.Month < b.Month
	})
	return rows, nil
}

// =============================================================================
// SEASON MARKET SHARE
// =============================================================================

// ShareRow is one institution within one season.
type ShareRow struct {
	Institution string

	// Amounts holds the per-purpose sums, indexed by table.Purpose.
	Amounts [table.NumPurposes]decimal.Decimal

	RowTotal decimal.Decimal

	// SharePct is RowTotal as a percentage of the season total.
	SharePct Percent

	// PurposePct holds, per purpose, this institution's percentage of the
	// season's total for that purpose.
	PurposePct [table.NumPurposes]Percent
}

// MarshalJSON keys amounts and percentages by purpose name.
func (r ShareRow) MarshalJSON() ([]byte, error) {
	amounts := make(map[string]decimal.Decimal, table.NumPurposes)
	pcts := make(map[string]Percent, table.NumPurposes)
	for _, p := range table.Purposes() {
		amounts[p.String()] = r.Amounts[p]
		pcts[p.String()] = r.PurposePct[p]
	}
	return json.Marshal(struct {
		Institution string                     `json:"institution"`
		Amounts     map[string]decimal.Decimal `json:"amounts"`
		RowTotal    decimal.Decimal            `json:"row_total"`
		SharePct    Percent                    `json:"share_pct"`
		PurposePct  map[string]Percent         `json:"purpose_pct"`
	}{r.Institution, amounts, r.RowTotal, r.SharePct, pcts})
}

// SeasonShare is the market-share table of one season.
type SeasonShare struct {
	Season string `json:"season"`

	// Total is the sum of every RowTotal in the season.
	Total decimal.Decimal `json:"total"`

	// PurposeTotals holds the season sum per purpose.
	PurposeTotals [table.NumPurposes]decimal.Decimal `json:"-"`

	// Rows is sorted by RowTotal, largest first.
	Rows []ShareRow `json:"rows"`
}

type shareKey struct {
	season, institution string
}

// MarketShare groups v by (season, institution) and computes shares within
// each season independently.
//
// RETURNS:
//   - One SeasonShare per season, newest season label first.
//   - A *table.SchemaCoercionError if an amount is not numeric.
func MarketShare(v *filter.View) ([]SeasonShare, error) {
	sums := make(map[shareKey]*[table.NumPurposes]decimal.Decimal)

	var err error
	v.Each(func(r *table.Record) bool {
		if err = checkAmounts(r); err != nil {
			return false
		}
		key := shareKey{r.Season, r.Institution}
		acc, ok := sums[key]
		if !ok {
			acc = new([table.NumPurposes]decimal.Decimal)
			sums[key] = acc
		}
		for p := range acc {
			acc[p] = acc[p].Add(r.Amounts[p].Value)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	bySeason := make(map[string]*SeasonShare)
	for key, acc := range sums {
		s, ok := bySeason[key.season]
		if !ok {
			s = &SeasonShare{Season: key.season}
			bySeason[key.season] = s
		}

		row := ShareRow{Institution: key.institution, Amounts: *acc}
		for p := range acc {
			row.RowTotal = row.RowTotal.Add(acc[p])
			s.PurposeTotals[p] = s.PurposeTotals[p].Add(acc[p])
		}
		s.Total = s.Total.Add(row.RowTotal)
		s.Rows = append(s.Rows, row)
	}

	out := make([]SeasonShare, 0, len(bySeason))
	for _, s := range bySeason {
		for i := range s.Rows {
			row := &s.Rows[i]
			row.SharePct = percentOf(row.RowTotal, s.Total)
			for p := range row.Amounts {
				row.PurposePct[p] = percentOf(row.Amounts[p], s.PurposeTotals[p])
			}
		}
		sort.Slice(s.Rows, func(i, j int) bool {
			if c := s.Rows[i].RowTotal.Cmp(s.Rows[j].RowTotal); c != 0 {
				return c > 0
			}
			return s.Rows[i].Institution < s.Rows[j].Institution
		})
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Season > out[j].Season })
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// checkAmounts fails on the first amount that did not coerce.
func checkAmounts(r *table.Record) error {
	for _, p := range table.Purposes() {
		if a := r.Amounts[p]; !a.Valid {
			return &table.SchemaCoercionError{
				Column:    p.Column(),
				Value:     a.Raw,
				Partition: r.Partition,
				Reason:    "amount is not numeric",
			}
		}
	}
	return nil
}

// recordTotal sums every amount of r.
func recordTotal(r *table.Record) (decimal.Decimal, error) {
	if err := checkAmounts(r); err != nil {
		return decimal.Decimal{}, err
	}
	var total decimal.Decimal
	for _, a := range r.Amounts {
		total = total.Add(a.Value)
	}
	return total, nil
}
