// Package filter projects the harmonized table onto a user selection: a
// resolved season window plus optional season and institution sets.
package filter

import (
	"sort"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/season"
	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// Selection is one set of user choices.
//
// Months always restricts: an empty Months matches nothing. Seasons and
// Institutions restrict only when non-empty; empty means "all".
type Selection struct {
	Months       []int
	Seasons      []string
	Institutions []string
}

// ForWindow builds a Selection from a resolved window.
func ForWindow(w season.Window, seasons, institutions []string) Selection {
	return Selection{
		Months:       append([]int(nil), w.Months...),
		Seasons:      seasons,
		Institutions: institutions,
	}
}

// View is a read-only projection of a table. It holds row positions into
// the table rather than copies of the rows.
type View struct {
	table *table.Table
	rows  []int
}

// Apply returns the rows of t matching sel, in table order. A row is kept
// when its issue month is in sel.Months and its season and institution are
// in their sets (or the sets are empty). Rows with a missing month never
// match. No match yields an empty View, not an error.
func Apply(t *table.Table, sel Selection) *View {
	var months [13]bool
	for _, m := range sel.Months {
		if m >= 1 && m <= 12 {
			months[m] = true
		}
	}
	seasons := toSet(sel.Seasons)
	institutions := toSet(sel.Institutions)

	view := &View{table: t}
	t.Each(func(i int, r *table.Record) bool {
		if !r.IssueMonth.Valid || r.IssueMonth.Value < 1 || r.IssueMonth.Value > 12 {
			return true
		}
		if !months[r.IssueMonth.Value] {
			return true
		}
		if seasons != nil && !seasons[r.Season] {
			return true
		}
		if institutions != nil && !institutions[r.Institution] {
			return true
		}
		view.rows = append(view.rows, i)
		return true
	})
	return view
}

// Len returns the number of rows in the view.
func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.rows)
}

// IsEmpty reports whether the selection matched nothing. An empty view is
// a valid state to render.
func (v *View) IsEmpty() bool {
	return v.Len() == 0
}

// At returns row i of the view.
func (v *View) At(i int) *table.Record {
	return v.table.At(v.rows[i])
}

// Each calls fn for every row in order until fn returns false.
func (v *View) Each(fn func(r *table.Record) bool) {
	if v == nil {
		return
	}
	for _, idx := range v.rows {
		if !fn(v.table.At(idx)) {
			return
		}
	}
}

// Seasons returns the distinct season labels of t, newest first.
func Seasons(t *table.Table) []string {
	labels := distinct(t, func(r *table.Record) string { return r.Season })
	sort.Sort(sort.Reverse(sort.StringSlice(labels)))
	return labels
}

// Institutions returns the distinct institution labels of t, sorted.
func Institutions(t *table.Table) []string {
	labels := distinct(t, func(r *table.Record) string { return r.Institution })
	sort.Strings(labels)
	return labels
}

func distinct(t *table.Table, key func(r *table.Record) string) []string {
	seen := make(map[string]bool)
	var out []string
	t.Each(func(_ int, r *table.Record) bool {
		k := key(r)
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
		return true
	})
	return out
}

// toSet returns nil for an empty list so callers can tell "no restriction"
// apart from "restrict to nothing".
func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
