package harmonize

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jpmelo-tech/acompanhamento-safra/internal/table"
)

// =============================================================================
// NUMERIC COERCION
// =============================================================================

// ParseInt coerces a month or year cell. Integral values written as floats
// ("8.0") are accepted; anything else becomes a missing marker.
func ParseInt(s string) table.NullInt {
	s = strings.TrimSpace(s)
	if s == "" {
		return table.NullInt{}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return table.Int(n)
	}

	norm, ok := normalizeDecimal(s)
	if !ok {
		return table.NullInt{}
	}
	f, err := strconv.ParseFloat(norm, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return table.NullInt{}
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return table.NullInt{}
	}
	return table.Int(int(f))
}

// ParseAmount coerces a monetary cell written by hand or by a locale-aware
// export. Both "1500.50" and "1.500,50" are read as 1500.5, and grouped
// integers such as "1.500.000" are accepted when every group has three
// digits. A single separator followed by exactly three digits ("1.500",
// "1,500") could be either a thousands group or a decimal part, so it is
// rejected.
//
// An empty cell is a valid zero; unparseable text yields an invalid Amount
// that keeps the raw value.
func ParseAmount(s string) table.Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return table.Amount{Valid: true}
	}
	norm, ok := normalizeDecimal(s)
	if !ok {
		return table.Amount{Raw: s}
	}
	return parseDecimal(s, norm)
}

// ParseTypedAmount coerces a cell rendered from a typed numeric value, which
// always uses a dot decimal separator and no grouping.
func ParseTypedAmount(s string) table.Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return table.Amount{Valid: true}
	}
	return parseDecimal(s, s)
}

func parseDecimal(raw, norm string) table.Amount {
	d, err := decimal.NewFromString(norm)
	if err != nil {
		return table.Amount{Raw: raw}
	}
	return table.Amount{Value: d, Raw: raw, Valid: true}
}

// normalizeDecimal rewrites a number into the dot-decimal form, reporting
// false when the text is not a well-formed number. When both separators
// appear, the later one is the decimal separator. A separator that appears
// more than once is a grouping separator.
func normalizeDecimal(s string) (string, bool) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "R$")

	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	var group, dec byte
	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndexByte(s, ',') > strings.LastIndexByte(s, '.') {
			group, dec = '.', ','
		} else {
			group, dec = ',', '.'
		}
		if strings.Count(s, string(dec)) > 1 {
			return "", false
		}
	case commas+dots > 1:
		group = ','
		if dots > 0 {
			group = '.'
		}
	case commas+dots == 1:
		dec = ','
		if dots > 0 {
			dec = '.'
		}
		i := strings.IndexByte(s, dec)
		whole, frac := s[:i], s[i+1:]
		if len(frac) == 3 && len(whole) >= 1 && len(whole) <= 3 && whole[0] != '0' {
			return "", false
		}
	}

	whole, frac := s, ""
	if dec != 0 {
		i := strings.LastIndexByte(s, dec)
		whole, frac = s[:i], s[i+1:]
		if !allDigits(frac) {
			return "", false
		}
	}

	if group != 0 {
		groups := strings.Split(whole, string(group))
		if len(groups[0]) < 1 || len(groups[0]) > 3 {
			return "", false
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return "", false
			}
		}
		whole = strings.Join(groups, "")
	}

	if whole == "" && dec != 0 {
		whole = "0"
	}
	if !allDigits(whole) {
		return "", false
	}

	if frac == "" {
		return sign + whole, true
	}
	return sign + whole + "." + frac, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// CATEGORICAL INTERNING
// =============================================================================

// Interner deduplicates categorical strings so that a table with millions of
// rows holds one copy of each season, institution and state label. It is
// safe for concurrent use by the partitions of one load.
type Interner struct {
	mu     sync.Mutex
	values map[string]string
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	return &Interner{values: make(map[string]string)}
}

// Intern returns the canonical copy of s.
func (in *Interner) Intern(s string) string {
	if s == "" {
		return ""
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if v, ok := in.values[s]; ok {
		return v
	}
	s = strings.Clone(s)
	in.values[s] = s
	return s
}

// Len returns the number of distinct labels seen.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.values)
}
