package season

import (
	"strconv"
	"strings"
)

// monthNames maps lower-case month names and abbreviations, in Portuguese and
// English, to month numbers. Accents are stripped before lookup.
var monthNames = map[string]int{
	"janeiro": 1, "jan": 1, "january": 1,
	"fevereiro": 2, "fev": 2, "february": 2, "feb": 2,
	"marco": 3, "mar": 3, "march": 3,
	"abril": 4, "abr": 4, "april": 4, "apr": 4,
	"maio": 5, "mai": 5, "may": 5,
	"junho": 6, "jun": 6, "june": 6,
	"julho": 7, "jul": 7, "july": 7,
	"agosto": 8, "ago": 8, "august": 8, "aug": 8,
	"setembro": 9, "set": 9, "september": 9, "sep": 9, "sept": 9,
	"outubro": 10, "out": 10, "october": 10, "oct": 10,
	"novembro": 11, "nov": 11, "november": 11,
	"dezembro": 12, "dez": 12, "december": 12, "dec": 12,
}

// displayNames are the Portuguese month labels shown to users.
var displayNames = [13]string{
	"", "Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// ParseMonth converts a month name, abbreviation or number into 1..12.
// Unknown input is reported as an *InvalidMonthError with Month set to 0
// unless the input was numeric.
func ParseMonth(field, value string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.NewReplacer("ç", "c", "ã", "a", "á", "a", "é", "e", "ê", "e").Replace(v)

	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > 12 {
			return 0, &InvalidMonthError{Field: field, Month: n}
		}
		return n, nil
	}
	if n, ok := monthNames[v]; ok {
		return n, nil
	}
	return 0, &InvalidMonthError{Field: field, Month: 0}
}

// MonthName returns the Portuguese display name of month, or its number when
// out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return strconv.Itoa(month)
	}
	return displayNames[month]
}
