// =============================================================================
// Rural Credit Season Pipeline - Season Window Resolver
// =============================================================================
//
// An agricultural-credit season runs from July of year Y to June of year Y+1.
// The resolver turns a user-chosen (start, end) month pair into the set of
// months to include, following a fixed cyclic ordering of the 12 months.
//
// WRAP-AROUND RULE:
//   Let i = index(start), j = index(end) in the cyclic order.
//   - i <= j : order[i..j]
//   - i >  j : order[i..11] followed by order[0..j]
//
//   With the default July-first order:
//     Jul -> Jun  => all 12 months
//     Dec -> Mar  => Dec, Jan, Feb, Mar
//     Aug -> Aug  => Aug
//
// =============================================================================

package season

import (
	"errors"
	"fmt"
)

// =============================================================================
// CYCLIC ORDER
// =============================================================================

// CyclicOrder is an ordering of 12 distinct month numbers. The first element
// is the month a season starts in.
type CyclicOrder [12]int

// DefaultOrder is the canonical July-first season ordering.
var DefaultOrder = NewCyclicOrder(7)

// NewCyclicOrder returns the calendar months rotated so that first comes
// first. first is clamped into 1..12.
func NewCyclicOrder(first int) CyclicOrder {
	if first < 1 || first > 12 {
		first = 1
	}
	var order CyclicOrder
	for i := range order {
		order[i] = (first-1+i)%12 + 1
	}
	return order
}

// ErrInvalidOrder is returned for an order with repeated months.
var ErrInvalidOrder = errors.New("cyclic order must hold 12 distinct months")

// Validate checks that the order holds 12 distinct values.
func (o CyclicOrder) Validate() error {
	for i := 1; i < len(o); i++ {
		for j := 0; j < i; j++ {
			if o[i] == o[j] {
				return fmt.Errorf("%w: month %d repeated at position %d", ErrInvalidOrder, o[i], i)
			}
		}
	}
	return nil
}

// IndexOf returns the position of month in the order, or -1.
func (o CyclicOrder) IndexOf(month int) int {
	for i, m := range o {
		if m == month {
			return i
		}
	}
	return -1
}

// =============================================================================
// WINDOW
// =============================================================================

// Window is the resolved month selection. It is a value type; Months is never
// modified after Resolve returns it.
type Window struct {
	Order CyclicOrder
	Start int
	End   int

	// Months lists the selected months in cyclic order, starting at Start.
	Months []int
}

// Contains reports whether month is part of the window.
func (w Window) Contains(month int) bool {
	for _, m := range w.Months {
		if m == month {
			return true
		}
	}
	return false
}

// Len returns the number of months in the window.
func (w Window) Len() int {
	return len(w.Months)
}

// Set returns the window as a lookup set.
func (w Window) Set() map[int]struct{} {
	set := make(map[int]struct{}, len(w.Months))
	for _, m := range w.Months {
		set[m] = struct{}{}
	}
	return set
}

// InvalidMonthError is returned when a start or end month is not part of the
// cyclic order. It indicates a contract violation by the selection layer.
type InvalidMonthError struct {
	// Field is "start" or "end".
	Field string

	// Month is the rejected value.
	Month int
}

// Error implements the error interface.
func (e *InvalidMonthError) Error() string {
	return fmt.Sprintf("invalid %s month %d: not one of the 12 season months", e.Field, e.Month)
}

// Resolve computes the months between start and end inclusive, wrapping
// around the end of order when end precedes start.
//
// PARAMETERS:
//   - order: The cyclic month ordering, normally DefaultOrder.
//   - start: The first month of the window.
//   - end:   The last month of the window.
//
// RETURNS:
//   - The resolved Window.
//   - An error wrapping ErrInvalidOrder if order repeats a month.
//   - An *InvalidMonthError if start or end is not in order.
func Resolve(order CyclicOrder, start, end int) (Window, error) {
	if err := order.Validate(); err != nil {
		return Window{}, err
	}
	i := order.IndexOf(start)
	if i < 0 {
		return Window{}, &InvalidMonthError{Field: "start", Month: start}
	}
	j := order.IndexOf(end)
	if j < 0 {
		return Window{}, &InvalidMonthError{Field: "end", Month: end}
	}

	var months []int
	if i <= j {
		months = make([]int, 0, j-i+1)
		months = append(months, order[i:j+1]...)
	} else {
		months = make([]int, 0, len(order)-i+j+1)
		months = append(months, order[i:]...)
		months = append(months, order[:j+1]...)
	}

	return Window{
		Order:  order,
		Start:  start,
		End:    end,
		Months: months,
	}, nil
}

// FullSeason returns the window covering every month of order. An invalid
// order yields an empty window.
func FullSeason(order CyclicOrder) Window {
	w, _ := Resolve(order, order[0], order[len(order)-1])
	return w
}
