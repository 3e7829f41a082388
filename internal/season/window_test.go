package season

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_WrapAround(t *testing.T) {
	w, err := Resolve(DefaultOrder, 12, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{12, 1, 2, 3}, w.Months)
}

func TestResolve_FullSeason(t *testing.T) {
	w, err := Resolve(DefaultOrder, 7, 6)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8, 9, 10, 11, 12, 1, 2, 3, 4, 5, 6}, w.Months)
	assert.Equal(t, w.Months, FullSeason(DefaultOrder).Months)
}

func TestResolve_SingleMonth(t *testing.T) {
	w, err := Resolve(DefaultOrder, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, w.Months)
	assert.True(t, w.Contains(8))
	assert.False(t, w.Contains(9))
}

func TestResolve_ContiguousSlice(t *testing.T) {
	w, err := Resolve(DefaultOrder, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{9, 10, 11, 12, 1, 2}, w.Months)
}

func TestResolve_InvalidMonth(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		field      string
	}{
		{"start out of range", 13, 3, "start"},
		{"end out of range", 7, 0, "end"},
		{"negative start", -1, 6, "start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(DefaultOrder, tt.start, tt.end)
			var invalid *InvalidMonthError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.field, invalid.Field)
		})
	}
}

// Every (start, end) pair over every rotation yields the cyclic distance
// plus one months, with both endpoints included.
func TestResolve_CyclicDistanceProperty(t *testing.T) {
	for first := 1; first <= 12; first++ {
		order := NewCyclicOrder(first)
		require.NoError(t, order.Validate())

		for _, start := range order {
			for _, end := range order {
				w, err := Resolve(order, start, end)
				require.NoError(t, err)

				i, j := order.IndexOf(start), order.IndexOf(end)
				want := (j-i+12)%12 + 1
				assert.Len(t, w.Months, want, "order %v start %d end %d", order, start, end)
				assert.True(t, w.Contains(start))
				assert.True(t, w.Contains(end))
				assert.Len(t, w.Set(), want, "months must be distinct")
			}
		}
	}
}

func TestResolve_ArbitraryValues(t *testing.T) {
	order := CyclicOrder{30, 10, 20, 40, 50, 60, 70, 80, 90, 100, 110, 120}
	w, err := Resolve(order, 110, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{110, 120, 30, 10}, w.Months)
}

func TestResolve_Deterministic(t *testing.T) {
	a, err := Resolve(DefaultOrder, 11, 4)
	require.NoError(t, err)
	b, err := Resolve(DefaultOrder, 11, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCyclicOrder_Validate(t *testing.T) {
	bad := DefaultOrder
	bad[3] = bad[0]
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOrder)
	assert.NoError(t, DefaultOrder.Validate())
}

func TestResolve_RejectsRepeatedMonths(t *testing.T) {
	bad := DefaultOrder
	bad[5] = bad[4]

	_, err := Resolve(bad, 7, 6)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	var invalid *InvalidMonthError
	assert.False(t, errors.As(err, &invalid))
	assert.Empty(t, FullSeason(bad).Months)
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Julho", 7},
		{"março", 3},
		{"Dez", 12},
		{"september", 9},
		{" 08 ", 8},
		{"1", 1},
	}
	for _, tt := range tests {
		got, err := ParseMonth("start", tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseMonth("end", "13")
	var invalid *InvalidMonthError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 13, invalid.Month)

	_, err = ParseMonth("end", "brumaire")
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "end", invalid.Field)
}

func TestMonthName(t *testing.T) {
	assert.Equal(t, "Julho", MonthName(7))
	assert.Equal(t, "13", MonthName(13))
}
