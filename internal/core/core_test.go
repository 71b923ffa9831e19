package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable([]string{"a", "b", "c"}, [][]float64{
		{1, 2, 3},
		{4, 5, 6},
		{7, 8, 9},
	})
	require.NoError(t, err)
	return tbl
}

func TestNewTable_RowWidthMismatch(t *testing.T) {
	_, err := NewTable([]string{"a", "b"}, [][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestTableSelect(t *testing.T) {
	tbl := sampleTable(t)

	selected, err := tbl.Select([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, selected.Columns)
	assert.Equal(t, [][]float64{{3, 1}, {6, 4}, {9, 7}}, selected.Rows)

	_, err = tbl.Select([]string{"a", "missing"})
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestTableColumnAndFilter(t *testing.T) {
	tbl := sampleTable(t)

	col, err := tbl.Column("b")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5, 8}, col)

	filtered := tbl.Filter(func(_ *Table, row []float64) bool { return row[0] > 2 })
	assert.Equal(t, 2, filtered.Len())
	assert.Equal(t, 4.0, filtered.Rows[0][0])
}

func TestTableWithColumn(t *testing.T) {
	tbl := sampleTable(t)

	extended, err := tbl.WithColumn("d", []float64{10, 11, 12})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, extended.Columns)
	assert.Equal(t, []float64{4, 5, 6, 11}, extended.Rows[1])
	// Original rows are untouched
	assert.Len(t, tbl.Rows[1], 3)

	_, err = tbl.WithColumn("a", []float64{0, 0, 0})
	assert.Error(t, err)
	_, err = tbl.WithColumn("e", []float64{0})
	assert.Error(t, err)
}

func TestTableTake(t *testing.T) {
	tbl := sampleTable(t)
	taken := tbl.Take([]int{2, 0})
	assert.Equal(t, [][]float64{{7, 8, 9}, {1, 2, 3}}, taken.Rows)
}

func TestDivisors(t *testing.T) {
	d, err := NewDivisors(map[string]float64{"x": 10, "y": 2})
	require.NoError(t, err)

	v, ok := d.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
	_, ok = d.Lookup("z")
	assert.False(t, ok)
	assert.Equal(t, []string{"x", "y"}, d.Names())

	_, err = NewDivisors(map[string]float64{"x": 0})
	assert.True(t, errors.Is(err, ErrInvalidDivisor))
	_, err = NewDivisors(map[string]float64{"x": -1})
	assert.True(t, errors.Is(err, ErrInvalidDivisor))

	assert.True(t, Divisors{}.IsZero())
	assert.False(t, d.IsZero())
}
