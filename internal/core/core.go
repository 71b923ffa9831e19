package core

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMissingColumn is returned when a requested column does not exist in a table.
var ErrMissingColumn = errors.New("missing column")

// ErrInvalidDivisor is returned when a normalization divisor is not strictly positive.
var ErrInvalidDivisor = errors.New("invalid divisor")

// Default column names used throughout the caterpillar datasets.
const (
	StarKey         = "star"       // Table key inside every labeled dataset file
	ClusterIDColumn = "cluster_id" // Ground-truth cluster label column
	XColumn         = "xstar"      // Galactocentric position components
	YColumn         = "ystar"
	ZColumn         = "zstar"
	RadiusColumn    = "rstar" // Derived |(x, y, z)|
)

// Table is a row-oriented numeric table with named columns.
// Rows are stored row-major; every row has len(Columns) values.
type Table struct {
	Columns []string    `json:"columns"` // Ordered column names
	Rows    [][]float64 `json:"rows"`    // Row-major values
}

// NewTable creates a table and checks that every row matches the column count.
func NewTable(columns []string, rows [][]float64) (*Table, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrMissingColumn, name)
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, err := t.ColumnIndex(name)
	return err == nil
}

// Column returns a copy of the values in one column.
func (t *Table) Column(name string) ([]float64, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Select returns a new table holding only the named columns, in the given order.
func (t *Table) Select(names []string) (*Table, error) {
	indices := make([]int, len(names))
	for i, name := range names {
		idx, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		indices[i] = idx
	}

	rows := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]float64, len(indices))
		for i, idx := range indices {
			out[i] = row[idx]
		}
		rows[r] = out
	}

	columns := make([]string, len(names))
	copy(columns, names)
	return &Table{Columns: columns, Rows: rows}, nil
}

// RowPredicate decides whether a row survives a filter. It receives the table
// so predicates can resolve column positions.
type RowPredicate func(t *Table, row []float64) bool

// Filter returns a new table with the rows accepted by keep. Row slices are shared.
func (t *Table) Filter(keep RowPredicate) *Table {
	var rows [][]float64
	for _, row := range t.Rows {
		if keep(t, row) {
			rows = append(rows, row)
		}
	}
	return &Table{Columns: t.Columns, Rows: rows}
}

// Take returns a new table holding the rows at the given indices, in order.
func (t *Table) Take(indices []int) *Table {
	rows := make([][]float64, len(indices))
	for i, idx := range indices {
		rows[i] = t.Rows[idx]
	}
	return &Table{Columns: t.Columns, Rows: rows}
}

// WithColumn returns a new table with an extra column appended.
func (t *Table) WithColumn(name string, values []float64) (*Table, error) {
	if len(values) != len(t.Rows) {
		return nil, fmt.Errorf("column %s has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	if t.HasColumn(name) {
		return nil, fmt.Errorf("column %s already exists", name)
	}

	columns := append(append([]string{}, t.Columns...), name)
	rows := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		out := make([]float64, len(row)+1)
		copy(out, row)
		out[len(row)] = values[i]
		rows[i] = out
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// Divisors is an immutable mapping from feature name to a positive scale divisor.
type Divisors struct {
	values map[string]float64
}

// NewDivisors copies the given mapping and validates every entry.
func NewDivisors(values map[string]float64) (Divisors, error) {
	copied := make(map[string]float64, len(values))
	for name, v := range values {
		if !(v > 0) {
			return Divisors{}, fmt.Errorf("%w: %s=%v", ErrInvalidDivisor, name, v)
		}
		copied[name] = v
	}
	return Divisors{values: copied}, nil
}

// MustDivisors is NewDivisors for static tables; it panics on invalid input.
func MustDivisors(values map[string]float64) Divisors {
	d, err := NewDivisors(values)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether the table was never populated.
func (d Divisors) IsZero() bool {
	return d.values == nil
}

// Lookup returns the divisor for one feature.
func (d Divisors) Lookup(name string) (float64, bool) {
	v, ok := d.values[name]
	return v, ok
}

// Names returns the feature names covered by the table, sorted.
func (d Divisors) Names() []string {
	names := make([]string, 0, len(d.values))
	for name := range d.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (d Divisors) Len() int {
	return len(d.values)
}
