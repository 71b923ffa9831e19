// Package table reads labeled simulation snapshots into core.Table values.
package table

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"caterpillar/internal/core"
)

// Source reads a named table from a file.
type Source interface {
	Read(ctx context.Context, path, key string) (*core.Table, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, path, key string) (*core.Table, error)

// Read implements Source.
func (f SourceFunc) Read(ctx context.Context, path, key string) (*core.Table, error) {
	return f(ctx, path, key)
}

// Auto dispatches on file extension: .db, .sqlite and .sqlite3 files are read
// with SQLiteSource, .csv and .csv.zst files with CSVSource.
type Auto struct{}

// Read implements Source.
func (Auto) Read(ctx context.Context, path, key string) (*core.Table, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	return src.Read(ctx, path, key)
}

// Open returns the source able to read path.
func Open(path string) (Source, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".csv.zst"):
		return CSVSource{}, nil
	}
	switch filepath.Ext(lower) {
	case ".db", ".sqlite", ".sqlite3":
		return SQLiteSource{}, nil
	}
	return nil, fmt.Errorf("unsupported table file: %s", path)
}

// EnsureRadius appends rstar = |(xstar, ystar, zstar)| when the table lacks it.
func EnsureRadius(t *core.Table) (*core.Table, error) {
	if t.HasColumn(core.RadiusColumn) {
		return t, nil
	}
	positions, err := t.Select([]string{core.XColumn, core.YColumn, core.ZColumn})
	if err != nil {
		return nil, err
	}
	radius := make([]float64, positions.Len())
	for i, p := range positions.Rows {
		radius[i] = math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
	}
	return t.WithColumn(core.RadiusColumn, radius)
}

// Below keeps rows whose column value is strictly less than threshold.
// Rows are dropped when the column is absent.
func Below(column string, threshold float64) core.RowPredicate {
	return func(t *core.Table, row []float64) bool {
		idx, err := t.ColumnIndex(column)
		if err != nil {
			return false
		}
		return row[idx] < threshold
	}
}
