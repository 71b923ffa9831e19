package table

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"caterpillar/internal/core"
)

// SQLiteSource reads a table from a SQLite database file. Only columns declared
// with a numeric type are loaded; NULL becomes NaN.
type SQLiteSource struct{}

// Read implements Source.
func (SQLiteSource) Read(ctx context.Context, path, key string) (*core.Table, error) {
	if key == "" {
		key = core.StarKey
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(key))
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s in %s: %w", key, path, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	var columns []string
	var keep []int
	for i, ct := range types {
		if isNumericType(ct.DatabaseTypeName()) {
			columns = append(columns, ct.Name())
			keep = append(keep, i)
		}
	}

	values := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var data [][]float64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]float64, len(keep))
		for j, idx := range keep {
			v, err := toFloat(values[idx])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", columns[j], err)
			}
			row[j] = v
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return core.NewTable(columns, data)
}

// Ingest stores t as table key in the SQLite database at path, replacing any
// existing table of that name. All columns are stored as REAL.
func Ingest(ctx context.Context, path, key string, t *core.Table) error {
	if key == "" {
		key = core.StarKey
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	defs := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c) + " REAL"
		marks[i] = "?"
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(key)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(key), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(key), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			if math.IsNaN(v) {
				args[i] = nil
			} else {
				args[i] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	return tx.Commit()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isNumericType(name string) bool {
	switch strings.ToUpper(name) {
	case "REAL", "INTEGER", "INT", "BIGINT", "FLOAT", "DOUBLE", "NUMERIC", "DECIMAL":
		return true
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
