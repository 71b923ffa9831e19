package table

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caterpillar/internal/core"
)

func starTable(t *testing.T) *core.Table {
	t.Helper()
	tbl, err := core.NewTable(
		[]string{"xstar", "ystar", "zstar", "cluster_id"},
		[][]float64{
			{3, 4, 0, 1},
			{0, 0, 2, 2},
			{1, 2, 2, 1},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestOpen(t *testing.T) {
	tests := []struct {
		path string
		want Source
	}{
		{"labeled_5320_all.db", SQLiteSource{}},
		{"labeled_5320_all.SQLITE", SQLiteSource{}},
		{"labeled_5320_all.csv", CSVSource{}},
		{"labeled_5320_all.csv.zst", CSVSource{}},
	}
	for _, tt := range tests {
		src, err := Open(tt.path)
		require.NoError(t, err, tt.path)
		assert.IsType(t, tt.want, src, tt.path)
	}

	_, err := Open("labeled_5320_all.h5")
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	data := "xstar, ystar,zstar\n1,2,3\n4,,nan\n"
	tbl, err := ReadCSV(context.Background(), strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"xstar", "ystar", "zstar"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []float64{1, 2, 3}, tbl.Rows[0])
	assert.Equal(t, 4.0, tbl.Rows[1][0])
	assert.True(t, math.IsNaN(tbl.Rows[1][1]))
	assert.True(t, math.IsNaN(tbl.Rows[1][2]))
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV(context.Background(), strings.NewReader("a,b\n1,x\n"))
	assert.Error(t, err)
}

func TestCSVRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"stars.csv", "stars.csv.zst"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteCSV(path, starTable(t)))

		got, err := Auto{}.Read(context.Background(), path, core.StarKey)
		require.NoError(t, err, name)
		assert.Equal(t, starTable(t), got, name)
	}
}

func TestSQLiteIngestAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labeled_5320_all.db")
	ctx := context.Background()

	require.NoError(t, Ingest(ctx, path, "", starTable(t)))

	got, err := SQLiteSource{}.Read(ctx, path, core.StarKey)
	require.NoError(t, err)
	assert.Equal(t, starTable(t), got)

	// Re-ingesting replaces the table
	smaller, _ := core.NewTable([]string{"xstar"}, [][]float64{{math.NaN()}})
	require.NoError(t, Ingest(ctx, path, core.StarKey, smaller))
	got, err = SQLiteSource{}.Read(ctx, path, core.StarKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"xstar"}, got.Columns)
	assert.True(t, math.IsNaN(got.Rows[0][0]))
}

func TestSQLiteRead_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := SQLiteSource{}.Read(ctx, filepath.Join(dir, "missing.db"), core.StarKey)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := filepath.Join(dir, "other.db")
	require.NoError(t, Ingest(ctx, path, "gas", starTable(t)))
	_, err = SQLiteSource{}.Read(ctx, path, core.StarKey)
	assert.Error(t, err)
}

func TestEnsureRadius(t *testing.T) {
	tbl, err := EnsureRadius(starTable(t))
	require.NoError(t, err)

	r, err := tbl.Column(core.RadiusColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 2, 3}, r)

	// Idempotent once the column exists
	again, err := EnsureRadius(tbl)
	require.NoError(t, err)
	assert.Same(t, tbl, again)

	noPos, _ := core.NewTable([]string{"estar"}, [][]float64{{1}})
	_, err = EnsureRadius(noPos)
	assert.True(t, errors.Is(err, core.ErrMissingColumn))
}

func TestBelow(t *testing.T) {
	tbl := starTable(t)
	kept := tbl.Filter(Below("cluster_id", 2))
	assert.Equal(t, 2, kept.Len())

	none := tbl.Filter(Below("redshiftstar", 2))
	assert.Equal(t, 0, none.Len())
}
