package features

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caterpillar/internal/core"
)

func TestDefaultTables(t *testing.T) {
	cluster := ClusterDefaults()
	contrast := ContrastDefaults()

	e, ok := cluster.Lookup("estar")
	require.True(t, ok)
	assert.Equal(t, 89000.0, e)

	e, ok = contrast.Lookup("estar")
	require.True(t, ok)
	assert.Equal(t, 1e5, e)

	for _, name := range cluster.Names() {
		if name == "estar" {
			continue
		}
		a, _ := cluster.Lookup(name)
		b, ok := contrast.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, a, b, name)
	}
}

func TestNewNormalizer(t *testing.T) {
	n, err := NewNormalizer([]string{"vxstar", "mgfe", "xstar"}, ClusterDefaults())
	require.NoError(t, err)
	assert.Equal(t, []float64{200, 0.5, 10}, n.Vector())

	out, err := n.Apply([][]float64{{400, 1, 5}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 2, 0.5}}, out)

	_, err = n.Apply([][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestNewNormalizer_MissingFeature(t *testing.T) {
	_, err := NewNormalizer([]string{"estar", "phistar"}, ClusterDefaults())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingFeature))
	assert.Contains(t, err.Error(), "phistar")
}

func TestNormalizerApply_DoesNotMutateInput(t *testing.T) {
	d := core.MustDivisors(map[string]float64{"a": 2})
	n, err := NewNormalizer([]string{"a"}, d)
	require.NoError(t, err)

	raw := [][]float64{{4}}
	_, err = n.Apply(raw)
	require.NoError(t, err)
	assert.Equal(t, 4.0, raw[0][0])
}

func TestParseNorm(t *testing.T) {
	doc := []byte(`{
		"estar": {"0": 120000.5},
		"rstar": [3.5, 9],
		"feH": 0.75,
		"zstar": {"10": 1, "2": 7}
	}`)

	d, err := ParseNorm(doc)
	require.NoError(t, err)

	v, _ := d.Lookup("estar")
	assert.Equal(t, 120000.5, v)
	v, _ = d.Lookup("rstar")
	assert.Equal(t, 3.5, v)
	v, _ = d.Lookup("feH")
	assert.Equal(t, 0.75, v)
	// Row keys are compared numerically
	v, _ = d.Lookup("zstar")
	assert.Equal(t, 7.0, v)
}

func TestParseNorm_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"empty column", `{"estar": {}}`},
		{"empty list", `{"estar": []}`},
		{"string value", `{"estar": "big"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNorm([]byte(tt.doc))
			assert.True(t, errors.Is(err, ErrMalformedNormFile))
		})
	}

	_, err := ParseNorm([]byte(`{"estar": {"0": 0}}`))
	assert.True(t, errors.Is(err, core.ErrInvalidDivisor))
}

func TestLoadNormFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labeled_5320_all_norm.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"estar": {"0": 50000}}`), 0o644))

	d, err := LoadNormFile(path)
	require.NoError(t, err)
	v, ok := d.Lookup("estar")
	assert.True(t, ok)
	assert.Equal(t, 50000.0, v)

	_, err = LoadNormFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
