package transform

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	in := [][]float64{{1, 2}, {3, 4}}
	out := Identity{}.Apply(in)
	assert.Equal(t, in, out)

	out[0][0] = 99
	assert.Equal(t, 1.0, in[0][0])
}

func TestEmptyPipeline(t *testing.T) {
	var p Pipeline
	in := [][]float64{{1, 2}}
	assert.Equal(t, in, p.Apply(in))
	assert.Equal(t, []float64{5, 6}, p.ApplyOne([]float64{5, 6}))
}

func TestJitter(t *testing.T) {
	j := NewJitter(0.1, rand.NewPCG(1, 2))
	row := []float64{1, 1, 1}
	out := j.Apply([][]float64{row})

	require.Len(t, out, 1)
	assert.NotEqual(t, row, out[0])
	for _, v := range out[0] {
		assert.InDelta(t, 1.0, v, 1.0)
	}
	// Input untouched
	assert.Equal(t, []float64{1, 1, 1}, row)
}

func TestJitter_ZeroSigma(t *testing.T) {
	j := NewJitter(0, rand.NewPCG(1, 2))
	out := j.Apply([][]float64{{1, 2}})
	assert.Equal(t, [][]float64{{1, 2}}, out)
}

func TestScale_SingleFactorPerBatch(t *testing.T) {
	s := NewScale(0.5, rand.NewPCG(3, 4))
	out := s.Apply([][]float64{{1, 2}, {4, 8}})

	f := out[0][0]
	assert.GreaterOrEqual(t, f, 0.5)
	assert.LessOrEqual(t, f, 1.5)
	assert.InDelta(t, 2*f, out[0][1], 1e-12)
	assert.InDelta(t, 4*f, out[1][0], 1e-12)
	assert.InDelta(t, 8*f, out[1][1], 1e-12)
}

func TestSeededPipelineIsReproducible(t *testing.T) {
	a, err := Parse("jitter:0.2,scale:0.1", rand.NewPCG(7, 7))
	require.NoError(t, err)
	b, err := Parse("jitter:0.2,scale:0.1", rand.NewPCG(7, 7))
	require.NoError(t, err)

	in := [][]float64{{1, 2, 3}}
	assert.Equal(t, a.Apply(in), b.Apply(in))
}

func TestParse(t *testing.T) {
	p, err := Parse(" jitter:0.05 , scale, identity ", rand.NewPCG(1, 1))
	require.NoError(t, err)
	require.Len(t, p, 3)
	assert.IsType(t, &Jitter{}, p[0])
	assert.IsType(t, &Scale{}, p[1])
	assert.IsType(t, Identity{}, p[2])

	p, err = Parse("", rand.NewPCG(1, 1))
	require.NoError(t, err)
	assert.Empty(t, p)

	_, err = Parse("rotate:1", rand.NewPCG(1, 1))
	assert.Error(t, err)
	_, err = Parse("jitter:abc", rand.NewPCG(1, 1))
	assert.Error(t, err)
	_, err = Parse("scale:-1", rand.NewPCG(1, 1))
	assert.Error(t, err)
}

func TestJitterStatistics(t *testing.T) {
	j := NewJitter(0.5, rand.NewPCG(11, 13))
	batch := make([][]float64, 5000)
	for i := range batch {
		batch[i] = []float64{0}
	}
	out := j.Apply(batch)

	var sum, sq float64
	for _, row := range out {
		sum += row[0]
		sq += row[0] * row[0]
	}
	mean := sum / float64(len(out))
	std := math.Sqrt(sq/float64(len(out)) - mean*mean)
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 0.5, std, 0.05)
}
