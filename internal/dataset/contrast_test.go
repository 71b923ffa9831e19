package dataset

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caterpillar/internal/core"
	"caterpillar/internal/transform"
)

func newContrast(t *testing.T, opts ContrastOptions) *ContrastDataset {
	t.Helper()
	opts.Features = []string{"a", "b"}
	opts.Divisors = testDivisors()
	if opts.Labels == nil {
		opts.Labels = tenLabels()
	}
	ds, err := NewContrastDataset(FromMatrix(tenRows()), opts)
	require.NoError(t, err)
	return ds
}

func percent(v float64) *float64 { return &v }

func TestContrastDataset_RequiresLabels(t *testing.T) {
	_, err := NewContrastDataset(FromMatrix(tenRows()), ContrastOptions{
		Options: Options{Features: []string{"a", "b"}, Divisors: testDivisors()},
	})
	assert.True(t, errors.Is(err, ErrLabelsRequired))
}

func TestContrastDataset_InvalidPositivePercent(t *testing.T) {
	_, err := NewContrastDataset(FromMatrix(tenRows()), ContrastOptions{
		Options:         Options{Features: []string{"a", "b"}, Labels: tenLabels(), Divisors: testDivisors()},
		PositivePercent: percent(1.5),
	})
	assert.Error(t, err)
}

func TestContrastDataset_DefaultPositivePercent(t *testing.T) {
	ds := newContrast(t, ContrastOptions{})
	assert.Equal(t, DefaultPositivePercent, ds.PositivePercent())
}

func TestContrastDataset_ZeroPositivePercentKeepsOwnCluster(t *testing.T) {
	ds := newContrast(t, ContrastOptions{
		PositivePercent: percent(0),
		Rand:            rand.New(rand.NewPCG(9, 9)),
	})
	assert.Equal(t, 0.0, ds.PositivePercent())

	for n := 0; n < 2000; n++ {
		pair, err := ds.Get(n % ds.Len())
		require.NoError(t, err)
		assert.Equal(t, pair.QueryLabel, pair.PartnerLabel)
	}
}

func TestContrastDataset_ClusterIndexPartitionsRecords(t *testing.T) {
	ds := newContrast(t, ContrastOptions{})
	index := ds.Index()

	assert.Equal(t, 4, index.Len())
	assert.Equal(t, []int{0, 1, 2, 3}, index.IDs())

	var all []int
	for _, id := range index.IDs() {
		all = append(all, index.Members(id)...)
	}
	sort.Ints(all)
	expected := make([]int, ds.Len())
	for i := range expected {
		expected[i] = i
	}
	assert.Equal(t, expected, all)

	assert.Equal(t, []int{2, 3, 4}, index.Members(1))
}

func TestClusterIndex_IsImmutable(t *testing.T) {
	index := BuildClusterIndex([]int{1, 1, 0})
	members := index.Members(1)
	members[0] = 99
	assert.Equal(t, []int{0, 1}, index.Members(1))
}

func TestContrastDataset_Get(t *testing.T) {
	ds := newContrast(t, ContrastOptions{Rand: rand.New(rand.NewPCG(1, 2))})

	for i := 0; i < ds.Len(); i++ {
		pair, err := ds.Get(i)
		require.NoError(t, err)
		assert.Equal(t, ds.Features()[i], pair.Query)
		assert.Equal(t, ds.Labels()[i], pair.QueryLabel)
		// Partner must be a record whose label matches PartnerLabel
		found := false
		for _, idx := range ds.Index().Members(pair.PartnerLabel) {
			if assert.ObjectsAreEqual(ds.Features()[idx], pair.Partner) {
				found = true
			}
		}
		assert.True(t, found)
	}

	_, err := ds.Get(10)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestContrastDataset_PartnerLabelFrequency(t *testing.T) {
	const pp = 0.4
	ds := newContrast(t, ContrastOptions{
		PositivePercent: percent(pp),
		Rand:            rand.New(rand.NewPCG(42, 7)),
	})

	const draws = 40000
	same := 0
	for n := 0; n < draws; n++ {
		pair, err := ds.Get(n % ds.Len())
		require.NoError(t, err)
		if pair.PartnerLabel == pair.QueryLabel {
			same++
		}
	}

	// Own cluster with probability 1-pp; a uniform draw over k clusters hits it with 1/k.
	k := float64(ds.Index().Len())
	expected := (1 - pp) + pp/k
	assert.InDelta(t, expected, float64(same)/draws, 0.015)
}

func TestContrastDataset_PositivePercentOneIsUniformOverClusters(t *testing.T) {
	ds := newContrast(t, ContrastOptions{
		PositivePercent: percent(1),
		Rand:            rand.New(rand.NewPCG(3, 3)),
	})

	counts := make(map[int]int)
	const draws = 20000
	for n := 0; n < draws; n++ {
		pair, err := ds.Get(0)
		require.NoError(t, err)
		counts[pair.PartnerLabel]++
	}
	for _, id := range ds.Index().IDs() {
		assert.InDelta(t, 0.25, float64(counts[id])/draws, 0.02)
	}
}

func TestContrastDataset_NoClusters(t *testing.T) {
	ds, err := NewContrastDataset(Empty(), ContrastOptions{
		Options: Options{Features: []string{"xstar"}, LabelColumn: "cluster_id"},
	})
	require.NoError(t, err)

	_, err = ds.Get(0)
	assert.True(t, errors.Is(err, ErrNoClusters))
}

func TestContrastDataset_GlobalTransformIdentity(t *testing.T) {
	ds := newContrast(t, ContrastOptions{})
	before := append([][]float64(nil), ds.Features()...)

	ds.GlobalTransform(transform.Pipeline{transform.Identity{}})
	assert.Equal(t, before, ds.Features())
}

// doubler multiplies a batch by two and records the batch sizes it saw.
type doubler struct {
	sizes []int
}

func (d *doubler) Apply(batch [][]float64) [][]float64 {
	d.sizes = append(d.sizes, len(batch))
	out := make([][]float64, len(batch))
	for i, row := range batch {
		out[i] = []float64{row[0] * 2, row[1] * 2}
	}
	return out
}

func TestContrastDataset_GlobalTransformPerClusterAndCompounds(t *testing.T) {
	d := &doubler{}
	ds := newContrast(t, ContrastOptions{Options: Options{Transforms: transform.Pipeline{d}}})
	original := append([][]float64(nil), ds.Features()...)

	ds.GlobalTransform(nil)
	assert.Equal(t, []int{2, 3, 4, 1}, d.sizes)
	for i := range original {
		assert.Equal(t, original[i][0]*2, ds.Features()[i][0])
	}

	ds.GlobalTransform(nil)
	for i := range original {
		assert.Equal(t, original[i][1]*4, ds.Features()[i][1])
	}
}

func TestContrastDataset_Load(t *testing.T) {
	ds, err := NewContrastDataset(Empty(), ContrastOptions{
		Options: Options{Features: []string{"xstar"}, LabelColumn: "cluster_id"},
	})
	require.NoError(t, err)

	tbl, _ := core.NewTable([]string{"xstar", "cluster_id"}, [][]float64{{10, 8}, {20, 9}, {30, 8}})
	require.NoError(t, ds.Load(tbl, core.Divisors{}))
	assert.Equal(t, 2, ds.Index().Len())
	assert.Equal(t, []int{0, 2}, ds.Index().Members(0))

	noColumn := newContrast(t, ContrastOptions{})
	assert.True(t, errors.Is(noColumn.Load(tbl, core.Divisors{}), ErrLabelsRequired))
}
