package quality

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateClusters_Perfect(t *testing.T) {
	truth := []int{0, 0, 0, 1, 1, 2}
	// Label values differ but the partition is identical
	pred := []int{5, 5, 5, 9, 9, 1}

	m, err := EvaluateClusters(pred, truth)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Runs)
	assert.Equal(t, 3, m.TruePositives)
	assert.Equal(t, 3, m.TrueClusters)
	assert.Equal(t, 3, m.Predicted)
	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1)
	assert.Equal(t, 1.0, m.MeanIoU)
	assert.Equal(t, 0.0, m.NoiseFraction)
}

func TestEvaluateClusters_NoiseAndSplits(t *testing.T) {
	truth := []int{0, 0, 0, 0, 1, 1, 1, 1}
	// Cluster 0 recovered with one point lost to noise (IoU 3/4);
	// cluster 1 split in half (best IoU 2/4, not a match).
	pred := []int{0, 0, 0, -1, 1, 1, 2, 2}

	m, err := EvaluateClusters(pred, truth)
	require.NoError(t, err)
	assert.Equal(t, 1, m.TruePositives)
	assert.Equal(t, 2, m.TrueClusters)
	assert.Equal(t, 3, m.Predicted)
	assert.InDelta(t, 1.0/3.0, m.Precision, 1e-12)
	assert.InDelta(t, 0.5, m.Recall, 1e-12)
	assert.InDelta(t, (0.75+0.5)/2, m.MeanIoU, 1e-12)
	assert.InDelta(t, 1.0/8.0, m.NoiseFraction, 1e-12)
}

func TestEvaluateClusters_AllNoise(t *testing.T) {
	m, err := EvaluateClusters([]int{-1, -1, -1}, []int{0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Predicted)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.Recall)
	assert.Equal(t, 0.0, m.F1)
	assert.Equal(t, 1.0, m.NoiseFraction)
}

func TestEvaluateClusters_LengthMismatch(t *testing.T) {
	_, err := EvaluateClusters([]int{0}, []int{0, 1})
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestEvaluateClusters_Empty(t *testing.T) {
	m, err := EvaluateClusters(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Runs)
	assert.Equal(t, 0, m.TrueClusters)
}

func TestAggregate(t *testing.T) {
	a := Metrics{Runs: 1, TruePositives: 2, TrueClusters: 4, Predicted: 2, Precision: 1, Recall: 0.5, MeanIoU: 0.6}
	b := Metrics{Runs: 3, TruePositives: 3, TrueClusters: 6, Predicted: 6, Precision: 0.5, Recall: 0.5, MeanIoU: 0.2}

	got := Aggregate(a, b)
	assert.Equal(t, 4, got.Runs)
	assert.Equal(t, 5, got.TruePositives)
	assert.Equal(t, 10, got.TrueClusters)
	assert.Equal(t, 8, got.Predicted)
	assert.InDelta(t, (1+3*0.5)/4, got.Precision, 1e-12)
	assert.InDelta(t, 0.5, got.Recall, 1e-12)
	assert.InDelta(t, (0.6+3*0.2)/4, got.MeanIoU, 1e-12)
	assert.InDelta(t, f1(got.Precision, got.Recall), got.F1, 1e-12)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	a := Metrics{Runs: 2, TruePositives: 1, Precision: 0.3, Recall: 0.9, NoiseFraction: 0.1}
	b := Metrics{Runs: 1, TruePositives: 4, Precision: 0.7, Recall: 0.2, NoiseFraction: 0.4}
	c := Metrics{Runs: 5, TruePositives: 2, Precision: 0.1, Recall: 0.6, Silhouette: 0.5}

	flat := Aggregate(a, b, c)
	nested := Aggregate(c, Aggregate(b, a))

	assert.Equal(t, flat.Runs, nested.Runs)
	assert.Equal(t, flat.TruePositives, nested.TruePositives)
	assert.InDelta(t, flat.Precision, nested.Precision, 1e-12)
	assert.InDelta(t, flat.Recall, nested.Recall, 1e-12)
	assert.InDelta(t, flat.NoiseFraction, nested.NoiseFraction, 1e-12)
	assert.InDelta(t, flat.Silhouette, nested.Silhouette, 1e-12)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Equal(t, Metrics{}, Aggregate())
}

func TestMetricsString(t *testing.T) {
	s := Metrics{Runs: 2, TruePositives: 1}.String()
	assert.Contains(t, s, "runs=2")
	assert.Contains(t, s, "tp=1")
}
