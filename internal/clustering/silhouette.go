package clustering

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// Distance metric names accepted by the clusterers
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

// Noise labels points that belong to no cluster
const Noise = -1

func distanceFor(metric string) (func(a, b []float64) float64, error) {
	switch metric {
	case "", MetricEuclidean:
		return EuclideanDistance, nil
	case MetricCosine:
		return CosineDistance, nil
	}
	return nil, fmt.Errorf("unknown distance metric %q", metric)
}

// CosineDistance calculates cosine distance between two vectors
// Distance = 1 - cosine_similarity
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1.0 // Maximum distance for incompatible vectors
	}

	dotProduct := 0.0
	magA := 0.0
	magB := 0.0

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0.0 || magB == 0.0 {
		return 1.0 // Zero vector = maximum distance
	}

	similarity := dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
	// Clamp floating point drift
	similarity = math.Max(-1, math.Min(1, similarity))
	return 1.0 - similarity
}

// EuclideanDistance calculates Euclidean distance between two vectors
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}

	sumSquares := 0.0
	for i := 0; i < len(a); i++ {
		diff := a[i] - b[i]
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares)
}

// SilhouetteScore calculates the silhouette score for a single point
// Returns a score between -1 and 1:
//
//	-1: Point likely in wrong cluster
//	 0: Point on the border between clusters
//	+1: Point well matched to its cluster
func SilhouetteScore(pointIdx int, assignments []int, distances [][]float64) float64 {
	n := len(assignments)
	if n == 0 || pointIdx >= n {
		return 0.0
	}

	current := assignments[pointIdx]
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, label := range assignments {
		if i == pointIdx {
			continue
		}
		sums[label] += distances[pointIdx][i]
		counts[label]++
	}

	// Singleton clusters score 0 by convention
	if counts[current] == 0 {
		return 0.0
	}
	a := sums[current] / float64(counts[current])

	b := math.MaxFloat64
	for label, sum := range sums {
		if label == current {
			continue
		}
		if mean := sum / float64(counts[label]); mean < b {
			b = mean
		}
	}
	if b == math.MaxFloat64 {
		return 0.0 // No other clusters
	}

	if m := math.Max(a, b); m > 0 {
		return (b - a) / m
	}
	return 0.0
}

// AverageSilhouetteScore calculates the mean silhouette score across all points
func AverageSilhouetteScore(assignments []int, distances [][]float64) float64 {
	if len(assignments) == 0 {
		return 0.0
	}
	total := 0.0
	for i := range assignments {
		total += SilhouetteScore(i, assignments, distances)
	}
	return total / float64(len(assignments))
}

// DistanceMatrix computes pairwise distances between all points
func DistanceMatrix(points [][]float64, distanceFunc func(a, b []float64) float64) [][]float64 {
	n := len(points)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := distanceFunc(points[i], points[j])
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}
	return matrix
}

// SampledSilhouette scores the non-noise points of a clustering, using at most
// maxPoints of them drawn by rng. It returns 0 when fewer than two clusters remain.
func SampledSilhouette(points [][]float64, labels []int, maxPoints int, rng *rand.Rand) float64 {
	var keep []int
	for i, l := range labels {
		if l != Noise {
			keep = append(keep, i)
		}
	}
	if maxPoints > 0 && len(keep) > maxPoints {
		perm := rng.Perm(len(keep))[:maxPoints]
		sort.Ints(perm)
		picked := make([]int, len(perm))
		for k, p := range perm {
			picked[k] = keep[p]
		}
		keep = picked
	}

	sub := make([][]float64, len(keep))
	assignments := make([]int, len(keep))
	distinct := make(map[int]struct{})
	for k, idx := range keep {
		sub[k] = points[idx]
		assignments[k] = labels[idx]
		distinct[labels[idx]] = struct{}{}
	}
	if len(distinct) < 2 {
		return 0.0
	}

	return AverageSilhouetteScore(assignments, DistanceMatrix(sub, EuclideanDistance))
}
