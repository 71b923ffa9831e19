// Package quality scores predicted clusterings against ground-truth cluster ids.
package quality

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// MatchIoU is the intersection-over-union a predicted cluster must exceed to
// count as recovering a true cluster. Above 0.5 a predicted cluster can match
// at most one true cluster.
const MatchIoU = 0.5

// ErrLengthMismatch is returned when predicted and true labels differ in length.
var ErrLengthMismatch = errors.New("predicted and true label counts differ")

// Metrics is the evaluation of one or more clustering runs
type Metrics struct {
	Runs int `json:"runs"` // Number of clustering runs folded into this record

	// Counts, summed across runs
	TruePositives int `json:"tp"` // True clusters recovered by a predicted cluster
	TrueClusters  int `json:"t"`  // Ground-truth clusters
	Predicted     int `json:"p"`  // Predicted non-noise clusters

	// Rates, averaged across runs
	Precision     float64 `json:"precision"`      // TP / P
	Recall        float64 `json:"recall"`         // TP / T
	MeanIoU       float64 `json:"mean_iou"`       // Mean best IoU over true clusters
	NoiseFraction float64 `json:"noise_fraction"` // Share of points labeled noise
	Silhouette    float64 `json:"silhouette"`     // Silhouette of the embedding, when scored

	F1 float64 `json:"f1"` // Harmonic mean of Precision and Recall
}

// String formats the headline numbers
func (m Metrics) String() string {
	return fmt.Sprintf("runs=%d tp=%d t=%d p=%d precision=%.3f recall=%.3f f1=%.3f iou=%.3f noise=%.3f",
		m.Runs, m.TruePositives, m.TrueClusters, m.Predicted,
		m.Precision, m.Recall, m.F1, m.MeanIoU, m.NoiseFraction)
}

// EvaluateClusters scores predicted labels against true labels. Negative
// predicted labels are noise. Every true label value is a cluster.
func EvaluateClusters(pred, truth []int) (Metrics, error) {
	if len(pred) != len(truth) {
		return Metrics{}, fmt.Errorf("%w: %d predicted, %d true", ErrLengthMismatch, len(pred), len(truth))
	}

	trueSets := groupBitmaps(truth, false)
	predSets := groupBitmaps(pred, true)

	noise := 0
	for _, p := range pred {
		if p < 0 {
			noise++
		}
	}

	m := Metrics{
		Runs:         1,
		TrueClusters: len(trueSets),
		Predicted:    len(predSets),
	}
	if len(pred) > 0 {
		m.NoiseFraction = float64(noise) / float64(len(pred))
	}

	iouSum := 0.0
	for _, tk := range sortedKeys(trueSets) {
		t := trueSets[tk]
		best := 0.0
		for _, pk := range sortedKeys(predSets) {
			p := predSets[pk]
			inter := t.AndCardinality(p)
			if inter == 0 {
				continue
			}
			union := t.OrCardinality(p)
			if iou := float64(inter) / float64(union); iou > best {
				best = iou
			}
		}
		iouSum += best
		if best > MatchIoU {
			m.TruePositives++
		}
	}

	if m.TrueClusters > 0 {
		m.MeanIoU = iouSum / float64(m.TrueClusters)
		m.Recall = float64(m.TruePositives) / float64(m.TrueClusters)
	}
	if m.Predicted > 0 {
		m.Precision = float64(m.TruePositives) / float64(m.Predicted)
	}
	m.F1 = f1(m.Precision, m.Recall)
	return m, nil
}

// Aggregate folds records into one: counts and runs are summed, rates are
// averaged weighted by runs. The reduction is associative and commutative, so
// Aggregate(a, Aggregate(b, c)) equals Aggregate(c, a, b).
func Aggregate(records ...Metrics) Metrics {
	var out Metrics
	var precision, recall, iou, noise, silhouette float64
	for _, r := range records {
		w := float64(r.Runs)
		out.Runs += r.Runs
		out.TruePositives += r.TruePositives
		out.TrueClusters += r.TrueClusters
		out.Predicted += r.Predicted
		precision += r.Precision * w
		recall += r.Recall * w
		iou += r.MeanIoU * w
		noise += r.NoiseFraction * w
		silhouette += r.Silhouette * w
	}
	if out.Runs == 0 {
		return Metrics{}
	}

	n := float64(out.Runs)
	out.Precision = precision / n
	out.Recall = recall / n
	out.MeanIoU = iou / n
	out.NoiseFraction = noise / n
	out.Silhouette = silhouette / n
	out.F1 = f1(out.Precision, out.Recall)
	return out
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func groupBitmaps(labels []int, skipNoise bool) map[int]*roaring.Bitmap {
	sets := make(map[int]*roaring.Bitmap)
	for i, l := range labels {
		if skipNoise && l < 0 {
			continue
		}
		b, ok := sets[l]
		if !ok {
			b = roaring.New()
			sets[l] = b
		}
		b.Add(uint32(i))
	}
	return sets
}

func sortedKeys(m map[int]*roaring.Bitmap) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
