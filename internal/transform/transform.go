// Package transform provides stochastic feature-batch augmentations.
//
// A Transform maps a batch of feature vectors to a new batch. Applied to a
// single record the batch has length one; applied by ContrastDataset.GlobalTransform
// the batch is a whole cluster, which lets a transform act on the cluster as a unit.
package transform

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Transform maps a feature batch to a feature batch. Implementations must not
// modify the input rows.
type Transform interface {
	Apply(batch [][]float64) [][]float64
}

// Pipeline is an ordered list of transforms.
type Pipeline []Transform

// Apply runs each transform in order. An empty pipeline returns the input unchanged.
func (p Pipeline) Apply(batch [][]float64) [][]float64 {
	for _, t := range p {
		batch = t.Apply(batch)
	}
	return batch
}

// ApplyOne runs the pipeline on a single record.
func (p Pipeline) ApplyOne(row []float64) []float64 {
	if len(p) == 0 {
		return append([]float64(nil), row...)
	}
	return p.Apply([][]float64{row})[0]
}

// Identity returns a copy of its input.
type Identity struct{}

// Apply implements Transform.
func (Identity) Apply(batch [][]float64) [][]float64 {
	out := make([][]float64, len(batch))
	for i, row := range batch {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Jitter adds independent Gaussian noise with standard deviation Sigma to every value.
type Jitter struct {
	noise distuv.Normal
}

// NewJitter creates a jitter transform drawing from src.
func NewJitter(sigma float64, src rand.Source) *Jitter {
	return &Jitter{noise: distuv.Normal{Mu: 0, Sigma: sigma, Src: src}}
}

// Apply implements Transform.
func (j *Jitter) Apply(batch [][]float64) [][]float64 {
	out := make([][]float64, len(batch))
	for i, row := range batch {
		noisy := make([]float64, len(row))
		for k, v := range row {
			noisy[k] = v + j.noise.Rand()
		}
		out[i] = noisy
	}
	return out
}

// Scale multiplies the whole batch by a single factor drawn from [1-Range, 1+Range].
// One factor is drawn per call.
type Scale struct {
	factor distuv.Uniform
}

// NewScale creates a scale transform drawing from src.
func NewScale(scaleRange float64, src rand.Source) *Scale {
	return &Scale{factor: distuv.Uniform{Min: 1 - scaleRange, Max: 1 + scaleRange, Src: src}}
}

// Apply implements Transform.
func (s *Scale) Apply(batch [][]float64) [][]float64 {
	f := s.factor.Rand()
	out := make([][]float64, len(batch))
	for i, row := range batch {
		scaled := make([]float64, len(row))
		for k, v := range row {
			scaled[k] = v * f
		}
		out[i] = scaled
	}
	return out
}

// Parse builds a pipeline from a comma-separated list such as "jitter:0.1,scale:0.1".
// Recognized names are jitter, scale and identity. An empty string yields an empty pipeline.
func Parse(spec string, src rand.Source) (Pipeline, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var p Pipeline
	for _, part := range strings.Split(spec, ",") {
		name, arg, hasArg := strings.Cut(strings.TrimSpace(part), ":")
		name = strings.ToLower(strings.TrimSpace(name))

		var value float64
		if hasArg {
			v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid argument for transform %q: %w", name, err)
			}
			if v < 0 {
				return nil, fmt.Errorf("transform %q argument must be non-negative, got %v", name, v)
			}
			value = v
		}

		switch name {
		case "identity":
			p = append(p, Identity{})
		case "jitter":
			if !hasArg {
				value = 0.1
			}
			p = append(p, NewJitter(value, src))
		case "scale":
			if !hasArg {
				value = 0.1
			}
			p = append(p, NewScale(value, src))
		default:
			return nil, fmt.Errorf("unknown transform %q", name)
		}
	}
	return p, nil
}
