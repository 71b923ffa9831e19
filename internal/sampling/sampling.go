// Package sampling draws spatial subvolumes from a simulation snapshot.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/golang/geo/r3"

	"caterpillar/internal/core"
)

// Default window used by the caterpillar trainer, in simulation length units (Mpc).
const (
	DefaultRadius    = 0.005
	DefaultRadiusSun = 0.0082
	DefaultZRange    = 0.016 / 1000
)

// SpaceSampler selects stars inside a sphere centred on a random solar-like position.
type SpaceSampler struct {
	Radius     float64    // Sphere radius
	RadiusSun  float64    // Galactocentric distance of the sphere centre in the disc plane
	ZRange     float64    // Centre height is drawn from [-ZRange, ZRange]
	SampleSize int        // Maximum number of rows returned; 0 keeps every selected row
	Rand       *rand.Rand // Nil uses a randomly seeded generator
}

// NewSpaceSampler returns a sampler with the default window.
func NewSpaceSampler(sampleSize int, rng *rand.Rand) *SpaceSampler {
	return &SpaceSampler{
		Radius:     DefaultRadius,
		RadiusSun:  DefaultRadiusSun,
		ZRange:     DefaultZRange,
		SampleSize: sampleSize,
		Rand:       rng,
	}
}

func (s *SpaceSampler) validate() error {
	if !(s.Radius > 0) {
		return fmt.Errorf("sampling radius must be positive, got %v", s.Radius)
	}
	if s.RadiusSun < 0 || s.ZRange < 0 {
		return errors.New("sampling offsets must be non-negative")
	}
	if s.SampleSize < 0 {
		return fmt.Errorf("sample size must be non-negative, got %d", s.SampleSize)
	}
	return nil
}

func (s *SpaceSampler) rng() *rand.Rand {
	if s.Rand == nil {
		s.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s.Rand
}

// Center draws a sphere centre: a random azimuth at RadiusSun and a random height.
func (s *SpaceSampler) Center() r3.Vector {
	rng := s.rng()
	phi := rng.Float64() * 2 * math.Pi
	z := (rng.Float64()*2 - 1) * s.ZRange
	return r3.Vector{X: s.RadiusSun * math.Cos(phi), Y: s.RadiusSun * math.Sin(phi), Z: z}
}

// Sample returns the rows of t inside a freshly drawn sphere, subsampled
// without replacement to at most SampleSize rows. Row order is preserved.
func (s *SpaceSampler) Sample(t *core.Table) (*core.Table, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s.SampleAround(t, s.Center())
}

// SampleAround is Sample with a fixed centre.
func (s *SpaceSampler) SampleAround(t *core.Table, center r3.Vector) (*core.Table, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	xi, err := t.ColumnIndex(core.XColumn)
	if err != nil {
		return nil, err
	}
	yi, err := t.ColumnIndex(core.YColumn)
	if err != nil {
		return nil, err
	}
	zi, err := t.ColumnIndex(core.ZColumn)
	if err != nil {
		return nil, err
	}

	var inside []int
	for i, row := range t.Rows {
		p := r3.Vector{X: row[xi], Y: row[yi], Z: row[zi]}
		if p.Sub(center).Norm() <= s.Radius {
			inside = append(inside, i)
		}
	}

	if s.SampleSize > 0 && len(inside) > s.SampleSize {
		rng := s.rng()
		perm := rng.Perm(len(inside))[:s.SampleSize]
		sort.Ints(perm)
		picked := make([]int, len(perm))
		for k, p := range perm {
			picked[k] = inside[p]
		}
		inside = picked
	}

	return t.Take(inside), nil
}
