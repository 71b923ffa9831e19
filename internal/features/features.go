// Package features holds the feature-scaling tables applied to raw stellar
// kinematics before any dataset sees them.
package features

import (
	"errors"
	"fmt"
	"os"
	"sort"

	gojson "github.com/goccy/go-json"

	"caterpillar/internal/core"
)

// ErrMissingFeature is returned when a requested feature has no divisor.
var ErrMissingFeature = errors.New("feature has no normalization divisor")

// ErrMalformedNormFile is returned when a normalization file cannot be interpreted.
var ErrMalformedNormFile = errors.New("malformed normalization file")

// baseDivisors are the physically motivated scales shared by both default tables.
// Energies in (km/s)^2, angular momenta and actions in kpc km/s, distances in kpc,
// velocities in km/s.
var baseDivisors = map[string]float64{
	"lzstar":     2000,
	"lxstar":     2000,
	"lystar":     2000,
	"jzstar":     2000,
	"jrstar":     2000,
	"eccstar":    1,
	"rstar":      4,
	"feH":        1,
	"mgfe":       0.5,
	"xstar":      10,
	"ystar":      10,
	"zstar":      10,
	"vxstar":     200,
	"vystar":     200,
	"vzstar":     200,
	"vrstar":     200,
	"vphistar":   200,
	"vthetastar": 200,
}

func withEnergy(estar float64) core.Divisors {
	values := make(map[string]float64, len(baseDivisors)+1)
	for k, v := range baseDivisors {
		values[k] = v
	}
	values["estar"] = estar
	return core.MustDivisors(values)
}

// ClusterDefaults returns the default table used by classification datasets.
func ClusterDefaults() core.Divisors {
	return withEnergy(89000)
}

// ContrastDefaults returns the default table used by contrastive datasets.
// It differs from ClusterDefaults only in the energy scale.
func ContrastDefaults() core.Divisors {
	return withEnergy(1e5)
}

// Normalizer holds the ordered divisor vector for a fixed feature schema.
type Normalizer struct {
	names  []string
	vector []float64
}

// NewNormalizer resolves every name against the divisor table. Every feature
// must be present; there is no fallback value.
func NewNormalizer(names []string, divisors core.Divisors) (*Normalizer, error) {
	vector := make([]float64, len(names))
	for i, name := range names {
		v, ok := divisors.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		vector[i] = v
	}
	return &Normalizer{
		names:  append([]string(nil), names...),
		vector: vector,
	}, nil
}

// Names returns the feature schema.
func (n *Normalizer) Names() []string {
	return append([]string(nil), n.names...)
}

// Vector returns the ordered divisor vector.
func (n *Normalizer) Vector() []float64 {
	return append([]float64(nil), n.vector...)
}

// Apply returns a normalized copy of rows. Each row must have one value per feature.
func (n *Normalizer) Apply(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(n.vector) {
			return nil, fmt.Errorf("row %d has %d values, expected %d features", i, len(row), len(n.vector))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = v / n.vector[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// LoadNormFile reads a companion *_norm.json file.
func LoadNormFile(path string) (core.Divisors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Divisors{}, fmt.Errorf("failed to read normalization file %s: %w", path, err)
	}
	d, err := ParseNorm(data)
	if err != nil {
		return core.Divisors{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ParseNorm decodes a normalization document. Each feature maps to a single-row
// scale: either a pandas frame column ({"0": v}), a one-element array, or a number.
// When a column holds several rows, the first row (by sorted row key) is used.
func ParseNorm(data []byte) (core.Divisors, error) {
	var raw map[string]gojson.RawMessage
	if err := gojson.Unmarshal(data, &raw); err != nil {
		return core.Divisors{}, fmt.Errorf("%w: %v", ErrMalformedNormFile, err)
	}

	values := make(map[string]float64, len(raw))
	for name, msg := range raw {
		v, err := firstRow(msg)
		if err != nil {
			return core.Divisors{}, fmt.Errorf("%w: feature %s: %v", ErrMalformedNormFile, name, err)
		}
		values[name] = v
	}
	return core.NewDivisors(values)
}

func firstRow(msg gojson.RawMessage) (float64, error) {
	var number float64
	if err := gojson.Unmarshal(msg, &number); err == nil {
		return number, nil
	}

	var list []float64
	if err := gojson.Unmarshal(msg, &list); err == nil {
		if len(list) == 0 {
			return 0, errors.New("empty row list")
		}
		return list[0], nil
	}

	var column map[string]float64
	if err := gojson.Unmarshal(msg, &column); err != nil {
		return 0, err
	}
	if len(column) == 0 {
		return 0, errors.New("empty column")
	}
	keys := make([]string, 0, len(column))
	for k := range column {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return column[keys[0]], nil
}
