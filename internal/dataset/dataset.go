// Package dataset exposes normalized stellar feature tables as indexable datasets.
package dataset

import (
	"errors"
	"fmt"
	"math"

	"caterpillar/internal/core"
	"caterpillar/internal/features"
	"caterpillar/internal/transform"
)

var (
	// ErrIndexOutOfRange is returned when a record index is outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrLabelMismatch is returned when the label count differs from the record count.
	ErrLabelMismatch = errors.New("label count does not match record count")
	// ErrLabelsRequired is returned when a dataset that needs labels gets none.
	ErrLabelsRequired = errors.New("labels are required")
	// ErrNoClusters is returned when pairing is requested on a dataset without clusters.
	ErrNoClusters = errors.New("dataset has no clusters")
	// ErrWidthMismatch is returned when a raw matrix row does not match the feature schema.
	ErrWidthMismatch = errors.New("feature row width does not match schema")
	// ErrInvalidLabel is returned when a label column holds a missing, infinite
	// or fractional value.
	ErrInvalidLabel = errors.New("invalid cluster label")
)

// Source is the raw input of a dataset: either a named table or a plain matrix
// whose columns are positionally aligned with Options.Features. The zero value
// is an empty source, used for datasets that are populated later through Load.
type Source struct {
	table  *core.Table
	matrix [][]float64
}

// FromTable wraps a named table. Feature and label columns are selected by name.
func FromTable(t *core.Table) Source {
	return Source{table: t}
}

// FromMatrix wraps a plain matrix. Values are taken positionally; divisors are
// still resolved by feature name.
func FromMatrix(raw [][]float64) Source {
	return Source{matrix: raw}
}

// Empty returns a source with no records.
func Empty() Source {
	return Source{}
}

// Options configures dataset construction.
type Options struct {
	// Features is the ordered feature schema.
	Features []string
	// LabelColumn names the table column holding cluster ids. Ignored when Labels is set.
	LabelColumn string
	// Labels supplies cluster ids directly.
	Labels []int
	// Divisors overrides the default normalization table.
	Divisors core.Divisors
	// Transforms are applied to every record on access.
	Transforms transform.Pipeline
}

func (o Options) wantsLabels() bool {
	return o.Labels != nil || o.LabelColumn != ""
}

// records is the normalized storage shared by ClusterDataset and ContrastDataset.
type records struct {
	opts     Options
	defaults core.Divisors
	features [][]float64
	labels   []int
}

func (r *records) divisors(override core.Divisors) core.Divisors {
	if !override.IsZero() {
		return override
	}
	if !r.opts.Divisors.IsZero() {
		return r.opts.Divisors
	}
	return r.defaults
}

// populate resolves the source into normalized features and re-based labels.
// explicit holds directly supplied labels and is only honored for the initial build.
func (r *records) populate(src Source, explicit []int, divisors core.Divisors) error {
	normalizer, err := features.NewNormalizer(r.opts.Features, divisors)
	if err != nil {
		return err
	}

	var raw [][]float64
	switch {
	case src.table != nil:
		selected, err := src.table.Select(r.opts.Features)
		if err != nil {
			return err
		}
		raw = selected.Rows
	default:
		for i, row := range src.matrix {
			if len(row) != len(r.opts.Features) {
				return fmt.Errorf("%w: row %d has %d values, schema has %d", ErrWidthMismatch, i, len(row), len(r.opts.Features))
			}
		}
		raw = src.matrix
	}

	normalized, err := normalizer.Apply(raw)
	if err != nil {
		return err
	}

	var labels []int
	switch {
	case explicit != nil:
		labels = append([]int(nil), explicit...)
	case r.opts.LabelColumn != "" && src.table != nil:
		column, err := src.table.Column(r.opts.LabelColumn)
		if err != nil {
			return err
		}
		labels = make([]int, len(column))
		for i, v := range column {
			if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
				return fmt.Errorf("%w: column %q row %d is %v", ErrInvalidLabel, r.opts.LabelColumn, i, v)
			}
			labels[i] = int(v)
		}
	case r.opts.LabelColumn != "" && src.matrix != nil:
		return fmt.Errorf("label column %q cannot be resolved against a raw matrix", r.opts.LabelColumn)
	}

	if labels != nil && len(labels) != len(normalized) {
		return fmt.Errorf("%w: %d labels for %d records", ErrLabelMismatch, len(labels), len(normalized))
	}

	r.features = normalized
	r.labels = Rebase(labels)
	return nil
}

func (r *records) checkIndex(i int) error {
	if i < 0 || i >= len(r.features) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(r.features))
	}
	return nil
}

// Len returns the number of records.
func (r *records) Len() int {
	return len(r.features)
}

// Features returns the stored normalized features. Callers must not modify them.
func (r *records) Features() [][]float64 {
	return r.features
}

// Labels returns the re-based labels, or nil for an unlabeled dataset.
func (r *records) Labels() []int {
	return r.labels
}

// HasLabels reports whether the dataset carries labels.
func (r *records) HasLabels() bool {
	return r.labels != nil
}

// Rebase shifts labels so that the smallest becomes zero. Nil stays nil.
func Rebase(labels []int) []int {
	if labels == nil {
		return nil
	}
	out := make([]int, len(labels))
	if len(labels) == 0 {
		return out
	}
	lowest := labels[0]
	for _, l := range labels[1:] {
		if l < lowest {
			lowest = l
		}
	}
	for i, l := range labels {
		out[i] = l - lowest
	}
	return out
}
