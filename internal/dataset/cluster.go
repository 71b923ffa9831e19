package dataset

import (
	"caterpillar/internal/core"
	"caterpillar/internal/features"
)

// Item is one record read from a ClusterDataset.
type Item struct {
	Features []float64
	Label    int
	HasLabel bool
}

// ClusterDataset is an indexable view over normalized features and optional labels.
// Transforms run on every Get, so repeated reads of one index may differ.
type ClusterDataset struct {
	records
}

// NewClusterDataset normalizes src with opts.Divisors, falling back to
// features.ClusterDefaults.
func NewClusterDataset(src Source, opts Options) (*ClusterDataset, error) {
	d := &ClusterDataset{records: records{opts: opts, defaults: features.ClusterDefaults()}}
	if err := d.populate(src, opts.Labels, d.divisors(core.Divisors{})); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the transformed features of record i and its label, if any.
func (d *ClusterDataset) Get(i int) (Item, error) {
	if err := d.checkIndex(i); err != nil {
		return Item{}, err
	}
	item := Item{Features: d.opts.Transforms.ApplyOne(d.features[i])}
	if d.labels != nil {
		item.Label = d.labels[i]
		item.HasLabel = true
	}
	return item, nil
}

// Load replaces the dataset contents with a new table. A zero divisors value
// keeps the configured table. Labels come from Options.LabelColumn.
func (d *ClusterDataset) Load(t *core.Table, divisors core.Divisors) error {
	return d.populate(FromTable(t), nil, d.divisors(divisors))
}
