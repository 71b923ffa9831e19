package dataset

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"caterpillar/internal/core"
	"caterpillar/internal/features"
	"caterpillar/internal/transform"
)

// DefaultPositivePercent is the partner-resampling probability used when none is configured.
const DefaultPositivePercent = 0.3

// ClusterIndex maps each cluster id to the ordered indices of its records.
// It is built once and never modified.
type ClusterIndex struct {
	ids     []int
	members map[int][]int
}

// BuildClusterIndex groups record indices by label.
func BuildClusterIndex(labels []int) ClusterIndex {
	members := make(map[int][]int)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ClusterIndex{ids: ids, members: members}
}

// Len returns the number of clusters.
func (c ClusterIndex) Len() int {
	return len(c.ids)
}

// IDs returns the cluster ids in ascending order.
func (c ClusterIndex) IDs() []int {
	return append([]int(nil), c.ids...)
}

// Members returns the record indices of one cluster.
func (c ClusterIndex) Members(id int) []int {
	return append([]int(nil), c.members[id]...)
}

// Pair is one contrastive example: a query record and a sampled partner.
type Pair struct {
	Query        []float64
	Partner      []float64
	QueryLabel   int
	PartnerLabel int
}

// ContrastOptions configures a ContrastDataset.
type ContrastOptions struct {
	Options
	// PositivePercent is the probability that the partner's cluster is drawn
	// uniformly over all clusters instead of being the query's own cluster.
	// Nil selects DefaultPositivePercent; zero always pairs within the
	// query's own cluster.
	PositivePercent *float64
	// Rand drives partner sampling. Nil uses a randomly seeded generator.
	Rand *rand.Rand
}

// ContrastDataset produces query/partner pairs for contrastive training.
type ContrastDataset struct {
	records
	positivePercent float64
	rng             *rand.Rand
	index           ClusterIndex
}

// NewContrastDataset normalizes src with opts.Divisors, falling back to
// features.ContrastDefaults, and builds the cluster index. Labels are required.
func NewContrastDataset(src Source, opts ContrastOptions) (*ContrastDataset, error) {
	if !opts.wantsLabels() {
		return nil, ErrLabelsRequired
	}
	positivePercent := DefaultPositivePercent
	if opts.PositivePercent != nil {
		positivePercent = *opts.PositivePercent
	}
	if !(positivePercent >= 0 && positivePercent <= 1) {
		return nil, fmt.Errorf("positive percent must be in [0, 1], got %v", positivePercent)
	}

	d := &ContrastDataset{
		records:         records{opts: opts.Options, defaults: features.ContrastDefaults()},
		positivePercent: positivePercent,
		rng:             opts.Rand,
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if err := d.populate(src, opts.Labels, d.divisors(core.Divisors{})); err != nil {
		return nil, err
	}
	d.index = BuildClusterIndex(d.labels)
	return d, nil
}

// PositivePercent returns the configured partner-resampling probability.
func (d *ContrastDataset) PositivePercent() float64 {
	return d.positivePercent
}

// Index returns the cluster index.
func (d *ContrastDataset) Index() ClusterIndex {
	return d.index
}

// Get returns record i paired with a sampled partner. With probability
// PositivePercent the partner cluster is chosen uniformly among all clusters
// (possibly the query's own); otherwise it is the query's cluster. The partner
// is drawn with replacement and may be i itself.
func (d *ContrastDataset) Get(i int) (Pair, error) {
	if d.index.Len() == 0 {
		return Pair{}, ErrNoClusters
	}
	if err := d.checkIndex(i); err != nil {
		return Pair{}, err
	}

	clusterID := d.labels[i]
	if d.rng.Float64() < d.positivePercent {
		clusterID = d.index.ids[d.rng.IntN(len(d.index.ids))]
	}
	members := d.index.members[clusterID]
	partner := members[d.rng.IntN(len(members))]

	return Pair{
		Query:        d.opts.Transforms.ApplyOne(d.features[i]),
		Partner:      d.opts.Transforms.ApplyOne(d.features[partner]),
		QueryLabel:   d.labels[i],
		PartnerLabel: d.labels[partner],
	}, nil
}

// GlobalTransform applies p to each cluster's whole feature block, cluster by
// cluster, and stores the result. A nil pipeline uses the configured transforms.
// The change is permanent; repeated calls compound.
func (d *ContrastDataset) GlobalTransform(p transform.Pipeline) {
	if p == nil {
		p = d.opts.Transforms
	}
	if len(p) == 0 {
		return
	}
	for _, id := range d.index.ids {
		members := d.index.members[id]
		block := make([][]float64, len(members))
		for k, idx := range members {
			block[k] = d.features[idx]
		}
		block = p.Apply(block)
		for k, idx := range members {
			d.features[idx] = block[k]
		}
	}
}

// Load replaces the dataset contents with a new table and rebuilds the cluster index.
// The table must carry Options.LabelColumn.
func (d *ContrastDataset) Load(t *core.Table, divisors core.Divisors) error {
	if d.opts.LabelColumn == "" {
		return ErrLabelsRequired
	}
	if err := d.populate(FromTable(t), nil, d.divisors(divisors)); err != nil {
		return err
	}
	d.index = BuildClusterIndex(d.labels)
	return nil
}
