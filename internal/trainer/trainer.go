// Package trainer drives k-fold cross-validated training and evaluation of a
// clustering model over the caterpillar simulation catalog.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strconv"

	"caterpillar/internal/clustering"
	"caterpillar/internal/core"
	"caterpillar/internal/features"
	"caterpillar/internal/logger"
	"caterpillar/internal/quality"
	"caterpillar/internal/sampling"
	"caterpillar/internal/table"
)

// DefaultCatalog lists the labeled caterpillar halos.
var DefaultCatalog = []int{
	1104787, 1130025, 1195075, 1195448, 1232164, 1268839, 1292085,
	1354437, 1387186, 1422331, 1422429, 1599988, 1631506, 1631582, 1725139,
	1725272, 196589, 264569, 388476, 447649, 5320, 581141, 581180, 65777, 795802,
	796175, 94638, 95289,
}

// Defaults
const (
	DefaultDataRoot    = "../data/caterpillar/labeled_caterpillar_data"
	DefaultExtension   = ".db"
	DefaultValSize     = 4
	DefaultKFold       = 6
	DefaultTrainEpochs = 10
	DefaultEvalEpochs  = 10
)

// Dataset is the mutable dataset the trainer reloads on every resample.
// Both dataset.ClusterDataset and dataset.ContrastDataset satisfy it.
type Dataset interface {
	Load(t *core.Table, divisors core.Divisors) error
	Features() [][]float64
	Labels() []int
}

// Embedded is implemented by models that expose the embedding of their last Fit.
type Embedded interface {
	Embeddings() [][]float64
}

// Options configures a Trainer. Zero fields take the package defaults.
type Options struct {
	Catalog     []int
	DataRoot    string
	Extension   string // Table file extension, e.g. ".db" or ".csv.zst"
	SampleSize  int
	ValSize     int
	KFold       int
	TrainEpochs int
	EvalEpochs  int

	// SilhouetteSample > 0 scores the silhouette of each evaluation run on at
	// most that many embedded points, when the model exposes its embeddings.
	SilhouetteSample int

	Sampler *sampling.SpaceSampler // Nil uses the default window with SampleSize
	Source  table.Source           // Nil dispatches on file extension
	Filter  core.RowPredicate      // Applied once to every loaded table
	Rand    *rand.Rand             // Drives the catalog shuffle and the default sampler
}

func (o Options) withDefaults() Options {
	if o.Catalog == nil {
		o.Catalog = DefaultCatalog
	}
	if o.DataRoot == "" {
		o.DataRoot = DefaultDataRoot
	}
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if o.ValSize <= 0 {
		o.ValSize = DefaultValSize
	}
	if o.KFold <= 0 {
		o.KFold = DefaultKFold
	}
	if o.TrainEpochs <= 0 {
		o.TrainEpochs = DefaultTrainEpochs
	}
	if o.EvalEpochs <= 0 {
		o.EvalEpochs = DefaultEvalEpochs
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Sampler == nil {
		o.Sampler = sampling.NewSpaceSampler(o.SampleSize, o.Rand)
	}
	if o.Source == nil {
		o.Source = table.Auto{}
	}
	return o
}

// Trainer runs train and evaluate passes over the catalog. It mutates the
// injected dataset in place and must not be shared between goroutines.
type Trainer struct {
	model   clustering.Model
	dataset Dataset
	opts    Options
	ids     []int
	folds   [][]int
	log     *slog.Logger
}

// New shuffles the catalog once and partitions it into validation folds.
func New(model clustering.Model, ds Dataset, opts Options) *Trainer {
	opts = opts.withDefaults()

	ids := slices.Clone(opts.Catalog)
	opts.Rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	t := &Trainer{
		model:   model,
		dataset: ds,
		opts:    opts,
		ids:     ids,
		log:     logger.Get(),
	}
	t.folds = PartitionFolds(ids, opts.KFold, opts.ValSize)
	for f, group := range t.folds {
		if len(group) < opts.ValSize {
			t.log.Warn("Validation fold truncated at end of catalog",
				"fold", f, "size", len(group), "val_size", opts.ValSize)
		}
	}
	return t
}

// PartitionFolds slices ids into k validation groups. Group f starts at
// floor(len(ids)/k)*f and holds valSize ids; groups overlap when valSize
// exceeds the stride and are truncated at the end of ids.
func PartitionFolds(ids []int, k, valSize int) [][]int {
	if k <= 0 {
		return nil
	}
	n := len(ids)
	stride := n / k
	folds := make([][]int, k)
	for f := range folds {
		start := min(stride*f, n)
		end := min(start+valSize, n)
		folds[f] = slices.Clone(ids[start:end])
	}
	return folds
}

// IDs returns the shuffled catalog.
func (t *Trainer) IDs() []int {
	return slices.Clone(t.ids)
}

// Folds returns the validation groups.
func (t *Trainer) Folds() [][]int {
	out := make([][]int, len(t.folds))
	for i, f := range t.folds {
		out[i] = slices.Clone(f)
	}
	return out
}

// Paths returns the table and normalization file paths of a catalog id.
func (t *Trainer) Paths(id int) (tablePath, normPath string) {
	name := "labeled_" + strconv.Itoa(id) + "_all"
	base := filepath.Join(t.opts.DataRoot, name)
	return base + t.opts.Extension, base + "_norm.json"
}

// load reads the table and its divisors for one id.
func (t *Trainer) load(ctx context.Context, id int) (*core.Table, core.Divisors, error) {
	tablePath, normPath := t.Paths(id)

	tbl, err := t.opts.Source.Read(ctx, tablePath, core.StarKey)
	if err != nil {
		return nil, core.Divisors{}, fmt.Errorf("failed to load table for %d: %w", id, err)
	}
	tbl, err = table.EnsureRadius(tbl)
	if err != nil {
		return nil, core.Divisors{}, fmt.Errorf("failed to derive radius for %d: %w", id, err)
	}
	if t.opts.Filter != nil {
		tbl = tbl.Filter(t.opts.Filter)
	}

	divisors, err := features.LoadNormFile(normPath)
	if err != nil {
		return nil, core.Divisors{}, fmt.Errorf("failed to load normalization for %d: %w", id, err)
	}
	return tbl, divisors, nil
}

// resample draws a fresh spatial window and hands it to the dataset and model.
func (t *Trainer) resample(tbl *core.Table, divisors core.Divisors) error {
	sample, err := t.opts.Sampler.Sample(tbl)
	if err != nil {
		return err
	}
	if err := t.dataset.Load(sample, divisors); err != nil {
		return err
	}
	t.model.AddData(t.dataset)
	return nil
}

// TrainStep trains the model on epochs fresh resamples of one id and returns
// the loss of each epoch.
func (t *Trainer) TrainStep(ctx context.Context, id, epochs int) ([]float64, error) {
	t.log.Info("Training", "id", id, "epochs", epochs)
	tbl, divisors, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}

	losses := make([]float64, 0, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return losses, err
		}
		if err := t.resample(tbl, divisors); err != nil {
			return losses, fmt.Errorf("train %d epoch %d: %w", id, epoch, err)
		}
		loss, err := t.model.Train()
		if err != nil {
			return losses, fmt.Errorf("train %d epoch %d: %w", id, epoch, err)
		}
		t.log.Info("Training run", "id", id, "epoch", epoch, "loss", loss)
		losses = append(losses, loss)
	}
	return losses, nil
}

// Evaluate clusters epochs fresh resamples of one id and returns the
// aggregate of the per-epoch metrics.
func (t *Trainer) Evaluate(ctx context.Context, id, epochs int) (quality.Metrics, error) {
	t.log.Info("Evaluating", "id", id, "epochs", epochs)
	tbl, divisors, err := t.load(ctx, id)
	if err != nil {
		return quality.Metrics{}, err
	}

	runs := make([]quality.Metrics, 0, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return quality.Metrics{}, err
		}
		if err := t.resample(tbl, divisors); err != nil {
			return quality.Metrics{}, fmt.Errorf("evaluate %d epoch %d: %w", id, epoch, err)
		}
		pred, err := t.model.Fit()
		if err != nil {
			return quality.Metrics{}, fmt.Errorf("evaluate %d epoch %d: %w", id, epoch, err)
		}
		m, err := quality.EvaluateClusters(pred, t.dataset.Labels())
		if err != nil {
			return quality.Metrics{}, fmt.Errorf("evaluate %d epoch %d: %w", id, epoch, err)
		}
		if t.opts.SilhouetteSample > 0 {
			if e, ok := t.model.(Embedded); ok {
				m.Silhouette = clustering.SampledSilhouette(e.Embeddings(), pred, t.opts.SilhouetteSample, t.opts.Rand)
			}
		}
		t.log.Debug("Cluster run", "id", id, "epoch", epoch, "metrics", m.String())
		runs = append(runs, m)
	}
	return quality.Aggregate(runs...), nil
}

// EvaluateAll evaluates every id independently and aggregates the results.
func (t *Trainer) EvaluateAll(ctx context.Context, ids []int) (quality.Metrics, error) {
	results := make([]quality.Metrics, 0, len(ids))
	for _, id := range ids {
		m, err := t.Evaluate(ctx, id, t.opts.EvalEpochs)
		if err != nil {
			return quality.Metrics{}, err
		}
		t.log.Info("Evaluated", "id", id, "metrics", m.String())
		results = append(results, m)
	}
	return quality.Aggregate(results...), nil
}

// TrainSet trains on every catalog id outside valIDs, then evaluates valIDs.
func (t *Trainer) TrainSet(ctx context.Context, valIDs []int) (quality.Metrics, error) {
	for _, id := range t.ids {
		if slices.Contains(valIDs, id) {
			continue
		}
		if _, err := t.TrainStep(ctx, id, t.opts.TrainEpochs); err != nil {
			return quality.Metrics{}, err
		}
	}
	m, err := t.EvaluateAll(ctx, valIDs)
	if err != nil {
		return quality.Metrics{}, err
	}
	t.log.Info("Fold complete", "val_ids", valIDs, "metrics", m.String())
	return m, nil
}

// CrossValidate runs TrainSet for every fold in order and returns one
// aggregate per fold. The first failing fold aborts the run.
func (t *Trainer) CrossValidate(ctx context.Context) ([]quality.Metrics, error) {
	results := make([]quality.Metrics, 0, len(t.folds))
	for f, valIDs := range t.folds {
		t.log.Info("Starting fold", "fold", f, "val_ids", valIDs)
		m, err := t.TrainSet(ctx, valIDs)
		if err != nil {
			return results, fmt.Errorf("fold %d: %w", f, err)
		}
		results = append(results, m)
	}
	return results, nil
}
