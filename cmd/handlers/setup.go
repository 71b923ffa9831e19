package handlers

import (
	"fmt"
	"math/rand/v2"

	"caterpillar/internal/clustering"
	"caterpillar/internal/config"
	"caterpillar/internal/core"
	"caterpillar/internal/dataset"
	"caterpillar/internal/sampling"
	"caterpillar/internal/table"
	"caterpillar/internal/trainer"
	"caterpillar/internal/transform"
)

// newRand seeds a generator from the configured seed; stream separates
// generators that share one seed.
func newRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, stream))
}

// newDataset builds the empty dataset the trainer reloads on every resample
func newDataset(cfg *config.Config, rng *rand.Rand) (trainer.Dataset, error) {
	transforms, err := transform.Parse(cfg.Dataset.Transforms, rng)
	if err != nil {
		return nil, err
	}
	opts := dataset.Options{
		Features:    cfg.Dataset.Features,
		LabelColumn: cfg.Dataset.LabelColumn,
		Transforms:  transforms,
	}

	switch cfg.Dataset.Kind {
	case "contrast":
		positivePercent := cfg.Dataset.PositivePercent
		return dataset.NewContrastDataset(dataset.Empty(), dataset.ContrastOptions{
			Options:         opts,
			PositivePercent: &positivePercent,
			Rand:            rng,
		})
	case "cluster", "":
		return dataset.NewClusterDataset(dataset.Empty(), opts)
	}
	return nil, fmt.Errorf("unknown dataset kind %q", cfg.Dataset.Kind)
}

// newTrainer wires the configured sampler, data location and fold layout around model and ds
func newTrainer(cfg *config.Config, model clustering.Model, ds trainer.Dataset, rng *rand.Rand) *trainer.Trainer {
	opts := trainer.Options{
		Catalog:          cfg.Data.Catalog,
		DataRoot:         cfg.Data.Root,
		Extension:        cfg.Data.Extension,
		SampleSize:       cfg.Trainer.SampleSize,
		ValSize:          cfg.Trainer.ValSize,
		KFold:            cfg.Trainer.KFold,
		TrainEpochs:      cfg.Trainer.TrainEpochs,
		EvalEpochs:       cfg.Trainer.EvalEpochs,
		SilhouetteSample: cfg.Trainer.SilhouetteSample,
		Sampler: &sampling.SpaceSampler{
			Radius:     cfg.Sampler.Radius,
			RadiusSun:  cfg.Sampler.RadiusSun,
			ZRange:     cfg.Sampler.ZRange,
			SampleSize: cfg.Trainer.SampleSize,
			Rand:       rng,
		},
		Source: table.Auto{},
		Rand:   rng,
	}
	if len(opts.Catalog) == 0 {
		opts.Catalog = nil
	}
	opts.Filter = rowFilter(cfg.Dataset)
	return trainer.New(model, ds, opts)
}

// rowFilter keeps stars whose filter column is below the threshold, e.g.
// redshiftstar < 2. Nil when no column is configured.
func rowFilter(d config.Dataset) core.RowPredicate {
	if d.FilterColumn == "" {
		return nil
	}
	return table.Below(d.FilterColumn, d.FilterBelow)
}

// setup builds a dataset, model and trainer from the configuration
func setup(cfg *config.Config, model clustering.Config, stream uint64) (*trainer.Trainer, error) {
	rng := newRand(cfg.Trainer.Seed, stream)
	ds, err := newDataset(cfg, rng)
	if err != nil {
		return nil, err
	}
	model.Louvain.Source = rand.NewPCG(rng.Uint64(), rng.Uint64())
	m, err := clustering.New(model)
	if err != nil {
		return nil, err
	}
	return newTrainer(cfg, m, ds, rng), nil
}
