package clustering

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/mpraski/clusters"

	"caterpillar/internal/logger"
)

// DBSCANConfig holds configuration for DBSCAN clustering
type DBSCANConfig struct {
	MinPts  int     // Neighbours required for a core point
	Eps     float64 // Neighbourhood radius in embedding space
	Workers int     // Parallel neighbourhood workers; 0 uses every CPU
	Metric  string  // "euclidean" or "cosine"
}

// DefaultDBSCANConfig returns conservative defaults for normalized features
func DefaultDBSCANConfig() DBSCANConfig {
	return DBSCANConfig{
		MinPts: 10,
		Eps:    0.05,
		Metric: MetricEuclidean,
	}
}

// DBSCANClusterer runs DBSCAN over the rows handed to AddData
type DBSCANClusterer struct {
	config DBSCANConfig
	data   [][]float64
	log    *slog.Logger
}

// NewDBSCANClusterer creates a new DBSCAN clusterer
func NewDBSCANClusterer(config DBSCANConfig) (*DBSCANClusterer, error) {
	if config.MinPts < 1 {
		return nil, fmt.Errorf("min points must be positive, got %d", config.MinPts)
	}
	if !(config.Eps > 0) {
		return nil, fmt.Errorf("eps must be positive, got %v", config.Eps)
	}
	if _, err := distanceFor(config.Metric); err != nil {
		return nil, err
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return &DBSCANClusterer{config: config, log: logger.Get()}, nil
}

// AddData replaces the rows to be clustered
func (d *DBSCANClusterer) AddData(features [][]float64) {
	d.data = features
}

// Fit clusters the current rows. Negative library guesses are reported as Noise.
func (d *DBSCANClusterer) Fit() ([]int, error) {
	if len(d.data) == 0 {
		return []int{}, nil
	}

	distance, err := distanceFor(d.config.Metric)
	if err != nil {
		return nil, err
	}

	c, err := clusters.DBSCAN(d.config.MinPts, d.config.Eps, d.config.Workers, distance)
	if err != nil {
		return nil, fmt.Errorf("failed to create DBSCAN clusterer: %w", err)
	}
	if err := c.Learn(d.data); err != nil {
		return nil, fmt.Errorf("DBSCAN clustering failed: %w", err)
	}

	guesses := c.Guesses()
	labels := make([]int, len(guesses))
	for i, g := range guesses {
		if g < 0 {
			labels[i] = Noise
		} else {
			labels[i] = g
		}
	}

	d.log.Debug("DBSCAN fit complete", "points", len(d.data), "noise", countNoise(labels))
	return labels, nil
}
