package clustering

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/humilityai/hdbscan"

	"caterpillar/internal/logger"
)

// HDBSCANConfig holds configuration for HDBSCAN clustering
type HDBSCANConfig struct {
	MinClusterSize int    // Minimum number of stars to form a cluster
	Metric         string // "euclidean" or "cosine"
}

// DefaultHDBSCANConfig returns the settings used for caterpillar halos
func DefaultHDBSCANConfig() HDBSCANConfig {
	return HDBSCANConfig{
		MinClusterSize: 20,
		Metric:         MetricEuclidean,
	}
}

// HDBSCANClusterer runs HDBSCAN over the rows handed to AddData
type HDBSCANClusterer struct {
	config HDBSCANConfig
	data   [][]float64
	log    *slog.Logger
}

// NewHDBSCANClusterer creates a new HDBSCAN clusterer
func NewHDBSCANClusterer(config HDBSCANConfig) (*HDBSCANClusterer, error) {
	if config.MinClusterSize < 2 {
		return nil, fmt.Errorf("min cluster size must be at least 2, got %d", config.MinClusterSize)
	}
	if _, err := distanceFor(config.Metric); err != nil {
		return nil, err
	}
	return &HDBSCANClusterer{config: config, log: logger.Get()}, nil
}

// AddData replaces the rows to be clustered
func (h *HDBSCANClusterer) AddData(features [][]float64) {
	h.data = features
}

// Fit clusters the current rows. Points outside every cluster are labeled Noise.
func (h *HDBSCANClusterer) Fit() ([]int, error) {
	labels := make([]int, len(h.data))
	for i := range labels {
		labels[i] = Noise
	}

	// Too few points to form even one cluster
	if len(h.data) < h.config.MinClusterSize {
		return labels, nil
	}

	distance, err := distanceFor(h.config.Metric)
	if err != nil {
		return nil, err
	}

	clustering, err := hdbscan.NewClustering(h.data, h.config.MinClusterSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create HDBSCAN clusterer: %w", err)
	}
	clustering = clustering.OutlierDetection()

	if err := clustering.Run(distance, hdbscan.VarianceScore, true); err != nil {
		return nil, fmt.Errorf("HDBSCAN clustering failed: %w", err)
	}

	clusters := extractClusterData(clustering)
	for id, c := range clusters {
		for _, p := range c.Points {
			if p >= 0 && p < len(labels) {
				labels[p] = id
			}
		}
	}

	h.log.Debug("HDBSCAN fit complete",
		"points", len(h.data),
		"clusters", len(clusters),
		"noise", countNoise(labels))
	return labels, nil
}

// ClusterData holds extracted cluster information from HDBSCAN
type ClusterData struct {
	Centroid []float64
	Points   []int
}

// extractClusterData uses reflection to read cluster assignments from an HDBSCAN
// result; the library keeps its cluster type unexported.
func extractClusterData(clustering *hdbscan.Clustering) []ClusterData {
	v := reflect.ValueOf(clustering).Elem()
	clustersField := v.FieldByName("Clusters")
	if !clustersField.IsValid() || clustersField.Kind() != reflect.Slice {
		return nil
	}

	result := make([]ClusterData, clustersField.Len())
	for i := range result {
		clusterPtr := clustersField.Index(i)
		if clusterPtr.Kind() == reflect.Ptr {
			if clusterPtr.IsNil() {
				continue
			}
			clusterPtr = clusterPtr.Elem()
		}

		centroidField := clusterPtr.FieldByName("Centroid")
		if centroidField.IsValid() && centroidField.Kind() == reflect.Slice {
			centroid := make([]float64, centroidField.Len())
			for j := range centroid {
				centroid[j] = centroidField.Index(j).Float()
			}
			result[i].Centroid = centroid
		}

		pointsField := clusterPtr.FieldByName("Points")
		if pointsField.IsValid() && pointsField.Kind() == reflect.Slice {
			points := make([]int, pointsField.Len())
			for j := range points {
				points[j] = int(pointsField.Index(j).Int())
			}
			result[i].Points = points
		}
	}

	return result
}

func countNoise(labels []int) int {
	n := 0
	for _, l := range labels {
		if l == Noise {
			n++
		}
	}
	return n
}
