package clustering

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"caterpillar/internal/logger"
)

// LouvainConfig holds configuration for graph community clustering
type LouvainConfig struct {
	Resolution     float64 // Higher values produce more, smaller communities
	Neighbors      int     // k of the k-nearest-neighbour graph
	MinClusterSize int     // Smaller communities are reported as Noise
	Metric         string  // "euclidean" or "cosine"

	// Source orders the node moves. Nil draws from the global generator, so
	// only a seeded Source makes fits reproducible.
	Source rand.Source
}

// DefaultLouvainConfig returns standard-resolution defaults
func DefaultLouvainConfig() LouvainConfig {
	return LouvainConfig{
		Resolution:     1.0,
		Neighbors:      10,
		MinClusterSize: 5,
		Metric:         MetricEuclidean,
	}
}

// LouvainClusterer builds a weighted k-nearest-neighbour graph over the rows
// and partitions it by modularity. Edge weights are 1/(1+distance), so close
// neighbours bind more strongly.
type LouvainClusterer struct {
	config LouvainConfig
	data   [][]float64
	log    *slog.Logger
}

// NewLouvainClusterer creates a new Louvain clusterer
func NewLouvainClusterer(config LouvainConfig) (*LouvainClusterer, error) {
	if !(config.Resolution > 0) {
		return nil, fmt.Errorf("resolution must be positive, got %v", config.Resolution)
	}
	if config.Neighbors < 1 {
		return nil, fmt.Errorf("neighbours must be positive, got %d", config.Neighbors)
	}
	if config.MinClusterSize < 1 {
		return nil, fmt.Errorf("min cluster size must be positive, got %d", config.MinClusterSize)
	}
	if _, err := distanceFor(config.Metric); err != nil {
		return nil, err
	}
	return &LouvainClusterer{config: config, log: logger.Get()}, nil
}

// AddData replaces the rows to be clustered
func (l *LouvainClusterer) AddData(features [][]float64) {
	l.data = features
}

// Fit partitions the current rows. Labels are numbered by each community's
// first row.
func (l *LouvainClusterer) Fit() ([]int, error) {
	n := len(l.data)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n == 0 {
		return labels, nil
	}

	distance, err := distanceFor(l.config.Metric)
	if err != nil {
		return nil, err
	}

	g := l.buildGraph(distance)
	if g.Edges().Len() == 0 {
		l.log.Warn("No edges in neighbour graph", "points", n)
		return labels, nil
	}

	reduced := community.Modularize(g, l.config.Resolution, l.config.Source)
	communities := reduced.Communities()

	var members [][]int
	for _, comm := range communities {
		if len(comm) < l.config.MinClusterSize {
			continue
		}
		ids := make([]int, len(comm))
		for k, node := range comm {
			ids[k] = int(node.ID())
		}
		sort.Ints(ids)
		members = append(members, ids)
	}
	sort.Slice(members, func(i, j int) bool { return members[i][0] < members[j][0] })

	for label, ids := range members {
		for _, id := range ids {
			labels[id] = label
		}
	}

	l.log.Debug("Louvain fit complete",
		"points", n,
		"communities", len(communities),
		"clusters", len(members),
		"modularity", community.Q(g, communities, l.config.Resolution))
	return labels, nil
}

func (l *LouvainClusterer) buildGraph(distance func(a, b []float64) float64) *simple.WeightedUndirectedGraph {
	n := len(l.data)
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(int64(i)))
	}

	k := min(l.config.Neighbors, n-1)
	type neighbour struct {
		idx  int
		dist float64
	}
	candidates := make([]neighbour, 0, n-1)
	for i := 0; i < n; i++ {
		candidates = candidates[:0]
		for j := 0; j < n; j++ {
			if j != i {
				candidates = append(candidates, neighbour{j, distance(l.data[i], l.data[j])})
			}
		}
		sort.Slice(candidates, func(a, b int) bool { return candidates[a].dist < candidates[b].dist })

		for _, c := range candidates[:k] {
			if g.WeightedEdge(int64(i), int64(c.idx)) != nil {
				continue
			}
			g.SetWeightedEdge(simple.WeightedEdge{
				F: simple.Node(int64(i)),
				T: simple.Node(int64(c.idx)),
				W: 1 / (1 + c.dist),
			})
		}
	}
	return g
}
