package clustering

import (
	"fmt"
	"strings"
)

// ClusteringStrategy represents which clustering algorithm to use
type ClusteringStrategy string

const (
	StrategyHDBSCAN ClusteringStrategy = "hdbscan"
	StrategyDBSCAN  ClusteringStrategy = "dbscan"
	StrategyLouvain ClusteringStrategy = "louvain"
)

// EmbeddingKind represents which embedding runs before clustering
type EmbeddingKind string

const (
	EmbeddingIdentity EmbeddingKind = "identity"
	EmbeddingPCA      EmbeddingKind = "pca"
)

// Config selects and parameterizes a model
type Config struct {
	Strategy   ClusteringStrategy
	Embedding  EmbeddingKind
	Components int // PCA components
	HDBSCAN    HDBSCANConfig
	DBSCAN     DBSCANConfig
	Louvain    LouvainConfig
}

// DefaultConfig returns HDBSCAN over the raw normalized features
func DefaultConfig() Config {
	return Config{
		Strategy:   StrategyHDBSCAN,
		Embedding:  EmbeddingIdentity,
		Components: 3,
		HDBSCAN:    DefaultHDBSCANConfig(),
		DBSCAN:     DefaultDBSCANConfig(),
		Louvain:    DefaultLouvainConfig(),
	}
}

// NewClusterer builds the clusterer named by the strategy
func NewClusterer(config Config) (Clusterer, error) {
	switch ClusteringStrategy(strings.ToLower(string(config.Strategy))) {
	case StrategyHDBSCAN, "":
		return NewHDBSCANClusterer(config.HDBSCAN)
	case StrategyDBSCAN:
		return NewDBSCANClusterer(config.DBSCAN)
	case StrategyLouvain:
		return NewLouvainClusterer(config.Louvain)
	}
	return nil, fmt.Errorf("unknown clustering strategy %q", config.Strategy)
}

// NewEmbedder builds the embedder named by the config
func NewEmbedder(config Config) (Embedder, error) {
	switch EmbeddingKind(strings.ToLower(string(config.Embedding))) {
	case EmbeddingIdentity, "":
		return IdentityEmbedder{}, nil
	case EmbeddingPCA:
		return NewPCAEmbedder(config.Components)
	}
	return nil, fmt.Errorf("unknown embedding %q", config.Embedding)
}

// New builds a complete model from the config
func New(config Config) (*Pipeline, error) {
	embedder, err := NewEmbedder(config)
	if err != nil {
		return nil, err
	}
	clusterer, err := NewClusterer(config)
	if err != nil {
		return nil, err
	}
	return NewPipeline(embedder, clusterer), nil
}
