package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"caterpillar/internal/clustering"
	"caterpillar/internal/transform"
)

// Config holds all application configuration
type Config struct {
	Logging Logging `mapstructure:"logging"`
	Data    Data    `mapstructure:"data"`
	Dataset Dataset `mapstructure:"dataset"`
	Sampler Sampler `mapstructure:"sampler"`
	Trainer Trainer `mapstructure:"trainer"`
	Model   Model   `mapstructure:"model"`
	Sweep   Sweep   `mapstructure:"sweep"`
	Store   Store   `mapstructure:"store"`
}

// Logging holds logger configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Data locates the labeled halo tables
type Data struct {
	Root      string `mapstructure:"root"`
	Extension string `mapstructure:"extension"`
	Catalog   []int  `mapstructure:"catalog"` // Empty uses the built-in halo list
}

// Dataset configures the feature schema and per-access transforms
type Dataset struct {
	Kind            string   `mapstructure:"kind"` // cluster or contrast
	Features        []string `mapstructure:"features"`
	LabelColumn     string   `mapstructure:"label_column"`
	Transforms      string   `mapstructure:"transforms"` // e.g. "jitter:0.05,scale:0.1"
	PositivePercent float64  `mapstructure:"positive_percent"`
	FilterColumn    string   `mapstructure:"filter_column"` // Empty keeps every star
	FilterBelow     float64  `mapstructure:"filter_below"`  // Keep stars with filter_column strictly below this
}

// Sampler holds the spatial resampling window
type Sampler struct {
	Radius    float64 `mapstructure:"radius"`
	RadiusSun float64 `mapstructure:"radius_sun"`
	ZRange    float64 `mapstructure:"z_range"`
}

// Trainer holds cross-validation settings
type Trainer struct {
	SampleSize       int    `mapstructure:"sample_size"`
	ValSize          int    `mapstructure:"val_size"`
	KFold            int    `mapstructure:"k_fold"`
	TrainEpochs      int    `mapstructure:"train_epochs"`
	EvalEpochs       int    `mapstructure:"eval_epochs"`
	Seed             uint64 `mapstructure:"seed"` // 0 draws a random seed
	SilhouetteSample int    `mapstructure:"silhouette_sample"`
}

// Model selects the embedding and clustering algorithm
type Model struct {
	Strategy   string  `mapstructure:"strategy"`
	Embedding  string  `mapstructure:"embedding"`
	Components int     `mapstructure:"components"`
	Metric     string  `mapstructure:"metric"`
	HDBSCAN    HDBSCAN `mapstructure:"hdbscan"`
	DBSCAN     DBSCAN  `mapstructure:"dbscan"`
	Louvain    Louvain `mapstructure:"louvain"`
}

// HDBSCAN holds HDBSCAN parameters
type HDBSCAN struct {
	MinClusterSize int `mapstructure:"min_cluster_size"`
}

// DBSCAN holds DBSCAN parameters
type DBSCAN struct {
	MinPts  int     `mapstructure:"min_pts"`
	Eps     float64 `mapstructure:"eps"`
	Workers int     `mapstructure:"workers"`
}

// Louvain holds k-nearest-neighbour graph community parameters
type Louvain struct {
	Resolution     float64 `mapstructure:"resolution"`
	Neighbors      int     `mapstructure:"neighbors"`
	MinClusterSize int     `mapstructure:"min_cluster_size"`
}

// Sweep holds the HDBSCAN parameter sweep settings
type Sweep struct {
	MinClusterSizes []int  `mapstructure:"min_cluster_sizes"`
	Concurrency     int    `mapstructure:"concurrency"`
	Output          string `mapstructure:"output"`
}

// Store locates the results database; an empty Dir disables persistence
type Store struct {
	Dir string `mapstructure:"dir"`
}

// ClusteringConfig converts the model section into a clustering.Config
func (m Model) ClusteringConfig() clustering.Config {
	c := clustering.DefaultConfig()
	c.Strategy = clustering.ClusteringStrategy(m.Strategy)
	c.Embedding = clustering.EmbeddingKind(m.Embedding)
	c.Components = m.Components
	c.HDBSCAN.MinClusterSize = m.HDBSCAN.MinClusterSize
	c.HDBSCAN.Metric = m.Metric
	c.DBSCAN.MinPts = m.DBSCAN.MinPts
	c.DBSCAN.Eps = m.DBSCAN.Eps
	c.DBSCAN.Workers = m.DBSCAN.Workers
	c.DBSCAN.Metric = m.Metric
	c.Louvain.Resolution = m.Louvain.Resolution
	c.Louvain.Neighbors = m.Louvain.Neighbors
	c.Louvain.MinClusterSize = m.Louvain.MinClusterSize
	c.Louvain.Metric = m.Metric
	return c
}

var globalConfig *Config

// Load loads the configuration from defaults, .env, the config file and the environment
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".caterpillar")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("CATERPILLAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	postProcessConfig(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// DefaultFeatures is the kinematic and chemical feature schema used for clustering
var DefaultFeatures = []string{
	"estar", "lzstar", "lxstar", "lystar", "jzstar", "jrstar", "eccstar", "rstar",
	"feH", "mgfe", "xstar", "ystar", "zstar", "vxstar", "vystar", "vzstar",
	"vrstar", "vphistar", "vthetastar",
}

func setDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("data.root", "../data/caterpillar/labeled_caterpillar_data")
	viper.SetDefault("data.extension", ".db")

	viper.SetDefault("dataset.kind", "cluster")
	viper.SetDefault("dataset.features", DefaultFeatures)
	viper.SetDefault("dataset.label_column", "cluster_id")
	viper.SetDefault("dataset.transforms", "")
	viper.SetDefault("dataset.positive_percent", 0.3)
	viper.SetDefault("dataset.filter_column", "")
	viper.SetDefault("dataset.filter_below", 0)

	viper.SetDefault("sampler.radius", 0.005)
	viper.SetDefault("sampler.radius_sun", 0.0082)
	viper.SetDefault("sampler.z_range", 0.016/1000)

	viper.SetDefault("trainer.sample_size", 10000)
	viper.SetDefault("trainer.val_size", 4)
	viper.SetDefault("trainer.k_fold", 6)
	viper.SetDefault("trainer.train_epochs", 10)
	viper.SetDefault("trainer.eval_epochs", 10)
	viper.SetDefault("trainer.seed", 0)
	viper.SetDefault("trainer.silhouette_sample", 0)

	viper.SetDefault("model.strategy", "hdbscan")
	viper.SetDefault("model.embedding", "identity")
	viper.SetDefault("model.components", 3)
	viper.SetDefault("model.metric", "euclidean")
	viper.SetDefault("model.hdbscan.min_cluster_size", 20)
	viper.SetDefault("model.dbscan.min_pts", 10)
	viper.SetDefault("model.dbscan.eps", 0.05)
	viper.SetDefault("model.dbscan.workers", 0)
	viper.SetDefault("model.louvain.resolution", 1.0)
	viper.SetDefault("model.louvain.neighbors", 10)
	viper.SetDefault("model.louvain.min_cluster_size", 5)

	viper.SetDefault("sweep.min_cluster_sizes", []int{5, 10, 20, 40, 80})
	viper.SetDefault("sweep.concurrency", 4)
	viper.SetDefault("sweep.output", "")

	viper.SetDefault("store.dir", "")
}

func postProcessConfig(config *Config) {
	if config.Data.Root != "" {
		config.Data.Root = expandPath(config.Data.Root)
	}
	if config.Store.Dir != "" {
		config.Store.Dir = expandPath(config.Store.Dir)
	}
	if config.Sweep.Output != "" {
		config.Sweep.Output = expandPath(config.Sweep.Output)
	}
	if config.Data.Extension != "" && !strings.HasPrefix(config.Data.Extension, ".") {
		config.Data.Extension = "." + config.Data.Extension
	}
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	config.Logging.Format = strings.ToLower(config.Logging.Format)
	config.Model.Strategy = strings.ToLower(config.Model.Strategy)
	config.Model.Embedding = strings.ToLower(config.Model.Embedding)
	config.Dataset.Kind = strings.ToLower(config.Dataset.Kind)
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func validateConfig(config *Config) error {
	var errors []string

	positive := map[string]int{
		"trainer.val_size":     config.Trainer.ValSize,
		"trainer.k_fold":       config.Trainer.KFold,
		"trainer.train_epochs": config.Trainer.TrainEpochs,
		"trainer.eval_epochs":  config.Trainer.EvalEpochs,
	}
	for _, key := range []string{"trainer.val_size", "trainer.k_fold", "trainer.train_epochs", "trainer.eval_epochs"} {
		if positive[key] <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got %d", key, positive[key]))
		}
	}
	if config.Trainer.SampleSize < 0 {
		errors = append(errors, fmt.Sprintf("trainer.sample_size must be non-negative, got %d", config.Trainer.SampleSize))
	}
	if !(config.Sampler.Radius > 0) {
		errors = append(errors, fmt.Sprintf("sampler.radius must be positive, got %v", config.Sampler.Radius))
	}

	switch config.Logging.Format {
	case "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("Unknown logging format: %s. Supported: json, text", config.Logging.Format))
	}

	switch config.Dataset.Kind {
	case "cluster", "contrast":
	default:
		errors = append(errors, fmt.Sprintf("Unknown dataset kind: %s. Supported: cluster, contrast", config.Dataset.Kind))
	}
	if len(config.Dataset.Features) == 0 {
		errors = append(errors, "dataset.features must name at least one feature")
	}
	if config.Dataset.PositivePercent < 0 || config.Dataset.PositivePercent > 1 {
		errors = append(errors, fmt.Sprintf("dataset.positive_percent must be in [0, 1], got %v", config.Dataset.PositivePercent))
	}
	if _, err := transform.Parse(config.Dataset.Transforms, nil); err != nil {
		errors = append(errors, fmt.Sprintf("dataset.transforms: %v", err))
	}

	if _, err := clustering.New(config.Model.ClusteringConfig()); err != nil {
		errors = append(errors, fmt.Sprintf("model: %v", err))
	}

	for _, size := range config.Sweep.MinClusterSizes {
		if size < 2 {
			errors = append(errors, fmt.Sprintf("sweep.min_cluster_sizes must be at least 2, got %d", size))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
