package handlers

import (
	"fmt"
	"os"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"caterpillar/internal/clustering"
	"caterpillar/internal/config"
	"caterpillar/internal/logger"
	"caterpillar/internal/quality"
	"caterpillar/internal/trainer"
)

// SweepResult is the score of one HDBSCAN setting
type SweepResult struct {
	MinClusterSize int             `json:"min_cluster_size"`
	Metrics        quality.Metrics `json:"metrics"`
}

// SweepReport is the JSON document written by the sweep command
type SweepReport struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Embedding string        `json:"embedding"`
	Metric    string        `json:"metric"`
	IDs       []int         `json:"ids"`
	Epochs    int           `json:"epochs"`
	Results   []SweepResult `json:"results"`
}

// NewSweepCmd creates the sweep command
func NewSweepCmd() *cobra.Command {
	var sizes []int
	var output string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "sweep [halo-id]...",
		Short: "Score HDBSCAN over a grid of minimum cluster sizes",
		Long: `Evaluate HDBSCAN for every minimum cluster size in the grid. Each setting gets
its own dataset, model and random stream, so settings run concurrently.
Without halo ids the whole catalog is evaluated.

Examples:
  caterpillar sweep --sizes 10,20,40
  caterpillar sweep 5320 --output sweep.json --concurrency 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			cfg := config.Get()
			if len(sizes) == 0 {
				sizes = cfg.Sweep.MinClusterSizes
			}
			if output == "" {
				output = cfg.Sweep.Output
			}
			if concurrency <= 0 {
				concurrency = cfg.Sweep.Concurrency
			}
			return sweepRun(cmd, cfg, ids, sizes, concurrency, output)
		},
	}

	cmd.Flags().IntSliceVar(&sizes, "sizes", nil, "Minimum cluster sizes to try (default sweep.min_cluster_sizes)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the JSON report to this file")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Settings evaluated in parallel (default sweep.concurrency)")

	return cmd
}

func sweepRun(cmd *cobra.Command, cfg *config.Config, ids, sizes []int, concurrency int, output string) error {
	if len(sizes) == 0 {
		return fmt.Errorf("no minimum cluster sizes to sweep")
	}
	if len(ids) == 0 {
		ids = cfg.Data.Catalog
		if len(ids) == 0 {
			ids = trainer.DefaultCatalog
		}
	}

	report := SweepReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Embedding: cfg.Model.Embedding,
		Metric:    cfg.Model.Metric,
		IDs:       ids,
		Epochs:    cfg.Trainer.EvalEpochs,
		Results:   make([]SweepResult, len(sizes)),
	}
	log := logger.Get().With("run", report.RunID)
	log.Info("Starting sweep", "sizes", sizes, "ids", len(ids), "concurrency", concurrency)

	g, ctx := errgroup.WithContext(cmd.Context())
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, size := range sizes {
		g.Go(func() error {
			mc := cfg.Model.ClusteringConfig()
			mc.Strategy = clustering.StrategyHDBSCAN
			mc.HDBSCAN.MinClusterSize = size

			t, err := setup(cfg, mc, uint64(i+1))
			if err != nil {
				return fmt.Errorf("min cluster size %d: %w", size, err)
			}
			m, err := t.EvaluateAll(ctx, ids)
			if err != nil {
				return fmt.Errorf("min cluster size %d: %w", size, err)
			}
			log.Info("Sweep setting done", "min_cluster_size", size, "metrics", m.String())
			report.Results[i] = SweepResult{MinClusterSize: size, Metrics: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rows := make([]reportRow, len(report.Results))
	for i, r := range report.Results {
		rows[i] = reportRow{Name: fmt.Sprintf("mcs=%d", r.MinClusterSize), Metrics: r.Metrics}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderReport("HDBSCAN sweep "+report.RunID[:8], rows, nil))
	if err := saveRun(cmd.Context(), cfg, "sweep", report.RunID, report.StartedAt, rows); err != nil {
		return err
	}

	if output == "" {
		return nil
	}
	data, err := gojson.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sweep report: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sweep report: %w", err)
	}
	log.Info("Sweep report written", "path", output)
	return nil
}
