package handlers

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"caterpillar/internal/config"
	"caterpillar/internal/logger"
	"caterpillar/internal/quality"
)

// NewTrainCmd creates the train command
func NewTrainCmd() *cobra.Command {
	var fold int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run k-fold cross-validation over the halo catalog",
		Long: `Train on every halo outside a validation fold, then evaluate the fold.

Without --fold every fold runs in order and the first failure aborts the run.

Examples:
  # Full cross-validation
  caterpillar train

  # Only the third fold
  caterpillar train --fold 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return trainRun(cmd, fold)
		},
	}

	cmd.Flags().IntVarP(&fold, "fold", "f", -1, "Run a single fold (0-based); -1 runs all folds")

	return cmd
}

func trainRun(cmd *cobra.Command, fold int) error {
	cfg := config.Get()
	runID := uuid.NewString()
	started := time.Now()
	log := logger.Get().With("run", runID)

	t, err := setup(cfg, cfg.Model.ClusteringConfig(), 0)
	if err != nil {
		return err
	}
	folds := t.Folds()

	var rows []reportRow
	if fold >= 0 {
		if fold >= len(folds) {
			return fmt.Errorf("fold %d out of range, have %d folds", fold, len(folds))
		}
		log.Info("Training single fold", "fold", fold, "val_ids", folds[fold])
		m, err := t.TrainSet(cmd.Context(), folds[fold])
		if err != nil {
			return err
		}
		rows = append(rows, reportRow{Name: fmt.Sprintf("fold %d", fold), Metrics: m})
	} else {
		log.Info("Starting cross-validation", "folds", len(folds))
		results, err := t.CrossValidate(cmd.Context())
		if err != nil {
			return err
		}
		for f, m := range results {
			rows = append(rows, reportRow{Name: fmt.Sprintf("fold %d", f), Metrics: m})
		}
	}

	metrics := make([]quality.Metrics, len(rows))
	for i, r := range rows {
		metrics[i] = r.Metrics
	}
	total := reportRow{Name: "total", Metrics: quality.Aggregate(metrics...)}
	log.Info("Training complete", "metrics", total.Metrics.String())

	fmt.Fprintln(cmd.OutOrStdout(), renderReport("Cross-validation "+runID[:8], rows, &total))
	return saveRun(cmd.Context(), cfg, "train", runID, started, rows)
}
