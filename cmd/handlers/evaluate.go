package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"caterpillar/internal/config"
	"caterpillar/internal/quality"
)

// NewEvaluateCmd creates the evaluate command
func NewEvaluateCmd() *cobra.Command {
	var epochs int

	cmd := &cobra.Command{
		Use:   "evaluate <halo-id>...",
		Short: "Cluster halos with an untrained model and score the result",
		Long: `Evaluate clusters each halo over several fresh resamples and reports the
per-halo and aggregate metrics. No training step runs, so this measures the
clusterer on the raw normalized features (or an unfitted embedding).

Examples:
  caterpillar evaluate 5320
  caterpillar evaluate 5320 94638 --epochs 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return evaluateRun(cmd, ids, epochs)
		},
	}

	cmd.Flags().IntVarP(&epochs, "epochs", "e", 0, "Resamples per halo (default trainer.eval_epochs)")

	return cmd
}

func evaluateRun(cmd *cobra.Command, ids []int, epochs int) error {
	cfg := config.Get()
	started := time.Now()
	if epochs <= 0 {
		epochs = cfg.Trainer.EvalEpochs
	}

	t, err := setup(cfg, cfg.Model.ClusteringConfig(), 0)
	if err != nil {
		return err
	}

	rows := make([]reportRow, 0, len(ids))
	metrics := make([]quality.Metrics, 0, len(ids))
	for _, id := range ids {
		m, err := t.Evaluate(cmd.Context(), id, epochs)
		if err != nil {
			return err
		}
		rows = append(rows, reportRow{Name: strconv.Itoa(id), Metrics: m})
		metrics = append(metrics, m)
	}
	total := reportRow{Name: "total", Metrics: quality.Aggregate(metrics...)}

	fmt.Fprintln(cmd.OutOrStdout(), renderReport("Evaluation", rows, &total))
	return saveRun(cmd.Context(), cfg, "evaluate", uuid.NewString(), started, rows)
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, len(args))
	for i, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid halo id %q: %w", a, err)
		}
		ids[i] = id
	}
	return ids, nil
}
