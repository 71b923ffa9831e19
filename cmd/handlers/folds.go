package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"caterpillar/internal/config"
)

// NewFoldsCmd creates the folds command
func NewFoldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folds",
		Short: "Show the shuffled catalog and its validation folds",
		Long: `Shuffle the halo catalog with the configured seed and print the validation
ids of every fold. With trainer.seed set the layout is reproducible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			t, err := setup(cfg, cfg.Model.ClusteringConfig(), 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderFolds(t.Folds()))
			return nil
		},
	}
}
