/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"caterpillar/internal/config"
	"caterpillar/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "caterpillar",
		Short: "Cross-validated clustering of stellar streams in caterpillar halos.",
		Long: `caterpillar trains and evaluates embedding + density-clustering models on
labeled caterpillar simulation halos.

Each halo is a star table (labeled_<id>_all.db or .csv[.zst]) with a companion
labeled_<id>_all_norm.json holding per-feature scales. Every epoch draws a
fresh spatial resample around a solar-like position, clusters it, and scores
the clusters against the ground-truth cluster ids.

Examples:
  # Show the validation folds
  caterpillar folds

  # Run full k-fold cross-validation
  caterpillar train

  # Evaluate two halos without training
  caterpillar evaluate 5320 94638

  # Sweep HDBSCAN min cluster size
  caterpillar sweep --sizes 10,20,40 --output sweep.json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.caterpillar.yaml)")

	rootCmd.AddCommand(NewFoldsCmd())
	rootCmd.AddCommand(NewTrainCmd())
	rootCmd.AddCommand(NewEvaluateCmd())
	rootCmd.AddCommand(NewSweepCmd())
	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewRunsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set, then configures logging.
func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	logger.Configure(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return nil
}
