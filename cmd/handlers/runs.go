package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"caterpillar/internal/config"
	"caterpillar/internal/logger"
	"caterpillar/internal/store"
)

// saveRun persists the report rows when store.dir is configured
func saveRun(ctx context.Context, cfg *config.Config, kind, runID string, started time.Time, rows []reportRow) error {
	if cfg.Store.Dir == "" {
		return nil
	}
	s, err := store.NewStore(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer s.Close()

	results := make([]store.Result, len(rows))
	for i, r := range rows {
		results[i] = store.Result{Label: r.Name, Metrics: r.Metrics}
	}
	run := store.Run{ID: runID, Kind: kind, StartedAt: started, Config: cfg}
	if err := s.SaveRun(ctx, run, results); err != nil {
		return fmt.Errorf("failed to save run %s: %w", runID, err)
	}
	logger.Debug("Run saved", "run", runID, "path", s.Path())
	return nil
}

// NewRunsCmd creates the runs command
func NewRunsCmd() *cobra.Command {
	var limit int
	var remove bool

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored runs or show one run",
		Long: `Without arguments list the most recent runs recorded in store.dir. With a run
id print every result of that run; --delete removes it instead.

Examples:
  caterpillar runs --limit 5
  caterpillar runs 3f2b8c1e-...
  caterpillar runs 3f2b8c1e-... --delete`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			if cfg.Store.Dir == "" {
				return errors.New("no results store configured; set store.dir")
			}
			s, err := store.NewStore(cfg.Store.Dir)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if len(args) == 1 {
				if remove {
					if err := s.DeleteRun(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
					return nil
				}
				results, err := s.Results(ctx, args[0])
				if err != nil {
					return err
				}
				rows := make([]reportRow, len(results))
				for i, r := range results {
					rows[i] = reportRow{Name: r.Label, Metrics: r.Metrics}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderReport("Run "+args[0], rows, nil))
				return nil
			}

			runs, err := s.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([]reportRow, len(runs))
			for i, r := range runs {
				name := fmt.Sprintf("%s %s %s", r.ID[:min(8, len(r.ID))], r.Kind, r.StartedAt.Local().Format("2006-01-02 15:04"))
				rows[i] = reportRow{Name: name, Metrics: r.Total}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReport("Recent runs", rows, nil))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the given run")

	return cmd
}
