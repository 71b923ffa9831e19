package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"caterpillar/internal/logger"
	"caterpillar/internal/table"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	var key string
	var radius bool

	cmd := &cobra.Command{
		Use:   "ingest <source> <database>",
		Short: "Copy a star table into a SQLite halo database",
		Long: `Read a CSV (optionally zstd-compressed) or SQLite star table and write it to
a SQLite database under the given table key, replacing any existing table.

Examples:
  # Convert an exported halo
  caterpillar ingest labeled_5320_all.csv.zst labeled_5320_all.db

  # Store the galactocentric radius alongside the positions
  caterpillar ingest labeled_5320_all.csv labeled_5320_all.db --radius`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ingestRun(cmd, args[0], args[1], key, radius)
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "star", "Table key to write")
	cmd.Flags().BoolVar(&radius, "radius", false, "Add an rstar column computed from the positions")

	return cmd
}

func ingestRun(cmd *cobra.Command, source, database, key string, radius bool) error {
	src, err := table.Open(source)
	if err != nil {
		return err
	}
	t, err := src.Read(cmd.Context(), source, key)
	if err != nil {
		return err
	}
	if radius {
		if t, err = table.EnsureRadius(t); err != nil {
			return err
		}
	}
	if err := table.Ingest(cmd.Context(), database, key, t); err != nil {
		return err
	}

	logger.Info("Ingested star table", "source", source, "database", database, "rows", t.Len(), "columns", len(t.Columns))
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d rows x %d columns into %s (%s)\n", t.Len(), len(t.Columns), database, key)
	return nil
}
