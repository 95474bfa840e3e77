package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportGraphCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export-graph",
		Short: "Export the entity-relation graph as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return fmt.Errorf("initializing engine: %w", err)
			}
			defer engine.Close()

			path, err := engine.ExportGraph(cmd.Context(), out)
			if err != nil {
				return err
			}

			stats, err := engine.GraphStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d nodes and %d edges to %s\n", stats.Nodes, stats.Edges, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default <data-dir>/graph.json)")
	return cmd
}
