package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDocsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List ingested documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return fmt.Errorf("initializing engine: %w", err)
			}
			defer engine.Close()

			docs, err := engine.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(docs)
			}

			if len(docs) == 0 {
				fmt.Println("No documents ingested yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILE\tSTATUS\tCHUNKS\tUPDATED")
			for _, d := range docs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
					d.ID, d.Filename, d.Status, d.Chunks,
					d.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
