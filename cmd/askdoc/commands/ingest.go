package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest one or more documents",
		Long: `Parse, chunk, index, and graph one or more documents.

Supported formats: txt, md, pdf, xlsx. Other formats are stored and
tracked without text extraction.

Examples:
  askdoc ingest report.pdf
  askdoc ingest notes.txt data.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return fmt.Errorf("initializing engine: %w", err)
			}
			defer engine.Close()

			failed := 0
			for _, path := range args {
				res, err := engine.IngestFile(cmd.Context(), path)
				if err != nil {
					fmt.Printf("✗ %s: %v\n", path, err)
					failed++
					continue
				}
				switch res.Status {
				case "exists":
					fmt.Printf("- %s: already ingested (doc %d)\n", res.Filename, res.DocID)
				default:
					fmt.Printf("✓ %s: %d chunks, %d entities, %d relations (doc %d)\n",
						res.Filename, res.Chunks, res.Entities, res.Triples, res.DocID)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
