package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc"
)

func newAskCmd() *cobra.Command {
	var (
		domain string
		role   string
		topK   int
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the ingested documents",
		Long: `Answer a question from the ingested corpus, combining the
entity-relation graph with vector retrieval.

Examples:
  askdoc ask "Who leads Apple?"
  askdoc ask --domain finance --role analyst "What were Q3 revenues?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return fmt.Errorf("initializing engine: %w", err)
			}
			defer engine.Close()

			question := strings.Join(args, " ")
			var opts []askdoc.AskOption
			if domain != "" {
				opts = append(opts, askdoc.WithDomain(domain))
			}
			if role != "" {
				opts = append(opts, askdoc.WithRole(role))
			}
			if topK > 0 {
				opts = append(opts, askdoc.WithTopK(topK))
			}

			ans, err := engine.Ask(cmd.Context(), question, opts...)
			if err != nil {
				return err
			}

			fmt.Println(ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Printf("\nSources: %s\n", strings.Join(ans.Sources, ", "))
			}
			fmt.Printf("Confidence: %.1f\n", ans.Confidence)
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Subject domain for the answer")
	cmd.Flags().StringVar(&role, "role", "", "Reader role for the answer")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of chunks to retrieve")
	return cmd
}
