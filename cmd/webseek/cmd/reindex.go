package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the inverted and vector indexes from stored documents",
		Long: `Re-tokenize and re-embed every stored document. Use after changing
chunking or embedding settings, or to repair a corrupted index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg, logger, flags.offline)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.indexer.ReindexAll(ctx)
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			a.suggest.Invalidate()
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d documents\n", n)
			return nil
		},
	}

	return cmd
}
