package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and index statistics",
		Args:  cobra.NoArgs,
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

			stats, err := a.store.GetIndexStats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			fmt.Fprintf(out, "documents:  %d (%d indexed)\n", stats.TotalDocuments, stats.IndexedDocuments)
			fmt.Fprintf(out, "terms:      %d\n", stats.TotalTerms)
			fmt.Fprintf(out, "chunks:     %d\n", stats.TotalChunks)
			fmt.Fprintf(out, "avg length: %.1f tokens\n", stats.AvgDocLength)
			fmt.Fprintf(out, "jobs:       %d pending, %d running\n", stats.PendingJobs, stats.RunningJobs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}
