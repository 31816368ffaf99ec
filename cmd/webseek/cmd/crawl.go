package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCrawlCmd(flags *rootFlags) *cobra.Command {
	var (
		configJSON string
		skipIndex  bool
	)

	cmd := &cobra.Command{
		Use:   "crawl <source>",
		Short: "Run a crawl job to completion",
		Long: `Crawl one source synchronously and index the new documents.

The source config is passed as JSON and matches what POST /api/v1/crawl
accepts. Examples:

  webseek crawl wikipedia --config '{"query": "golang", "maxPages": 10}'
  webseek crawl hackernews --config '{"listType": "top"}'
  webseek crawl reddit --config '{"subreddit": "golang"}'
  webseek crawl generic --config '{"urls": ["https://go.dev"], "maxDepth": 1}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			job, err := a.manager.Submit(ctx, args[0], json.RawMessage(configJSON))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "crawl job %s started\n", job.ID)

			if err := a.manager.Execute(ctx, job.ID); err != nil {
				return fmt.Errorf("crawl failed: %w", err)
			}

			done, err := a.store.GetJob(ctx, job.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "crawled %d pages, added %d documents\n",
				done.PagesCrawled, done.DocumentsAdded)

			if skipIndex {
				return nil
			}
			n, err := a.indexer.IndexNew(ctx)
			if err != nil {
				return fmt.Errorf("index failed: %w", err)
			}
			a.suggest.Invalidate()
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&configJSON, "config", "{}", "Source config as JSON")
	cmd.Flags().BoolVar(&skipIndex, "skip-index", false, "Crawl only; leave indexing to the background workers")

	return cmd
}
