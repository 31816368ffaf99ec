package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webseek/webseek/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	searchType string
	page       int
	size       int
	format     string // "text", "json"
}

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Run one query against the local index and print the results.

Examples:
  webseek search "goroutine scheduler"
  webseek search "transformer attention" --type semantic --size 5
  webseek search "rust borrow checker" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg, logger, flags.offline)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.engine.Search(ctx, query, opts.searchType, opts.page, opts.size)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Fprintf(out, "%d results for %q (%s, %d ms)\n\n",
				resp.Total, resp.Query, resp.Type, resp.TookMS)
			for i, res := range resp.Results {
				rank := (resp.PageNum-1)*resp.PageSize + i + 1
				fmt.Fprintf(out, "%2d. %s\n    %s\n    score %.4f\n",
					rank, res.Title, res.URL, res.Score)
				if snippet := stripMarkTags(res.Snippet); snippet != "" {
					fmt.Fprintf(out, "    %s\n", snippet)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.searchType, "type", "t", search.TypeHybrid, "Search type: bm25, semantic, hybrid")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Result page")
	cmd.Flags().IntVarP(&opts.size, "size", "n", 10, "Results per page")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

var markTagReplacer = strings.NewReplacer("<mark>", "", "</mark>", "")

func stripMarkTags(s string) string {
	return markTagReplacer.Replace(s)
}
