// Package cmd provides the CLI commands for WebSeek.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/webseek/webseek/internal/config"
	"github.com/webseek/webseek/internal/logging"
	"github.com/webseek/webseek/pkg/version"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
	offline    bool
}

// NewRootCmd creates the root command for the webseek CLI.
func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "webseek",
		Short: "Self-hosted web search platform",
		Long: `WebSeek crawls web sources into a local corpus and serves keyword,
semantic, and hybrid search over it, plus retrieval-augmented answers.

Run 'webseek serve' to start the API server, 'webseek crawl' to ingest
a source from the command line, and 'webseek search' for one-off queries.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("webseek version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "webseek.yaml", "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.offline, "offline", false, "Use static embeddings (skip the embedding model server)")

	cmd.AddCommand(newServeCmd(&flags))
	cmd.AddCommand(newCrawlCmd(&flags))
	cmd.AddCommand(newSearchCmd(&flags))
	cmd.AddCommand(newReindexCmd(&flags))
	cmd.AddCommand(newStatsCmd(&flags))
	cmd.AddCommand(newConfigCmd(&flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup resolves the effective configuration and installs the process logger.
func setup(flags *rootFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	logger := logging.Setup(logging.Config{Level: cfg.Log.Level})
	return cfg, logger, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
