// Command prreview is the PR analysis service: an HTTP submission API, a
// pool of task workers, and CLI conveniences over the same persisted
// state. The root-command-plus-subcommands split (serve/worker/migrate/
// status) follows codeNERD's cmd/nerd root command structure.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prreview/internal/config"
	"prreview/internal/logging"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "prreview",
	Short: "PR analysis service: submission API, workers, and status tooling",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, statusCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if logger != nil {
		logging.Sync(logger)
	}
}
