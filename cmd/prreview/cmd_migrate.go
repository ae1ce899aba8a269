package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prreview/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply Repository Store schema migrations (spec §3, C1)",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.URL, logger)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		logger.Info("migrate: schema up to date")
		return nil
	},
}
