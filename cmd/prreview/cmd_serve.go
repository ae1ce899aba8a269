package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prreview/internal/httpapi"
	"prreview/internal/metrics"
	"prreview/internal/queue"
	"prreview/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP submission API (spec §6)",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Database.URL, logger)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()

		q, err := queue.New(cfg.Queue.BrokerURL, logger, cfg.Server.RetryBaseDur)
		if err != nil {
			return fmt.Errorf("connecting to queue: %w", err)
		}
		defer q.Stop()

		srv := httpapi.New(st, q, logger, cfg.Server.MaxRetries)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/", srv.Router())

		logger.Info("serve: listening", zap.String("addr", cfg.Server.Addr))
		return http.ListenAndServe(cfg.Server.Addr, mux)
	},
}
