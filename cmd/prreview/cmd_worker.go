package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"prreview/internal/analyzer"
	"prreview/internal/codehost"
	"prreview/internal/embeddings"
	"prreview/internal/llmclient"
	"prreview/internal/queue"
	"prreview/internal/store"
	"prreview/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Task Worker draining the queue (spec §4.7, C7)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		ch, err := codehost.New(cfg.CodeHost.Token, cfg.CodeHost.APIURL, logger)
		if err != nil {
			return fmt.Errorf("building code-host client: %w", err)
		}

		llm := llmclient.New(llmclient.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}, logger)

		embedEngine := embeddings.New(ctx, embeddings.Config{
			Provider: cfg.Embed.Provider,
			APIKey:   cfg.Embed.APIKey,
			Model:    cfg.Embed.Model,
		}, logger)
		cachedEngine := embeddings.NewCachedEngine(embedEngine, st)
		detector := embeddings.NewDetector(cachedEngine)

		az := analyzer.New(llm, detector)

		w := worker.New(st, q, ch, az, logger, worker.Config{
			MaxRetries:  cfg.Server.MaxRetries,
			TaskTimeout: cfg.Server.TaskTimeout,
		})

		logger.Info("worker: starting")
		err = w.Run(ctx)
		if err != nil && ctx.Err() != nil {
			logger.Info("worker: shutting down")
			return nil
		}
		return err
	},
}
