package embeddings

import (
	"context"

	"go.uber.org/zap"
)

// Config selects and configures an embeddings backend, the same provider
// switch codeNERD's embedding.Config expresses for its Ollama/GenAI choice.
type Config struct {
	Provider string // "local" or "genai"
	APIKey   string
	Model    string
	Dims     int32
}

// New builds the configured Engine, falling back to the always-available
// local engine if the remote backend cannot be constructed — embeddings
// must never block startup per spec.md §4.4's failure policy.
func New(ctx context.Context, cfg Config, logger *zap.Logger) Engine {
	switch cfg.Provider {
	case "genai":
		engine, err := NewGenAIEngine(ctx, cfg.APIKey, cfg.Model, cfg.Dims, logger)
		if err != nil {
			if logger != nil {
				logger.Warn("embeddings: falling back to local engine", zap.Error(err))
			}
			return newLocalEngine()
		}
		return engine
	default:
		return newLocalEngine()
	}
}
