package embeddings

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// genaiMaxBatch is the largest batch Google's EmbedContent API accepts in a
// single call; codeNERD's genai.go chunks larger batches for the same
// reason.
const genaiMaxBatch = 100

// genaiEngine embeds text remotely via Google's Gemini API, the cloud
// backend codeNERD's GenAIEngine wraps; adapted here to prreview's Engine
// interface and a configurable output width instead of the teacher's
// hardcoded 3072 dimensions, since spec.md §4.4 expects a fixed default of
// 384.
type genaiEngine struct {
	client *genai.Client
	model  string
	dims   int32
	logger *zap.Logger
}

// NewGenAIEngine builds the remote embeddings backend. Returns an error only
// for missing configuration; callers should fall back to the local engine
// rather than fail startup, per spec.md §4.4's "if model load fails at
// startup" failure policy.
func NewGenAIEngine(ctx context.Context, apiKey, model string, dims int32, logger *zap.Logger) (Engine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embeddings: genai api key not configured")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if dims <= 0 {
		dims = DefaultDimensions
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("embeddings: creating genai client: %w", err)
	}
	return &genaiEngine{client: client, model: model, dims: dims, logger: logger}, nil
}

func (e *genaiEngine) Encode(ctx context.Context, text string) []float32 {
	out, err := e.embedChunk(ctx, []string{text})
	if err != nil || len(out) == 0 {
		if e.logger != nil {
			e.logger.Warn("embeddings: genai encode failed, returning zero vector", zap.Error(err))
		}
		return make([]float32, e.dims)
	}
	return out[0]
}

func (e *genaiEngine) EncodeBatch(ctx context.Context, texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += genaiMaxBatch {
		end := start + genaiMaxBatch
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("embeddings: genai batch failed, zero-filling chunk", zap.Error(err))
			}
			for range texts[start:end] {
				out = append(out, make([]float32, e.dims))
			}
			continue
		}
		out = append(out, chunk...)
	}
	return out
}

func (e *genaiEngine) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	dims := e.dims
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: genai embed: %w", err)
	}
	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *genaiEngine) Dimensions() int { return int(e.dims) }

func (e *genaiEngine) Name() string { return fmt.Sprintf("genai:%s", e.model) }

func (e *genaiEngine) HealthCheck(ctx context.Context) error {
	_, err := e.embedChunk(ctx, []string{"healthcheck"})
	return err
}
