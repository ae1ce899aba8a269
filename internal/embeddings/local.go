package embeddings

import (
	"context"
	"crypto/sha256"
	"math"
)

// localEngine is a deterministic, dependency-free default: it hashes each
// preprocessed text into a fixed-width vector so the pipeline always has
// something to embed against, the way codeNERD falls back to its local
// Ollama engine when no cloud credentials are configured. prreview has no
// local model server to shell out to, so the fallback is a stable hash
// projection instead of an HTTP call, but it plays the same role: encoding
// never fails for lack of configuration.
type localEngine struct {
	dims int
}

// newLocalEngine builds the always-available default backend.
func newLocalEngine() *localEngine {
	return &localEngine{dims: DefaultDimensions}
}

func (e *localEngine) Encode(_ context.Context, text string) []float32 {
	return hashVector(text, e.dims)
}

func (e *localEngine) EncodeBatch(_ context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, e.dims)
	}
	return out
}

func (e *localEngine) Dimensions() int { return e.dims }

func (e *localEngine) Name() string { return "local-hash" }

// hashVector expands a SHA-256 digest of text into a dims-length float32
// vector, repeating and perturbing the digest to fill out the width, then
// L2-normalizes it so cosine similarity behaves sensibly.
func hashVector(text string, dims int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dims)
	for i := 0; i < dims; i++ {
		b := sum[i%len(sum)]
		shift := byte((i / len(sum)) + 1)
		vec[i] = float32(b^shift) - 128
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
