package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Cache is the content-hash store an Engine can consult before re-encoding
// a block, implemented by *store.Store (duck-typed: embeddings does not
// import the store package to avoid a cycle, since cmd/prreview wires the
// two together directly).
type Cache interface {
	GetEmbedding(ctx context.Context, contentHash string) (vector []float32, ok bool, err error)
	PutEmbedding(ctx context.Context, contentHash string, vector []float32) error
}

// cachedEngine wraps an Engine so identical preprocessed blocks — common
// across a PR's files, and across PRs that touch the same vendored or
// boilerplate code — are encoded once, per spec.md §4.4.
type cachedEngine struct {
	inner Engine
	cache Cache
}

// NewCachedEngine wraps inner with cache. A nil cache makes this a no-op,
// so callers that have no store handy can skip wiring a cache.
func NewCachedEngine(inner Engine, cache Cache) Engine {
	if cache == nil {
		return inner
	}
	return &cachedEngine{inner: inner, cache: cache}
}

func (c *cachedEngine) Name() string    { return c.inner.Name() }
func (c *cachedEngine) Dimensions() int { return c.inner.Dimensions() }

func (c *cachedEngine) Encode(ctx context.Context, text string) []float32 {
	hash := contentHash(text)
	if vec, ok, err := c.cache.GetEmbedding(ctx, hash); err == nil && ok {
		return vec
	}
	vec := c.inner.Encode(ctx, text)
	_ = c.cache.PutEmbedding(ctx, hash, vec)
	return vec
}

func (c *cachedEngine) EncodeBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if vec, ok, err := c.cache.GetEmbedding(ctx, contentHash(t)); err == nil && ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out
	}
	vecs := c.inner.EncodeBatch(ctx, missTexts)
	for k, idx := range missIdx {
		out[idx] = vecs[k]
		_ = c.cache.PutEmbedding(ctx, contentHash(texts[idx]), vecs[k])
	}
	return out
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
