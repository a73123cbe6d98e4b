package embedding

import (
	"context"
	"fmt"
)

// CachedEmbedder memoizes another Embedder by exact text.
type CachedEmbedder struct {
	inner Embedder
	cache *lru[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU cache of the given capacity.
// A capacity of zero or less disables caching.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: newLRU[string, []float32](capacity)}
}

// Embed returns the cached embedding for text or computes and stores it.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.get(text); ok {
		return cached, nil
	}
	emb, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.put(text, emb)
	return emb, nil
}

// EmbedBatch embeds only the texts missing from the cache, in a single inner batch call.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if cached, ok := e.cache.get(text); ok {
			embeddings[i] = cached
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return embeddings, nil
	}
	computed, err := e.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d texts", len(computed), len(missing))
	}
	for j, emb := range computed {
		embeddings[slots[j]] = emb
		e.cache.put(missing[j], emb)
	}
	return embeddings, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error {
	return e.inner.Close()
}
