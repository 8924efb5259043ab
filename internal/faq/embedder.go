package faq

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 4096

// TextEmbedder is the embedding endpoint of an LLM provider.
type TextEmbedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder wraps a provider with an LRU cache. Repeated FAQ questions and
// reindexing unchanged entries then cost no API calls.
type Embedder struct {
	client TextEmbedder
	model  string
	cache  *lru.Cache[string, []float32]
}

func NewEmbedder(client TextEmbedder, model string, cacheSize int) (*Embedder, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &Embedder{client: client, model: model, cache: cache}, nil
}

// Embed satisfies chromem.EmbeddingFunc.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}
	v, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, v)
	return v, nil
}
