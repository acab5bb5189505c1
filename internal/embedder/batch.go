package embedder

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// normalisedModels lists embedding models whose provider already emits
// unit-length vectors, per the Embedder contract: models in this set
// skip the extra NormalizeVector pass because similarity then reduces to
// a plain dot product; everything else gets normalised explicitly so
// cosine similarity behaves consistently across providers.
var normalisedModels = map[string]bool{
	"bge":                true,
	"jina-embeddings-v3": true,
}

// BatchEmbedder wraps a provider Embedder with the content-hash
// deduplicating cache the Indexer relies on: texts sharing a
// content_hash invoke the underlying model at most once between them,
// and a model failure fails the whole batch atomically (no partial
// results reach the Vector Store).
type BatchEmbedder struct {
	provider  Embedder
	cache     *Cache
	normalise bool
}

// NewBatchEmbedder wraps provider with a dedup cache. If provider was
// itself constructed with a *Cache (as the providers in this package
// are), passing the same cache here keeps both levels under one LRU
// bound. The two levels key entries differently (providers by
// ComputeHash's SHA-256 hex, this type by the chunk content hash), so a
// text embedded through both occupies two cache slots.
func NewBatchEmbedder(provider Embedder, cache *Cache) *BatchEmbedder {
	if cache == nil {
		cache = NewCache(10000)
	}
	return &BatchEmbedder{
		provider:  provider,
		cache:     cache,
		normalise: !normalisedModels[provider.Model()],
	}
}

// contentHashKey renders a chunk content hash as the Cache's string key.
func contentHashKey(h [16]byte) string {
	return hex.EncodeToString(h[:])
}

// EmbedTexts embeds texts in input order, skipping the model entirely
// for any text whose content hash is already cached. On a model failure
// the whole call fails and no vectors are returned, per the Embedder's
// atomic-batch-failure contract.
func (b *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	hashes := make([][16]byte, len(texts))

	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		h := types.ContentHash(text)
		hashes[i] = h
		key := contentHashKey(h)
		if emb, ok := b.cache.Get(key); ok {
			vectors[i] = emb.Vector
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	resp, err := b.provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: missTexts})
	if err != nil {
		return nil, fmt.Errorf("%w: batch embedding failed, no partial results applied", ErrProviderFailed)
	}
	if len(resp.Embeddings) != len(missTexts) {
		return nil, fmt.Errorf("%w: provider returned %d embeddings for %d texts", ErrProviderFailed, len(resp.Embeddings), len(missTexts))
	}

	for j, emb := range resp.Embeddings {
		origIdx := missIdx[j]
		vec := emb.Vector
		if b.normalise {
			vec = NormalizeVector(vec)
		}
		vectors[origIdx] = vec

		key := contentHashKey(hashes[origIdx])
		b.cache.Set(key, &Embedding{
			Vector:    vec,
			Dimension: emb.Dimension,
			Provider:  emb.Provider,
			Model:     emb.Model,
			Hash:      key,
		})
	}

	return vectors, nil
}

// EmbedChunks is a convenience wrapper over EmbedTexts for callers
// holding types.Chunk values rather than raw strings.
func (b *BatchEmbedder) EmbedChunks(ctx context.Context, chunks []*types.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return b.EmbedTexts(ctx, texts)
}

// Dimension, Provider, Model, Close delegate to the wrapped provider so
// BatchEmbedder can itself satisfy a narrower subset of the Embedder
// interface where callers only need metadata.
func (b *BatchEmbedder) Dimension() int  { return b.provider.Dimension() }
func (b *BatchEmbedder) ProviderName() string { return b.provider.Provider() }
func (b *BatchEmbedder) Model() string   { return b.provider.Model() }
func (b *BatchEmbedder) Close() error    { return b.provider.Close() }
