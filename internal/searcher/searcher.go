package searcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/anthropic-exercise/codeintel/internal/config"
	"github.com/anthropic-exercise/codeintel/internal/embedder"
	"github.com/anthropic-exercise/codeintel/internal/metadata"
	"github.com/anthropic-exercise/codeintel/internal/relstore"
	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// maxOverFetch is the ceiling on the over-fetch multiplier: k' = min(k*4, 100).
const maxOverFetch = 100

// overFetchMultiplier is the over-fetch factor applied before rerank.
const overFetchMultiplier = 4

// Options carries the per-call knobs the search pipeline and the
// similarity/impact operations accept, all optional.
type Options struct {
	// Threshold, if non-nil, overrides the adaptive threshold (step 3).
	Threshold *float64

	// FindSimilar, combined with a query_text that resolves to a known
	// path, switches step 1 to the "find similar file" mode: q_vec
	// becomes the average of that file's chunk embeddings instead of an
	// embedding of the query text itself.
	FindSimilar bool

	// EnrichContext requests step 6's surrounding-context enrichment
	// (neighbour chunk names via the Relationship Store's siblings).
	EnrichContext bool

	// UseCache enables the bounded, TTL'd query-response cache.
	UseCache bool
	CacheTTL time.Duration
}

// cacheEntry is one cached Search response.
type cacheEntry struct {
	results   []types.SearchResult
	expiresAt time.Time
}

// Engine is the Search Engine. It is stateless across calls except
// for the bounded query-response cache and query history, both pure
// optimisations: removing either changes no scored result beyond the
// threshold effect the history drives.
type Engine struct {
	vectors       vectorstore.Store
	relationships relstore.Store
	meta          *metadata.Manager
	embed         embedder.Embedder
	weights       config.Weights
	baseThreshold float64
	history       *queryHistory

	cacheMu sync.RWMutex
	cache   *lru.Cache[string, *cacheEntry]
}

// New builds a Search Engine from its dependencies and the ProjectIndex
// config's weights and default similarity threshold.
func New(vectors vectorstore.Store, relationships relstore.Store, meta *metadata.Manager, embed embedder.Embedder, cfg config.Config) *Engine {
	cache, _ := lru.New[string, *cacheEntry](1000)
	return &Engine{
		vectors:       vectors,
		relationships: relationships,
		meta:          meta,
		embed:         embed,
		weights:       cfg.Weights,
		baseThreshold: cfg.SimilarityThreshold,
		history:       newQueryHistory(200),
		cache:         cache,
	}
}

// normalizeQuery trims whitespace and collapses internal runs of it so two
// queries differing only in spacing share a cache key and history
// entry.
func normalizeQuery(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Search runs the full search pipeline for queryText and returns up to k
// results ordered by descending FinalScore, ties broken by ChunkID.
func (e *Engine) Search(ctx context.Context, queryText string, k int, filter vectorstore.Filter, opts Options) ([]types.SearchResult, error) {
	if k <= 0 {
		k = 10
	}
	query := normalizeQuery(queryText)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", types.ErrConfig)
	}

	if opts.UseCache {
		if cached, ok := e.lookupCache(query, k, filter, opts); ok {
			return cached, nil
		}
	}

	qVec, err := e.resolveQueryVector(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	threshold := e.baseThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	} else {
		threshold = adaptiveThreshold(e.baseThreshold, query, e.history)
	}

	kPrime := k * overFetchMultiplier
	if kPrime > maxOverFetch {
		kPrime = maxOverFetch
	}
	if kPrime < k {
		kPrime = k
	}

	candidates, err := e.vectors.Query(ctx, qVec, kPrime, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: vector query: %v", types.ErrStore, err)
	}

	symbolLike := symbolLikeQuery(query)
	results := e.rerank(candidates, symbolLike)

	var kept []types.SearchResult
	for _, r := range results {
		if r.FinalScore < threshold {
			continue
		}
		kept = append(kept, r)
		if len(kept) == k {
			break
		}
	}

	e.history.record(query, len(kept) > 0)

	if opts.EnrichContext {
		e.enrich(ctx, kept)
	}

	if opts.UseCache {
		e.storeCache(query, k, filter, opts, kept)
	}

	return kept, nil
}

// resolveQueryVector resolves the query embedding: if FindSimilar is set
// and query looks like a known project-relative path, q_vec is the
// average of that file's chunk embeddings; otherwise q_vec is the
// Embedder's embedding of the query text itself.
func (e *Engine) resolveQueryVector(ctx context.Context, query string, opts Options) ([]float32, error) {
	if opts.FindSimilar {
		if rec, ok := e.meta.Get(filepath.ToSlash(query)); ok && len(rec.ChunkIDs) > 0 {
			vectors, err := e.vectors.GetVectors(ctx, rec.ChunkIDs)
			if err != nil {
				return nil, fmt.Errorf("%w: fetch vectors for %s: %v", types.ErrStore, query, err)
			}
			if avg := averageVectors(vectors); avg != nil {
				return avg, nil
			}
		}
	}

	resp, err := e.embed.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", types.ErrEmbedding, err)
	}
	return resp.Vector, nil
}

// averageVectors returns the element-wise mean of the given vectors,
// or nil if vectors is empty.
func averageVectors(vectors map[string][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	var dim int
	for _, v := range vectors {
		dim = len(v)
		break
	}
	sum := make([]float32, dim)
	for _, v := range vectors {
		for i, x := range v {
			if i < dim {
				sum[i] += x
			}
		}
	}
	n := float32(len(vectors))
	for i := range sum {
		sum[i] /= n
	}
	return sum
}

// rerank applies the weighted re-rank formula to every candidate
// and sorts descending by FinalScore, ties broken ascending by id, per
// the Search Engine's ordering guarantee.
func (e *Engine) rerank(candidates []vectorstore.Result, symbolLike bool) []types.SearchResult {
	w := e.weights
	out := make([]types.SearchResult, 0, len(candidates))
	for _, cand := range candidates {
		c := cand.Metadata
		if c == nil {
			continue
		}
		qs := qualityScore(c.Quality)
		sb := structuralBonus(c.Kind, symbolLike)
		bp := boilerplatePenalty(c)
		final := w.Vector*cand.Score + w.Quality*qs + w.Structural*sb - w.Boilerplate*bp

		out = append(out, types.SearchResult{
			ChunkID:            c.ID,
			VectorScore:        cand.Score,
			QualityScore:       qs,
			StructuralBonus:    sb,
			BoilerplatePenalty: bp,
			FinalScore:         final,
			Chunk:              c,
			File: &types.FileInfo{
				Path:      c.FilePath,
				Language:  c.Language,
				StartLine: c.StartLine,
				EndLine:   c.EndLine,
			},
			Content: c.Content,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// enrich fills in surrounding-context for each result: for
// each result, the names of its containment/similarity siblings via
// the Relationship Store, joined into Context.
func (e *Engine) enrich(ctx context.Context, results []types.SearchResult) {
	for i := range results {
		r := &results[i]
		siblings, err := e.relationships.Siblings(ctx, r.ChunkID, 5)
		if err != nil || len(siblings) == 0 {
			continue
		}
		ids := make([]string, 0, len(siblings))
		for _, s := range siblings {
			ids = append(ids, s.TargetChunkID)
		}
		chunks, err := e.vectors.Get(ctx, ids)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(chunks))
		for _, c := range chunks {
			if c.Name != "" {
				names = append(names, c.Name)
			}
		}
		if len(names) > 0 {
			r.Context = fmt.Sprintf("%s: %s", r.File.Path, strings.Join(names, ", "))
		}
	}
}

// SearchSimilar ranks by the target chunk's own stored embedding,
// excluding itself from results.
func (e *Engine) SearchSimilar(ctx context.Context, chunkID string, k int, opts Options) ([]types.SearchResult, error) {
	if k <= 0 {
		k = 10
	}
	vectors, err := e.vectors.GetVectors(ctx, []string{chunkID})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch vector for %s: %v", types.ErrStore, chunkID, err)
	}
	vec, ok := vectors[chunkID]
	if !ok {
		return nil, fmt.Errorf("%w: no embedding stored for %s", types.ErrIntegrity, chunkID)
	}

	kPrime := (k + 1) * overFetchMultiplier
	if kPrime > maxOverFetch {
		kPrime = maxOverFetch
	}
	candidates, err := e.vectors.Query(ctx, vec, kPrime, vectorstore.Filter{})
	if err != nil {
		return nil, fmt.Errorf("%w: vector query: %v", types.ErrStore, err)
	}

	filtered := make([]vectorstore.Result, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != chunkID {
			filtered = append(filtered, c)
		}
	}

	results := e.rerank(filtered, false)
	threshold := e.baseThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	var kept []types.SearchResult
	for _, r := range results {
		if r.FinalScore < threshold {
			continue
		}
		kept = append(kept, r)
		if len(kept) == k {
			break
		}
	}
	if opts.EnrichContext {
		e.enrich(ctx, kept)
	}
	return kept, nil
}

// cacheKey deterministically encodes the cacheable shape of a Search
// call.
func cacheKey(query string, k int, filter vectorstore.Filter, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%v|%v", query, k, filter, opts.FindSimilar)
	if opts.Threshold != nil {
		fmt.Fprintf(&b, "|t=%.4f", *opts.Threshold)
	}
	return b.String()
}

func (e *Engine) lookupCache(query string, k int, filter vectorstore.Filter, opts Options) ([]types.SearchResult, bool) {
	key := cacheKey(query, k, filter, opts)
	e.cacheMu.RLock()
	entry, ok := e.cache.Get(key)
	e.cacheMu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		e.cacheMu.Lock()
		e.cache.Remove(key)
		e.cacheMu.Unlock()
		return nil, false
	}
	return entry.results, true
}

func (e *Engine) storeCache(query string, k int, filter vectorstore.Filter, opts Options, results []types.SearchResult) {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	key := cacheKey(query, k, filter, opts)
	e.cacheMu.Lock()
	e.cache.Add(key, &cacheEntry{results: results, expiresAt: time.Now().Add(ttl)})
	e.cacheMu.Unlock()
}

// InvalidateCache purges the query-response cache, e.g. after a reindex
// changes the Vector Store's contents.
func (e *Engine) InvalidateCache() {
	e.cacheMu.Lock()
	e.cache.Purge()
	e.cacheMu.Unlock()
}
