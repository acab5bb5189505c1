package searcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/internal/config"
	"github.com/anthropic-exercise/codeintel/internal/embedder"
	"github.com/anthropic-exercise/codeintel/internal/metadata"
	"github.com/anthropic-exercise/codeintel/internal/relstore"
	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// fakeEmbedder returns the vector registered for a piece of text via
// set, or a zero vector of the fixed test dimension otherwise, so a
// test can make a query resolve to an exact, predictable location in
// vector space without a real embedding provider.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{}}
}

func (f *fakeEmbedder) set(text string, vec []float32) { f.vectors[text] = vec }

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	vec, ok := f.vectors[req.Text]
	if !ok {
		vec = []float32{0, 0, 0, 0}
	}
	return &embedder.Embedding{Vector: vec, Dimension: len(vec), Provider: "fake", Model: "fake"}, nil
}

func (f *fakeEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		e, _ := f.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		out[i] = e
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "fake", Model: "fake"}, nil
}

func (f *fakeEmbedder) Dimension() int   { return 4 }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake" }
func (f *fakeEmbedder) Close() error     { return nil }

// testEngine wires a fresh Engine against real on-disk stores under
// t.TempDir(), mirroring internal/indexer's setupIndexer.
type testEngine struct {
	*Engine
	vectors vectorstore.Store
	rels    relstore.Store
	meta    *metadata.Manager
	embed   *fakeEmbedder
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	vectors, err := vectorstore.Open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	rels, err := relstore.Open(filepath.Join(t.TempDir(), "relationships.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rels.Close() })

	meta, err := metadata.Open(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)

	emb := newFakeEmbedder()
	cfg := config.Config{Weights: config.DefaultWeights, SimilarityThreshold: 0.3}

	return &testEngine{
		Engine:  New(vectors, rels, meta, emb, cfg),
		vectors: vectors,
		rels:    rels,
		meta:    meta,
		embed:   emb,
	}
}

func chunk(id, name string, kind types.ChunkKind) *types.Chunk {
	c := &types.Chunk{
		ID:        id,
		FilePath:  "pkg/" + name + ".go",
		StartLine: 1,
		EndLine:   3,
		Kind:      kind,
		Name:      name,
		Language:  "go",
		Content:   "func " + name + "() {}",
		Quality:   types.Quality{Grade: types.GradeA},
	}
	c.ComputeContentHash()
	return c
}

func TestSearchRanksByFinalScoreAndFiltersByThreshold(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	near := chunk("near", "Authenticate", types.KindFunction)
	far := chunk("far", "Unrelated", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: near, Vector: []float32{1, 0, 0, 0}},
		{Chunk: far, Vector: []float32{0, 1, 0, 0}},
	}))

	te.embed.set("user auth", []float32{1, 0, 0, 0})

	results, err := te.Search(ctx, "user auth", 10, vectorstore.Filter{}, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].ChunkID)
	assert.Equal(t, 1, results[0].Rank)
}

func TestSearchExplicitThresholdOverridesAdaptive(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	far := chunk("far", "Unrelated", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: far, Vector: []float32{0, 1, 0, 0}},
	}))
	te.embed.set("q", []float32{1, 0, 0, 0})

	zero := 0.0
	results, err := te.Search(ctx, "q", 10, vectorstore.Filter{}, Options{Threshold: &zero})
	require.NoError(t, err)
	require.Len(t, results, 1, "an explicit zero threshold admits even an orthogonal vector")
}

func TestSearchOrdersTiesByChunkID(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	b := chunk("b-chunk", "Bravo", types.KindFunction)
	a := chunk("a-chunk", "Alpha", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: b, Vector: []float32{1, 0, 0, 0}},
		{Chunk: a, Vector: []float32{1, 0, 0, 0}},
	}))
	te.embed.set("q", []float32{1, 0, 0, 0})

	zero := 0.0
	results, err := te.Search(ctx, "q", 10, vectorstore.Filter{}, Options{Threshold: &zero})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a-chunk", results[0].ChunkID, "equal final scores break ties ascending by chunk id")
	assert.Equal(t, "b-chunk", results[1].ChunkID)
}

func TestSearchFindSimilarAveragesFileChunkVectors(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	c1 := chunk("c1", "One", types.KindFunction)
	c2 := chunk("c2", "Two", types.KindFunction)
	target := chunk("target", "Target", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: c1, Vector: []float32{1, 0, 0, 0}},
		{Chunk: c2, Vector: []float32{1, 0, 0, 0}},
		{Chunk: target, Vector: []float32{1, 0, 0, 0}},
	}))
	require.NoError(t, te.meta.Put(types.FileRecord{Path: "src/file.go", ChunkIDs: []string{"c1", "c2"}}))

	zero := 0.0
	results, err := te.Search(ctx, "src/file.go", 10, vectorstore.Filter{}, Options{FindSimilar: true, Threshold: &zero})
	require.NoError(t, err)
	var ids []string
	for _, r := range results {
		ids = append(ids, r.ChunkID)
	}
	assert.Contains(t, ids, "target", "averaging c1/c2's identical vectors should still find the aligned target chunk")
}

func TestSearchSimilarExcludesSeedChunk(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	seed := chunk("seed", "Seed", types.KindFunction)
	twin := chunk("twin", "Twin", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: seed, Vector: []float32{1, 0, 0, 0}},
		{Chunk: twin, Vector: []float32{1, 0, 0, 0}},
	}))

	zero := 0.0
	results, err := te.SearchSimilar(ctx, "seed", 10, Options{Threshold: &zero})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "seed", r.ChunkID, "a chunk's own embedding must not appear in its own similarity results")
	}
	require.Len(t, results, 1)
	assert.Equal(t, "twin", results[0].ChunkID)
}

func TestSearchSimilarErrorsWithoutStoredEmbedding(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	_, err := te.SearchSimilar(ctx, "missing", 10, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIntegrity)
}

func TestSearchEnrichContextAddsSiblingNames(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	main := chunk("main", "Main", types.KindFunction)
	helper := chunk("helper", "Helper", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: main, Vector: []float32{1, 0, 0, 0}},
		{Chunk: helper, Vector: []float32{0, 0, 0, 1}},
	}))
	require.NoError(t, te.rels.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "main", TargetChunkID: "helper", Kind: types.RelSemanticallySimilar, Weight: 0.9},
	}))
	te.embed.set("q", []float32{1, 0, 0, 0})

	zero := 0.0
	results, err := te.Search(ctx, "q", 10, vectorstore.Filter{}, Options{Threshold: &zero, EnrichContext: true})
	require.NoError(t, err)
	var mainResult *types.SearchResult
	for i := range results {
		if results[i].ChunkID == "main" {
			mainResult = &results[i]
		}
	}
	require.NotNil(t, mainResult)
	assert.Contains(t, mainResult.Context, "Helper")
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	te := newTestEngine(t)
	_, err := te.Search(context.Background(), "   ", 10, vectorstore.Filter{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestSearchCacheServesRepeatCallsWithoutRequeryingVectorStore(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	near := chunk("near", "Near", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: near, Vector: []float32{1, 0, 0, 0}},
	}))
	te.embed.set("q", []float32{1, 0, 0, 0})

	opts := Options{UseCache: true, CacheTTL: time.Minute}
	first, err := te.Search(ctx, "q", 10, vectorstore.Filter{}, opts)
	require.NoError(t, err)

	// Delete the chunk from the store: a cache hit must still serve the
	// stale-but-cached first response rather than re-querying.
	require.NoError(t, te.vectors.Delete(ctx, []string{"near"}))

	second, err := te.Search(ctx, "q", 10, vectorstore.Filter{}, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	te.InvalidateCache()
	third, err := te.Search(ctx, "q", 10, vectorstore.Filter{}, opts)
	require.NoError(t, err)
	assert.Empty(t, third, "after InvalidateCache the deleted chunk's absence should be reflected again")
}

func TestAnalyzeImpactWalksTransitiveClosureAndStopsAtCycles(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	target := chunk("target", "DoWork", types.KindFunction)
	direct := chunk("direct", "CallsDoWork", types.KindFunction)
	transitive := chunk("transitive", "CallsCaller", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: target, Vector: []float32{1, 0, 0, 0}},
		{Chunk: direct, Vector: []float32{0, 1, 0, 0}},
		{Chunk: transitive, Vector: []float32{0, 0, 1, 0}},
	}))
	// direct calls target, transitive calls direct, and target calls
	// transitive back: a cycle the visited-set must not loop forever on.
	require.NoError(t, te.rels.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "direct", TargetChunkID: "target", Kind: types.RelCalls},
		{SourceChunkID: "transitive", TargetChunkID: "direct", Kind: types.RelCalls},
		{SourceChunkID: "target", TargetChunkID: "transitive", Kind: types.RelCalls},
	}))

	impacted, err := te.AnalyzeImpact(ctx, "target", 5)
	require.NoError(t, err)
	var ids []string
	for _, ic := range impacted {
		ids = append(ids, ic.ChunkID)
	}
	assert.ElementsMatch(t, []string{"direct", "transitive"}, ids)
}

func TestAnalyzeImpactResolvesSymbolByName(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	target := chunk("target", "Authenticate", types.KindFunction)
	caller := chunk("caller", "Login", types.KindFunction)
	require.NoError(t, te.vectors.Add(ctx, []vectorstore.Entry{
		{Chunk: target, Vector: []float32{1, 0, 0, 0}},
		{Chunk: caller, Vector: []float32{0, 1, 0, 0}},
	}))
	require.NoError(t, te.rels.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "caller", TargetChunkID: "target", Kind: types.RelCalls},
	}))

	impacted, err := te.AnalyzeImpact(ctx, "Authenticate", 5)
	require.NoError(t, err)
	require.Len(t, impacted, 1)
	assert.Equal(t, "caller", impacted[0].ChunkID)
	assert.Equal(t, "Login", impacted[0].Name)
}

func TestAnalyzeImpactUnknownSymbolReturnsEmpty(t *testing.T) {
	te := newTestEngine(t)
	impacted, err := te.AnalyzeImpact(context.Background(), "NoSuchSymbol", 5)
	require.NoError(t, err)
	assert.Empty(t, impacted)
}

func TestCheckCircularDependenciesFindsThreeFileCycle(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	paths := []string{"a.go", "b.go", "c.go", "d.go"}
	nodeFor := func(p string) string { return types.DeriveID(p, 0, 0, types.KindFileChunk) }

	require.NoError(t, te.rels.Upsert(ctx, []types.Relationship{
		{SourceChunkID: nodeFor("a.go"), TargetChunkID: nodeFor("b.go"), Kind: types.RelImports},
		{SourceChunkID: nodeFor("b.go"), TargetChunkID: nodeFor("c.go"), Kind: types.RelImports},
		{SourceChunkID: nodeFor("c.go"), TargetChunkID: nodeFor("a.go"), Kind: types.RelImports},
		{SourceChunkID: nodeFor("d.go"), TargetChunkID: nodeFor("a.go"), Kind: types.RelImports},
	}))

	cycles, err := te.CheckCircularDependencies(ctx, paths)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"a.go", "b.go", "c.go"}, cycles[0].Paths)
}

func TestCheckCircularDependenciesNoneWhenAcyclic(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	nodeFor := func(p string) string { return types.DeriveID(p, 0, 0, types.KindFileChunk) }
	require.NoError(t, te.rels.Upsert(ctx, []types.Relationship{
		{SourceChunkID: nodeFor("a.go"), TargetChunkID: nodeFor("b.go"), Kind: types.RelImports},
	}))

	cycles, err := te.CheckCircularDependencies(ctx, []string{"a.go", "b.go"})
	require.NoError(t, err)
	assert.Empty(t, cycles)
}
