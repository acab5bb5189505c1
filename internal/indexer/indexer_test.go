package indexer

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/internal/embedder"
	"github.com/anthropic-exercise/codeintel/internal/metadata"
	"github.com/anthropic-exercise/codeintel/internal/parser"
	"github.com/anthropic-exercise/codeintel/internal/pathfilter"
	"github.com/anthropic-exercise/codeintel/internal/relstore"
	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// fakeEmbedder returns a deterministic vector per distinct text so
// tests can assert on dedup-by-content-hash behaviour without a real
// embedding provider.
type fakeEmbedder struct {
	batchCalls int32
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return &embedder.Embedding{Vector: vectorFor(req.Text), Dimension: 4, Provider: "fake", Model: "fake"}, nil
}

func (f *fakeEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	atomic.AddInt32(&f.batchCalls, int32(len(req.Texts)))
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = &embedder.Embedding{Vector: vectorFor(text), Dimension: 4, Provider: "fake", Model: "fake"}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "fake", Model: "fake"}, nil
}

func (f *fakeEmbedder) Dimension() int   { return 4 }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake" }
func (f *fakeEmbedder) Close() error     { return nil }

func vectorFor(text string) []float32 {
	h := sha256.Sum256([]byte(text))
	return []float32{float32(h[0]), float32(h[1]), float32(h[2]), float32(h[3])}
}

func setupIndexer(t *testing.T) (*Indexer, *fakeEmbedder) {
	t.Helper()

	vectors, err := vectorstore.Open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	rels, err := relstore.Open(filepath.Join(t.TempDir(), "relationships.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rels.Close() })

	meta, err := metadata.Open(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)

	emb := &fakeEmbedder{}
	cache := embedder.NewCache(100)
	registry := parser.NewDefaultRegistry()
	cfg := pathfilter.Config{Extensions: map[string]bool{".go": true, ".py": true, ".js": true}}

	return New(vectors, rels, meta, registry, emb, cache, cfg, 2), emb
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

const greetSource = `package sample

func Greet(name string) string {
	return "hello " + name
}
`

const mainSource = `package sample

func RunMain() string {
	return Greet("world")
}
`

func TestIndexProjectAddsNewFilesAndDerivesRelationships(t *testing.T) {
	idx, _ := setupIndexer(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"greet.go": greetSource,
		"main.go":  mainSource,
	})
	ctx := context.Background()

	stats, err := idx.IndexProject(ctx, root, false, ProgressCallbacks{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 2, stats.ChunksAdded)

	count, err := idx.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// RunMain calls Greet: the two-pass parse should have resolved it
	// into a RelCalls edge regardless of file processing order.
	mainRec, ok := idx.metadata.Get("main.go")
	require.True(t, ok)
	require.Len(t, mainRec.ChunkIDs, 1)

	outgoing, err := idx.relationships.Outgoing(ctx, mainRec.ChunkIDs[0], nil)
	require.NoError(t, err)
	var sawCall bool
	for _, e := range outgoing {
		if e.Kind == types.RelCalls {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "RunMain's chunk should have a calls edge to Greet")

	// Each file's top-level function is anchored under its file node.
	greetRec, ok := idx.metadata.Get("greet.go")
	require.True(t, ok)
	contains, err := idx.relationships.Outgoing(ctx, fileNodeID("greet.go"), kindPtrFor(types.RelContains))
	require.NoError(t, err)
	require.Len(t, contains, 1)
	assert.Equal(t, greetRec.ChunkIDs[0], contains[0].TargetChunkID)
}

func kindPtrFor(k types.RelationshipKind) *types.RelationshipKind { return &k }

func TestIndexProjectSkipsUnchangedFilesOnSecondRun(t *testing.T) {
	idx, emb := setupIndexer(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"greet.go": greetSource})
	ctx := context.Background()

	_, err := idx.IndexProject(ctx, root, false, ProgressCallbacks{})
	require.NoError(t, err)
	firstCalls := atomic.LoadInt32(&emb.batchCalls)
	require.Greater(t, firstCalls, int32(0))

	stats, err := idx.IndexProject(ctx, root, false, ProgressCallbacks{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, firstCalls, atomic.LoadInt32(&emb.batchCalls), "unchanged file gatekeeper must skip before embedding")
}

func TestIndexProjectReindexesChangedFileAsUpdate(t *testing.T) {
	idx, _ := setupIndexer(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"greet.go": greetSource})
	ctx := context.Background()

	_, err := idx.IndexProject(ctx, root, false, ProgressCallbacks{})
	require.NoError(t, err)

	changed := `package sample

func Greet(name string) string {
	return "hi there " + name
}
`
	writeFiles(t, root, map[string]string{"greet.go": changed})

	stats, err := idx.IndexProject(ctx, root, false, ProgressCallbacks{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.ChunksUpdated)
	assert.Equal(t, 0, stats.ChunksAdded)

	count, err := idx.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same function signature keeps the same chunk id across an update")
}

func TestIndexPathReindexesSingleFile(t *testing.T) {
	idx, _ := setupIndexer(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"greet.go": greetSource})
	ctx := context.Background()

	fstats, err := idx.IndexPath(ctx, root, "greet.go", ProgressCallbacks{})
	require.NoError(t, err)
	assert.Equal(t, 1, fstats.Added)

	rec, ok := idx.metadata.Get("greet.go")
	require.True(t, ok)
	assert.Len(t, rec.ChunkIDs, 1)
}

func TestRemovePathDeletesChunksAndRecord(t *testing.T) {
	idx, _ := setupIndexer(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"greet.go": greetSource})
	ctx := context.Background()

	_, err := idx.IndexProject(ctx, root, false, ProgressCallbacks{})
	require.NoError(t, err)

	require.NoError(t, idx.RemovePath(ctx, "greet.go"))

	_, ok := idx.metadata.Get("greet.go")
	assert.False(t, ok)

	count, err := idx.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIndexProjectRejectsConcurrentRuns(t *testing.T) {
	idx, _ := setupIndexer(t)
	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	_, err := idx.IndexProject(context.Background(), t.TempDir(), false, ProgressCallbacks{})
	assert.ErrorIs(t, err, ErrAlreadyIndexing)
}
