package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/internal/config"
	"github.com/anthropic-exercise/codeintel/internal/indexer"
	"github.com/anthropic-exercise/codeintel/internal/searcher"
	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
)

const greetSource = `package sample

func Greet(name string) string {
	return "hello " + name
}
`

func newTestProject(t *testing.T) *Index {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.FileExtensions = []string{".go"}
	cfg.PoolSize = 2
	cfg.ReadConcurrency = 2

	p, err := Initialize(root, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestInitializeCreatesOnDiskLayout(t *testing.T) {
	root := t.TempDir()
	p, err := Initialize(root, config.DefaultConfig())
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, IsInitialized(root))
	assert.FileExists(t, filepath.Join(root, StateDirName, "config.json"))
	assert.DirExists(t, filepath.Join(root, StateDirName, "vectors"))
}

func TestOpenLoadsAnExistingProject(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SimilarityThreshold = 0.42
	p1, err := Initialize(root, cfg)
	require.NoError(t, err)
	require.NoError(t, p1.Close())

	p2, err := Open(root)
	require.NoError(t, err)
	defer p2.Close()
	assert.Equal(t, 0.42, p2.Config().SimilarityThreshold)
}

func TestOpenWithoutInitializeFails(t *testing.T) {
	root := t.TempDir()
	_, err := Open(root)
	assert.Error(t, err)
	assert.False(t, IsInitialized(root))
}

func TestIndexProjectAndSearchRoundTrip(t *testing.T) {
	p := newTestProject(t)
	writeFile(t, p.Root(), "greet.go", greetSource)
	ctx := context.Background()

	stats, err := p.IndexProject(ctx, false, indexer.ProgressCallbacks{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)

	results, err := p.Search(ctx, "Greet", 5, vectorstore.Filter{}, searcher.Options{})
	require.NoError(t, err)
	if assert.NotEmpty(t, results) {
		assert.Equal(t, "Greet", results[0].Chunk.Name)
	}
}

func TestIndexPathAndRemovePath(t *testing.T) {
	p := newTestProject(t)
	writeFile(t, p.Root(), "greet.go", greetSource)
	ctx := context.Background()

	fstats, err := p.IndexPath(ctx, "greet.go", indexer.ProgressCallbacks{})
	require.NoError(t, err)
	assert.Equal(t, 1, fstats.Added)

	status, err := p.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.ChunkCount)
	assert.Equal(t, 1, status.FileCount)

	require.NoError(t, p.RemovePath(ctx, "greet.go"))
	status, err = p.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.ChunkCount)
}

func TestSearchSimilarResolvesKnownPathBeforeTreatingArgumentAsChunkID(t *testing.T) {
	p := newTestProject(t)
	writeFile(t, p.Root(), "greet.go", greetSource)
	writeFile(t, p.Root(), "main.go", `package sample

func RunMain() string {
	return Greet("world")
}
`)
	ctx := context.Background()
	_, err := p.IndexProject(ctx, false, indexer.ProgressCallbacks{})
	require.NoError(t, err)

	results, err := p.SearchSimilar(ctx, "greet.go", 5, searcher.Options{})
	require.NoError(t, err)
	assert.NotNil(t, results)
}

func TestResetClearsStoresButKeepsConfig(t *testing.T) {
	p := newTestProject(t)
	writeFile(t, p.Root(), "greet.go", greetSource)
	ctx := context.Background()
	_, err := p.IndexProject(ctx, false, indexer.ProgressCallbacks{})
	require.NoError(t, err)

	before, err := p.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, before.ChunkCount)

	require.NoError(t, p.Reset())

	after, err := p.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, after.ChunkCount)
	assert.Equal(t, 0, after.FileCount)
	assert.Equal(t, p.Config().SimilarityThreshold, config.DefaultConfig().SimilarityThreshold)
}

func TestCheckCircularDependenciesOverTrackedPaths(t *testing.T) {
	p := newTestProject(t)
	writeFile(t, p.Root(), "a.go", `package sample

import "sample/b"

func A() { b.B() }
`)
	ctx := context.Background()
	_, err := p.IndexProject(ctx, false, indexer.ProgressCallbacks{})
	require.NoError(t, err)

	cycles, err := p.CheckCircularDependencies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}
