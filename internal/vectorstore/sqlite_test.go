package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

func setupStore(t *testing.T) *SQLiteStore {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleChunk(id, path string, grade types.Grade) *types.Chunk {
	return &types.Chunk{
		ID:           id,
		FilePath:     path,
		StartLine:    1,
		EndLine:      10,
		Kind:         types.KindFunction,
		Name:         "DoThing",
		Language:     "go",
		Content:      "func DoThing() {}",
		ParseQuality: types.ParseOK,
		Quality:      types.Quality{Grade: grade, CyclomaticComplexity: 2},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestAddAndGetRoundTrips(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := sampleChunk("abc123", "pkg/foo.go", types.GradeA)
	err := s.Add(ctx, []Entry{{Chunk: c, Vector: []float32{1, 0, 0}}})
	require.NoError(t, err)

	got, err := s.Get(ctx, []string{"abc123"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pkg/foo.go", got[0].FilePath)
	assert.Equal(t, types.GradeA, got[0].Quality.Grade)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddIsIdempotentByID(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := sampleChunk("abc123", "pkg/foo.go", types.GradeA)
	require.NoError(t, s.Add(ctx, []Entry{{Chunk: c, Vector: []float32{1, 0, 0}}}))

	c2 := sampleChunk("abc123", "pkg/foo.go", types.GradeB)
	c2.Content = "func DoThing() { /* changed */ }"
	require.NoError(t, s.Add(ctx, []Entry{{Chunk: c2, Vector: []float32{0, 1, 0}}}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-adding an existing id overwrites rather than duplicating")

	got, err := s.Get(ctx, []string{"abc123"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.GradeB, got[0].Quality.Grade)
}

func TestDeleteRemovesChunk(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := sampleChunk("abc123", "pkg/foo.go", types.GradeA)
	require.NoError(t, s.Add(ctx, []Entry{{Chunk: c, Vector: []float32{1, 0, 0}}}))
	require.NoError(t, s.Delete(ctx, []string{"abc123"}))

	got, err := s.Get(ctx, []string{"abc123"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryOrdersByDescendingSimilarity(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	entries := []Entry{
		{Chunk: sampleChunk("close", "pkg/a.go", types.GradeA), Vector: []float32{1, 0, 0}},
		{Chunk: sampleChunk("far", "pkg/b.go", types.GradeA), Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, s.Add(ctx, entries))

	results, err := s.Query(ctx, []float32{1, 0, 0}, 10, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestQueryFilterByLanguageAndGrade(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	goChunk := sampleChunk("g1", "pkg/a.go", types.GradeA)
	pyChunk := sampleChunk("p1", "pkg/a.py", types.GradeF)
	pyChunk.Language = "python"
	require.NoError(t, s.Add(ctx, []Entry{
		{Chunk: goChunk, Vector: []float32{1, 0}},
		{Chunk: pyChunk, Vector: []float32{1, 0}},
	}))

	results, err := s.Query(ctx, []float32{1, 0}, 10, Filter{Languages: []string{"python"}, MaxGrade: types.GradeB})
	require.NoError(t, err)
	assert.Empty(t, results, "python chunk has grade F, which fails the MaxGrade=B filter")

	results, err = s.Query(ctx, []float32{1, 0}, 10, Filter{Languages: []string{"go"}, MaxGrade: types.GradeB})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "g1", results[0].ID)
}

func TestSearchTextMatchesContent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := sampleChunk("abc123", "pkg/foo.go", types.GradeA)
	c.Content = "func ParseConfig reads configuration from disk"
	require.NoError(t, s.Add(ctx, []Entry{{Chunk: c, Vector: []float32{1, 0}}}))

	results, err := s.SearchText(ctx, "configuration", 10, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "abc123", results[0].ID)
}

func TestGetVectorsReturnsStoredEmbeddingsOnly(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := sampleChunk("abc123", "pkg/foo.go", types.GradeA)
	require.NoError(t, s.Add(ctx, []Entry{{Chunk: c, Vector: []float32{1, 2, 3}}}))

	vecs, err := s.GetVectors(ctx, []string{"abc123", "missing"})
	require.NoError(t, err)
	require.Contains(t, vecs, "abc123")
	assert.Equal(t, []float32{1, 2, 3}, vecs["abc123"])
	assert.NotContains(t, vecs, "missing")
}

func TestStatsReportsCounts(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []Entry{{Chunk: sampleChunk("a", "x.go", types.GradeA), Vector: []float32{1}}}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, 1, stats.EmbeddingCount)
	assert.Equal(t, CurrentSchemaVersion, stats.SchemaVersion)
}
