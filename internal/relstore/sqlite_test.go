package relstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

func setupStore(t *testing.T) *SQLiteStore {
	dbPath := filepath.Join(t.TempDir(), "relationships.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertRecordsInverseEdge(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "a", TargetChunkID: "b", Kind: types.RelCalls, Weight: 1.0},
	}))

	out, err := s.Outgoing(ctx, "a", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.RelCalls, out[0].Kind)

	in, err := s.Incoming(ctx, "a", nil)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, types.RelCalledBy, in[0].Kind)
	assert.Equal(t, "b", in[0].SourceChunkID)
	assert.Equal(t, "a", in[0].TargetChunkID)
}

func TestUpsertIsIdempotentAndOverwritesWeight(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "a", TargetChunkID: "b", Kind: types.RelImports, Weight: 1.0},
	}))
	require.NoError(t, s.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "a", TargetChunkID: "b", Kind: types.RelImports, Weight: 0.5},
	}))

	out, err := s.Outgoing(ctx, "a", kindPtr(types.RelImports))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.5, out[0].Weight)
}

func TestSemanticallySimilarIsMirroredSymmetrically(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "a", TargetChunkID: "b", Kind: types.RelSemanticallySimilar, Weight: 0.9},
	}))

	forward, err := s.Outgoing(ctx, "a", kindPtr(types.RelSemanticallySimilar))
	require.NoError(t, err)
	require.Len(t, forward, 1)

	backward, err := s.Outgoing(ctx, "b", kindPtr(types.RelSemanticallySimilar))
	require.NoError(t, err)
	require.Len(t, backward, 1)
	assert.Equal(t, "a", backward[0].TargetChunkID)
}

func TestIncomingFiltersByKind(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "a", TargetChunkID: "b", Kind: types.RelCalls, Weight: 1.0},
		{SourceChunkID: "c", TargetChunkID: "b", Kind: types.RelImports, Weight: 1.0},
	}))

	calls, err := s.Incoming(ctx, "b", kindPtr(types.RelCalls))
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "a", calls[0].SourceChunkID)

	all, err := s.Incoming(ctx, "b", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSiblingsCombinesContainmentAndSimilarity(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "fileA", TargetChunkID: "child1", Kind: types.RelContains, Weight: 1.0},
		{SourceChunkID: "fileA", TargetChunkID: "child2", Kind: types.RelContains, Weight: 1.0},
		{SourceChunkID: "child1", TargetChunkID: "distant", Kind: types.RelSemanticallySimilar, Weight: 0.8},
	}))

	siblings, err := s.Siblings(ctx, "child1", 10)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, sib := range siblings {
		ids[sib.TargetChunkID] = true
	}
	assert.True(t, ids["child2"], "child2 shares child1's parent")
	assert.True(t, ids["distant"], "distant is semantically similar to child1")
	assert.False(t, ids["child1"], "a chunk is never its own sibling")
}

func TestSiblingsRespectsTopK(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.Relationship{
		{SourceChunkID: "fileA", TargetChunkID: "child1", Kind: types.RelContains, Weight: 1.0},
		{SourceChunkID: "fileA", TargetChunkID: "child2", Kind: types.RelContains, Weight: 1.0},
		{SourceChunkID: "fileA", TargetChunkID: "child3", Kind: types.RelContains, Weight: 1.0},
	}))

	siblings, err := s.Siblings(ctx, "child1", 1)
	require.NoError(t, err)
	assert.Len(t, siblings, 1)
}
