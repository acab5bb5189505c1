package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

func newRecord(path string) types.FileRecord {
	return types.FileRecord{
		Path:      path,
		Size:      42,
		ModTime:   time.Unix(1_700_000_000, 0).UTC(),
		FileHash:  [32]byte{1, 2, 3},
		ChunkIDs:  []string{"chunk-a", "chunk-b"},
		Language:  "go",
		IndexedAt: time.Unix(1_700_000_100, 0).UTC(),
	}
}

func TestOpenOnMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	m, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, m.AllPaths())
}

func TestPutThenGetRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	m, err := Open(path)
	require.NoError(t, err)

	rec := newRecord("a/b.go")
	require.NoError(t, m.Put(rec))

	got, ok := m.Get("a/b.go")
	require.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok = m.Get("does/not/exist.go")
	assert.False(t, ok)
}

func TestPutPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Put(newRecord("x.go")))

	m2, err := Open(path)
	require.NoError(t, err)
	got, ok := m2.Get("x.go")
	require.True(t, ok)
	assert.Equal(t, "x.go", got.Path)
}

func TestDeleteRemovesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Put(newRecord("x.go")))

	require.NoError(t, m.Delete("x.go"))
	_, ok := m.Get("x.go")
	assert.False(t, ok)

	// deleting an absent path is a no-op, not an error.
	require.NoError(t, m.Delete("x.go"))
}

func TestAllPathsReflectsCurrentSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Put(newRecord("a.go")))
	require.NoError(t, m.Put(newRecord("b.go")))

	assert.ElementsMatch(t, []string{"a.go", "b.go"}, m.AllPaths())
}

func TestBulkReplaceUpsertsAndRemoves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Put(newRecord("keep.go")))
	require.NoError(t, m.Put(newRecord("gone.go")))

	err = m.BulkReplace([]types.FileRecord{newRecord("new.go")}, []string{"gone.go"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"keep.go", "new.go"}, m.AllPaths())
}

func TestBulkReplaceOnWriteFailureRollsBackInMemoryState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.json")
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Put(newRecord("keep.go")))

	// Replace the metadata directory's write target with an unwritable
	// path to force flushLocked to fail, then verify the in-memory set
	// did not drift from what's on disk.
	badPath := filepath.Join(dir, "nested", "does", "not", "exist", "metadata.json")
	require.NoError(t, os.Chmod(dir, 0o555))
	defer func() { _ = os.Chmod(dir, 0o755) }()

	mBad := &Manager{path: badPath, doc: m.doc}
	before := mBad.AllPaths()

	err = mBad.BulkReplace([]types.FileRecord{newRecord("new.go")}, nil)
	require.Error(t, err)
	assert.ElementsMatch(t, before, mBad.AllPaths())
}
