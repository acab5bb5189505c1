package hasher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHashIsPureFunctionOfBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0o644))

	h1, err := FileHash(path)
	require.NoError(t, err)
	h2, err := FileHash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(path, []byte("package a\n\nfunc X() {}\n"), 0o644))
	h3, err := FileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestFileHashMatchesFileHashBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b.go")
	content := []byte("package b\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	h1, err := FileHash(path)
	require.NoError(t, err)
	h2 := FileHashBytes(content)
	assert.Equal(t, h1, h2)
}

func TestContentHashDeterministicAndDistinct(t *testing.T) {
	a := ContentHash("func A() {}")
	b := ContentHash("func A() {}")
	c := ContentHash("func B() {}")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFileHashUnreadablePathReturnsIOError(t *testing.T) {
	_, err := FileHash(filepath.Join(t.TempDir(), "does-not-exist.go"))
	require.Error(t, err)
}
