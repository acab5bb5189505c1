package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

type stubParser struct {
	chunks []*types.Chunk
	err    error
}

func (s *stubParser) EmitChunks(path string, content []byte) ([]*types.Chunk, error) {
	return s.chunks, s.err
}
func (s *stubParser) ExtractDocstring(content []byte, startLine, endLine int) string { return "" }
func (s *stubParser) EstimateQuality(body string, kind types.ChunkKind) types.Quality {
	return types.Quality{}
}

func TestRegistryLookupByExtension(t *testing.T) {
	r := NewRegistry()
	ok := &stubParser{}
	r.Register("go", []string{".go"}, ok)

	p, lang, found := r.Lookup("main.go")
	assert.True(t, found)
	assert.Equal(t, "go", lang)
	assert.Same(t, ok, p)
}

func TestRegistryParseFallsBackOnStructuralFailure(t *testing.T) {
	r := NewRegistry()
	failing := &stubParser{err: errors.New("boom")}
	fallbackChunks := []*types.Chunk{{ID: "root", Kind: types.KindFileChunk}}
	fallback := &stubParser{chunks: fallbackChunks}

	r.Register("go", []string{".go"}, failing)
	r.SetFallback(fallback)

	chunks, err := r.Parse("main.go", []byte("package main"))
	require.NoError(t, err)
	assert.Equal(t, fallbackChunks, chunks)
}

func TestRegistryParseReturnsErrorWhenFallbackAlsoFails(t *testing.T) {
	r := NewRegistry()
	failing := &stubParser{err: errors.New("boom")}
	r.Register("go", []string{".go"}, failing)
	r.SetFallback(&stubParser{err: errors.New("still broken")})

	_, err := r.Parse("main.go", []byte("package main"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrParse)
}

func TestRegistryParseUnregisteredExtensionUsesFallback(t *testing.T) {
	r := NewRegistry()
	fallbackChunks := []*types.Chunk{{ID: "root"}}
	r.SetFallback(&stubParser{chunks: fallbackChunks})

	chunks, err := r.Parse("notes.xyz", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, fallbackChunks, chunks)
}

func TestRegistryParseNoFallbackRegisteredErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse("notes.xyz", []byte("hello"))
	assert.ErrorIs(t, err, ErrNoFallback)
}
