// Package hasher implements the two hash functions the indexing
// pipeline uses for change detection: a wide file-level hash that gates
// re-indexing, and a narrow chunk-level hash used as the embedding
// cache's dedup key.
package hasher

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// FileHash computes the 256-bit digest of a file's exact bytes. It is
// independent of OS line endings because it hashes the raw bytes, not a
// normalised text form. A wider digest is used here than for content
// hashing because a false-negative collision would silently skip
// re-indexing a changed file.
func FileHash(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: open %s: %v", types.ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, fmt.Errorf("%w: read %s: %v", types.ErrIO, path, err)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// FileHashBytes computes the same 256-bit digest over bytes already
// read into memory, for callers that have already loaded file contents
// (e.g. the Path Filter, which must read bytes anyway to check for
// binary content and UTF-8 decodability).
func FileHashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// ContentHash computes the 128-bit deduplication digest of chunk text.
// It delegates to types.ContentHash so the Hasher and the Chunk type
// agree on exactly one definition of "content hash" — the invariant
// `content_hash(c) = content_hash(c.Content)` therefore holds by
// construction rather than by convention.
func ContentHash(text string) [16]byte {
	return types.ContentHash(text)
}
