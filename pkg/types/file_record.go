package types

import "time"

// FileRecord is the Metadata Manager's persistent bookkeeping entry for
// one project-relative path. The invariant the Indexer relies on: if the
// on-disk bytes of Path hash to FileHash, the ChunkIDs set in the Vector
// Store is authoritative and complete for that file.
type FileRecord struct {
	Path       string
	Size       int64
	ModTime    time.Time
	FileHash   [32]byte
	ChunkIDs   []string
	Language   string
	IndexedAt  time.Time
	LossyDecode bool
}
