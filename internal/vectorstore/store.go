// Package vectorstore persists {id, vector, metadata} tuples with
// filtered nearest-neighbour search and corruption recovery. It uses
// a querier/transaction pattern, dual cgo/purego SQLite driver
// selection, and FTS5-backed text search over a content-addressed,
// multi-language Chunk model.
package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// ErrNotFound names an id that does not exist. SQLiteStore does not
// return it: Get and GetVectors omit missing ids and Delete ignores them.
var ErrNotFound = errors.New("vectorstore: not found")

// ErrStoreUnavailable is returned when the recovery protocol
// exhausts its retry budget without restoring access.
var ErrStoreUnavailable = errors.New("vectorstore: store unavailable")

// Entry is one {id, vector, metadata} tuple as persisted by Add.
type Entry struct {
	Chunk  *types.Chunk
	Vector []float32
}

// Result is one ranked hit from Query, carrying the similarity score
// and the full chunk metadata for the Search Engine's enrichment step.
type Result struct {
	ID       string
	Score    float64
	Metadata *types.Chunk
}

// Filter is the boolean metadata predicate: every field is an AND'd,
// optional restriction; a zero-value Filter matches everything.
type Filter struct {
	Languages   []string
	Kinds       []types.ChunkKind
	PathPrefix  string
	PathGlob    string
	PathRegex   string
	MaxGrade    types.Grade // quality.grade <= MaxGrade ("at least as good as")
	MaxSmells   *int        // smell_count <= MaxSmells
	ComplexityMin *int      // complexity in [ComplexityMin, ComplexityMax]
	ComplexityMax *int
}

// Stats summarizes store contents for get_status-style reporting.
type Stats struct {
	ChunkCount     int
	EmbeddingCount int
	SizeBytes      int64
	SchemaVersion  string
}

// Store is the Vector Store's public contract.
type Store interface {
	// Add upserts a batch of entries, idempotent by Chunk.ID: re-adding
	// an existing id overwrites its row (and refreshes UpdatedAt) rather
	// than duplicating it, whether or not its content changed. The
	// Indexer dedupes embedding calls by hash before this point.
	Add(ctx context.Context, batch []Entry) error

	// Delete removes the given ids. Deleting an id that does not
	// exist is not an error.
	Delete(ctx context.Context, ids []string) error

	// Query returns up to k nearest neighbours to qVec under filter,
	// ordered by decreasing similarity score.
	Query(ctx context.Context, qVec []float32, k int, filter Filter) ([]Result, error)

	// SearchText runs a BM25 full-text query over chunk content,
	// feeding the Search Engine's lexical signal.
	SearchText(ctx context.Context, query string, k int, filter Filter) ([]Result, error)

	// Get fetches full metadata for the given ids, for enrichment.
	Get(ctx context.Context, ids []string) ([]*types.Chunk, error)

	// GetVectors fetches the stored embedding for each of the given
	// ids that has one, keyed by id. It backs the semantically_similar
	// background job, which needs a chunk's own vector to query its
	// neighbours; ids with no embedding yet are omitted rather than
	// erroring.
	GetVectors(ctx context.Context, ids []string) (map[string][]float32, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Stats returns store-wide statistics.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// recoveryBackoff is the bounded exponential backoff: 3 attempts,
// 200ms base.
var recoveryBackoff = []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
