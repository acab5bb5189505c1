// Package relstore persists the directed, typed edges between chunks:
// upsert(edges), incoming/outgoing(id, kind?), and siblings(id, top_k).
// It reuses internal/vectorstore's querier/transaction pattern against
// a second SQLite database, with adjacency construction keyed by
// symbol/edge pairs.
package relstore

import (
	"context"
	"errors"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// ErrNotFound names a chunk id with no edges. SQLiteStore does not
// return it: Incoming, Outgoing and Siblings return an empty slice.
var ErrNotFound = errors.New("relstore: not found")

// Store is the Relationship Store's public contract.
type Store interface {
	// Upsert records edges, keyed by (source, target, kind). Re-upserting
	// an existing edge overwrites its weight. For every edge whose kind
	// has a defined Inverse (calls/called_by, imports/imported_by,
	// contains/contained_by), the reverse edge is recorded automatically
	// so incoming/outgoing need only scan one direction's index. A
	// semantically_similar edge is its own inverse under reversal
	// (types.RelationshipKind.Inverse's ok=false case) and is likewise
	// mirrored with the same kind, swapped endpoints.
	Upsert(ctx context.Context, edges []types.Relationship) error

	// Incoming returns edges that target id. When kind is nil, every
	// kind is returned.
	Incoming(ctx context.Context, id string, kind *types.RelationshipKind) ([]types.Relationship, error)

	// Outgoing returns edges sourced from id. When kind is nil, every
	// kind is returned.
	Outgoing(ctx context.Context, id string, kind *types.RelationshipKind) ([]types.Relationship, error)

	// Siblings returns up to topK chunks related to id through
	// containment (chunks sharing id's parent, and id's parent's other
	// children) or semantic similarity, ordered by descending edge
	// weight and deduplicated by target id.
	Siblings(ctx context.Context, id string, topK int) ([]types.Relationship, error)

	Close() error
}
