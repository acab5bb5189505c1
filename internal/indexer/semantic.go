package indexer

import (
	"context"
	"fmt"

	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// DefaultSimilarityFloor is the default similarity floor below
// which a neighbour is not recorded as semantically_similar.
const DefaultSimilarityFloor = 0.75

// ComputeSemanticSimilarity runs the semantically_similar background
// job: for every chunk known to the Metadata Manager, query
// the Vector Store for its own top-K nearest neighbours and record an
// edge for each one scoring at or above floor, weighted by the
// similarity score. Unlike index_project/index_path this is not part
// of the six-step protocol — it is O(chunk count) vector queries and
// is meant to be scheduled independently (e.g. on an interval), not run
// inline on every write.
func (idx *Indexer) ComputeSemanticSimilarity(ctx context.Context, topK int, floor float64) error {
	if topK <= 0 {
		topK = 10
	}
	if floor <= 0 {
		floor = DefaultSimilarityFloor
	}

	ids := idx.allKnownChunkIDs()
	if len(ids) == 0 {
		return nil
	}

	const batch = 256
	for i := 0; i < len(ids); i += batch {
		end := i + batch
		if end > len(ids) {
			end = len(ids)
		}
		if err := idx.computeSimilarityBatch(ctx, ids[i:end], topK, floor); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Indexer) computeSimilarityBatch(ctx context.Context, ids []string, topK int, floor float64) error {
	vectors, err := idx.vectors.GetVectors(ctx, ids)
	if err != nil {
		return fmt.Errorf("fetch vectors for similarity batch: %w", err)
	}

	var edges []types.Relationship
	for _, id := range ids {
		vec, ok := vectors[id]
		if !ok {
			continue
		}
		// Over-fetch by one: a chunk's own vector is its own nearest
		// neighbour at score 1.0 and must be discarded.
		results, err := idx.vectors.Query(ctx, vec, topK+1, vectorstore.Filter{})
		if err != nil {
			return fmt.Errorf("query neighbours for %s: %w", id, err)
		}
		for _, r := range results {
			if r.ID == id || r.Score < floor {
				continue
			}
			edges = append(edges, types.Relationship{
				SourceChunkID: id,
				TargetChunkID: r.ID,
				Kind:          types.RelSemanticallySimilar,
				Weight:        r.Score,
			})
		}
	}
	if len(edges) == 0 {
		return nil
	}
	return idx.relationships.Upsert(ctx, edges)
}

// allKnownChunkIDs collects every chunk id the Metadata Manager
// currently attributes to an indexed file.
func (idx *Indexer) allKnownChunkIDs() []string {
	var ids []string
	for _, path := range idx.metadata.AllPaths() {
		rec, ok := idx.metadata.Get(path)
		if !ok {
			continue
		}
		ids = append(ids, rec.ChunkIDs...)
	}
	return ids
}
