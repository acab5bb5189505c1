// Package searcher implements the Search Engine: embed a query (or
// average a known file's chunk embeddings for "find similar"),
// over-fetch nearest neighbours from the Vector Store under a metadata
// filter, re-rank with a weighted formula blending vector similarity
// against quality, structural and boilerplate signals, then drop
// anything below an adaptive similarity threshold.
//
// # Basic usage
//
//	engine := searcher.New(vectors, relationships, meta, embed, cfg)
//
//	results, err := engine.Search(ctx, "user authentication logic", 10,
//	    vectorstore.Filter{Languages: []string{"go"}},
//	    searcher.Options{EnrichContext: true})
//
//	for _, r := range results {
//	    fmt.Printf("[%d] %s (%.2f): %s\n", r.Rank, r.Chunk.Name, r.FinalScore, r.File.Path)
//	}
//
// # Re-rank formula
//
//	final_score = w_v*vector_score + w_q*quality_score + w_s*structural_bonus - w_b*boilerplate_penalty
//
// The weights come from config.Weights; results below the effective
// similarity threshold are dropped before truncation to k.
//
// # Adaptive threshold
//
// The base threshold drops by up to 0.2 when the query is short, has
// returned no results before, or contains an uncommon token — see
// threshold.go. A caller can bypass this by setting Options.Threshold.
//
// # Find-similar modes
//
// Search with Options.FindSimilar treats the query text as a
// project-relative path and searches from that file's averaged chunk
// vectors. SearchSimilar does the same starting from a chunk's own
// stored embedding, excluding that chunk from its own results.
//
// # Other operations
//
// AnalyzeImpact walks the transitive closure of called_by/imported_by
// edges from a resolved symbol. CheckCircularDependencies runs
// Tarjan's algorithm over the project's import graph and reports every
// strongly connected component larger than one file.
package searcher
