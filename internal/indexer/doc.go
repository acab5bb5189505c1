// Package indexer coordinates the end-to-end incremental indexing
// pipeline: Path Filter, Language Parser Registry, Vector Store,
// Relationship Store and Metadata Manager.
//
// # Basic Usage
//
//	idx := indexer.New(vectors, relationships, meta, registry, emb, cache, pathConfig, 0)
//
//	stats, err := idx.IndexProject(ctx, "/path/to/project", false, indexer.ProgressCallbacks{})
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// # Incremental Protocol
//
// Per candidate path, index_project/index_path run the same six steps:
//
//  1. Gatekeeper: skip if the file's hash (SHA-256 of its bytes) matches
//     its stored FileRecord and force is false.
//  2. Parse to chunks via the Language Parser Registry; each chunk
//     carries its own content hash.
//  3. Diff against the Vector Store's current ids for this file into
//     to_add / to_update / to_delete.
//  4. Embed to_add ∪ to_update, deduped by content hash through the
//     Embedder's cache.
//  5. Delete to_delete from the Vector Store.
//  6. Write the file's FileRecord last — if any earlier step failed,
//     this file is retried from scratch on the next run.
//
// # Concurrency
//
// Both the parse phase and the store phase run over a bounded worker
// pool (errgroup + semaphore, sized to runtime.NumCPU() by default).
// IndexProject's two phases let a call site in a file processed early
// still resolve against a symbol defined in a file processed later in
// the same run — see symbolTable in relations.go.
//
// # Failure Semantics
//
// Per-file failures (parse errors, embedding errors) are isolated: the
// file is reported via OnError and its FileRecord is left untouched.
// A Vector Store write failure that exhausts its own recovery budget
// (vectorstore.ErrStoreUnavailable) instead halts the whole run, since
// the store can no longer be trusted for the remaining files.
//
// # Relationship Derivation
//
// contains/contained_by come directly from each chunk's ParentID.
// calls/called_by and imports/imported_by are both best-effort: the
// former resolves bare identifier-like call sites against an
// in-process symbol table, the latter resolves per-language import
// statements against the project's other known paths. Neither
// attempts full semantic resolution — see relations.go.
package indexer
