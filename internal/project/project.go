// Package project wires the Path Filter, Hasher, Language Parser
// Registry, Metadata Manager, Embedder, Vector Store, Indexer,
// Relationship Store and Search Engine into the single ProjectIndex
// surface the rest of the system is built against: the MCP adapter
// (internal/mcp) and the CLI adapter (cmd/codeintel) are both thin
// wrappers over the Index type defined here, each holding the one
// concrete storage/indexer/searcher triple its handlers call into
// directly.
//
// A project's on-disk state lives at <root>/.codeintel, the same way a
// repository's git state lives at <root>/.git: config.json, the
// Metadata Manager's document, the Vector Store directory and the
// Relationship Store database all sit beneath it.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropic-exercise/codeintel/internal/config"
	"github.com/anthropic-exercise/codeintel/internal/embedder"
	"github.com/anthropic-exercise/codeintel/internal/indexer"
	"github.com/anthropic-exercise/codeintel/internal/metadata"
	"github.com/anthropic-exercise/codeintel/internal/parser"
	"github.com/anthropic-exercise/codeintel/internal/pathfilter"
	"github.com/anthropic-exercise/codeintel/internal/relstore"
	"github.com/anthropic-exercise/codeintel/internal/searcher"
	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// StateDirName is the project-relative directory every Index's on-disk
// state lives beneath.
const StateDirName = ".codeintel"

// Index is a ProjectIndex: one project root's config, stores and the
// Indexer/Search Engine built on top of them. The zero value is not
// usable; build one with Initialize or Open.
type Index struct {
	root  string
	paths config.Paths
	cfg   config.Config

	vectors       vectorstore.Store
	relationships relstore.Store
	meta          *metadata.Manager
	registry      *parser.Registry
	embed         embedder.Embedder
	cache         *embedder.Cache

	idx    *indexer.Indexer
	search *searcher.Engine
}

// Stats is get_status's answer: a snapshot of the project's indexed
// state, grounded on vectorstore.Stats (the only store that already
// tracks these counts) plus the bookkeeping Initialize/Open know about.
type Stats struct {
	Root             string
	Initialized      bool
	EmbeddingModel   string
	EmbeddingProvider string
	ChunkCount       int
	EmbeddingCount   int
	FileCount        int
	SizeBytes        int64
	SchemaVersion    string
}

// Initialize creates a new ProjectIndex rooted at root: it writes
// config.json, creates the on-disk layout and opens every store fresh.
// Calling Initialize on an already-initialized root re-validates and
// reopens it rather than erroring, matching the Metadata Manager's
// "Open creates an empty document if absent" idempotence.
func Initialize(root string, cfg config.Config) (*Index, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve project root %s: %v", types.ErrConfig, root, err)
	}
	paths := config.NewPaths(filepath.Join(root, StateDirName))

	written, err := config.Initialize(paths, cfg)
	if err != nil {
		return nil, err
	}
	return open(root, paths, written)
}

// Open loads an existing ProjectIndex rooted at root. It returns
// ConfigError if Initialize has not already run there.
func Open(root string) (*Index, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve project root %s: %v", types.ErrConfig, root, err)
	}
	paths := config.NewPaths(filepath.Join(root, StateDirName))

	cfg, err := config.Load(paths)
	if err != nil {
		return nil, err
	}
	return open(root, paths, cfg)
}

// open builds every store and the Indexer/Search Engine pair from an
// already-validated config and path layout.
func open(root string, paths config.Paths, cfg config.Config) (*Index, error) {
	vectors, err := vectorstore.Open(filepath.Join(paths.VectorsDir, "vectors.db"))
	if err != nil {
		return nil, fmt.Errorf("%w: open vector store: %v", types.ErrStoreUnavailable, err)
	}
	relationships, err := relstore.Open(paths.RelationshipsDB)
	if err != nil {
		_ = vectors.Close()
		return nil, fmt.Errorf("%w: open relationship store: %v", types.ErrStoreUnavailable, err)
	}
	meta, err := metadata.Open(paths.MetadataFile)
	if err != nil {
		_ = vectors.Close()
		_ = relationships.Close()
		return nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = vectors.Close()
		_ = relationships.Close()
		return nil, fmt.Errorf("%w: build embedder: %v", types.ErrEmbedding, err)
	}
	cache := embedder.NewCache(10000)

	registry := parser.NewDefaultRegistry()
	pathConfig := toPathConfig(cfg)

	idx := indexer.New(vectors, relationships, meta, registry, emb, cache, pathConfig, cfg.PoolSize)
	engine := searcher.New(vectors, relationships, meta, emb, cfg)

	return &Index{
		root:          root,
		paths:         paths,
		cfg:           cfg,
		vectors:       vectors,
		relationships: relationships,
		meta:          meta,
		registry:      registry,
		embed:         emb,
		cache:         cache,
		idx:           idx,
		search:        engine,
	}, nil
}

// toPathConfig adapts the ProjectIndex's Config into the Path Filter's
// own config shape (an extension set rather than a slice, the
// project's always-admitted dot-directories appended to the filter's
// built-in whitelist).
func toPathConfig(cfg config.Config) pathfilter.Config {
	exts := make(map[string]bool, len(cfg.FileExtensions))
	for _, e := range cfg.FileExtensions {
		exts[e] = true
	}
	return pathfilter.Config{
		Extensions:          exts,
		ExcludeGlobPatterns: cfg.ExcludePatterns,
		RespectGitignore:    cfg.RespectGitignore,
		SkipDotfiles:        cfg.SkipDotfiles,
		MaxFileSize:         pathfilter.DefaultMaxFileSize,
	}
}

// Root returns the project's absolute root path.
func (p *Index) Root() string { return p.root }

// Config returns the project's immutable configuration record.
func (p *Index) Config() config.Config { return p.cfg }

// IndexProject runs a full index_project pass over the project root.
func (p *Index) IndexProject(ctx context.Context, force bool, cb indexer.ProgressCallbacks) (*indexer.Statistics, error) {
	return p.idx.IndexProject(ctx, p.root, force, cb)
}

// IndexPath re-indexes a single project-relative path.
func (p *Index) IndexPath(ctx context.Context, relPath string, cb indexer.ProgressCallbacks) (indexer.FileStats, error) {
	return p.idx.IndexPath(ctx, p.root, relPath, cb)
}

// RemovePath removes a project-relative path's chunks and metadata
// record, e.g. after a delete the caller's watcher saw. Relationship
// edges that touch those chunks stay in the Relationship Store.
func (p *Index) RemovePath(ctx context.Context, relPath string) error {
	return p.idx.RemovePath(ctx, relPath)
}

// Search runs a query_text search over the project's indexed chunks.
func (p *Index) Search(ctx context.Context, queryText string, k int, filter vectorstore.Filter, opts searcher.Options) ([]types.SearchResult, error) {
	return p.search.Search(ctx, queryText, k, filter, opts)
}

// SearchSimilar answers search_similar(chunk_id_or_path, k): if the
// argument names a path the Metadata Manager already knows, it is
// resolved to that file's "find similar" search (averaging its chunk
// embeddings); otherwise it is treated as a literal chunk id.
func (p *Index) SearchSimilar(ctx context.Context, chunkIDOrPath string, k int, opts searcher.Options) ([]types.SearchResult, error) {
	rel := filepath.ToSlash(chunkIDOrPath)
	if _, ok := p.meta.Get(rel); ok {
		return p.search.Search(ctx, rel, k, vectorstore.Filter{}, withFindSimilar(opts))
	}
	return p.search.SearchSimilar(ctx, chunkIDOrPath, k, opts)
}

func withFindSimilar(opts searcher.Options) searcher.Options {
	opts.FindSimilar = true
	return opts
}

// AnalyzeImpact answers analyze_impact(symbol, max_depth?).
func (p *Index) AnalyzeImpact(ctx context.Context, symbol string, maxDepth int) ([]searcher.ImpactedChunk, error) {
	return p.search.AnalyzeImpact(ctx, symbol, maxDepth)
}

// CheckCircularDependencies answers check_circular_dependencies() over
// every path the Metadata Manager currently tracks.
func (p *Index) CheckCircularDependencies(ctx context.Context) ([]searcher.Cycle, error) {
	return p.search.CheckCircularDependencies(ctx, p.meta.AllPaths())
}

// Status answers get_status().
func (p *Index) Status(ctx context.Context) (Stats, error) {
	vs, err := p.vectors.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: vector store stats: %v", types.ErrStore, err)
	}
	return Stats{
		Root:              p.root,
		Initialized:       true,
		EmbeddingModel:    p.embed.Model(),
		EmbeddingProvider: p.embed.Provider(),
		ChunkCount:        vs.ChunkCount,
		EmbeddingCount:    vs.EmbeddingCount,
		FileCount:         len(p.meta.AllPaths()),
		SizeBytes:         vs.SizeBytes,
		SchemaVersion:     vs.SchemaVersion,
	}, nil
}

// Reset discards every store's contents and rebuilds them empty,
// without discarding config.json: a fresh index_project(force=true)
// afterwards rebuilds the project from scratch. It holds no in-process
// lock against a concurrent index run; callers should serialize Reset
// against IndexProject/IndexPath themselves, same as the Indexer's own
// single-writer lock does not protect cross-operation sequencing.
func (p *Index) Reset() error {
	if err := p.vectors.Close(); err != nil {
		return fmt.Errorf("%w: close vector store: %v", types.ErrStore, err)
	}
	if err := p.relationships.Close(); err != nil {
		return fmt.Errorf("%w: close relationship store: %v", types.ErrStore, err)
	}

	if err := os.RemoveAll(p.paths.VectorsDir); err != nil {
		return fmt.Errorf("%w: remove vectors dir: %v", types.ErrIO, err)
	}
	if err := os.MkdirAll(p.paths.VectorsDir, 0o755); err != nil {
		return fmt.Errorf("%w: recreate vectors dir: %v", types.ErrIO, err)
	}
	if err := os.Remove(p.paths.RelationshipsDB); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove relationships db: %v", types.ErrIO, err)
	}
	if err := p.meta.BulkReplace(nil, p.meta.AllPaths()); err != nil {
		return fmt.Errorf("%w: clear metadata: %v", types.ErrIntegrity, err)
	}

	vectors, err := vectorstore.Open(filepath.Join(p.paths.VectorsDir, "vectors.db"))
	if err != nil {
		return fmt.Errorf("%w: reopen vector store: %v", types.ErrStoreUnavailable, err)
	}
	relationships, err := relstore.Open(p.paths.RelationshipsDB)
	if err != nil {
		_ = vectors.Close()
		return fmt.Errorf("%w: reopen relationship store: %v", types.ErrStoreUnavailable, err)
	}

	p.vectors = vectors
	p.relationships = relationships
	p.idx = indexer.New(vectors, relationships, p.meta, p.registry, p.embed, p.cache, toPathConfig(p.cfg), p.cfg.PoolSize)
	p.search = searcher.New(vectors, relationships, p.meta, p.embed, p.cfg)
	return nil
}

// Close releases every underlying store's resources. It does not
// delete any on-disk state.
func (p *Index) Close() error {
	var errs []string
	if err := p.vectors.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := p.relationships.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := p.embed.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrStore, strings.Join(errs, "; "))
	}
	return nil
}

// IsInitialized reports whether root already has a ProjectIndex state
// directory, so a caller (e.g. the CLI's index command) can decide
// between Initialize and Open without probing config.Load's error type.
func IsInitialized(root string) bool {
	_, err := os.Stat(filepath.Join(root, StateDirName, "config.json"))
	return err == nil
}
