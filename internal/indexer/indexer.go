package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anthropic-exercise/codeintel/internal/embedder"
	"github.com/anthropic-exercise/codeintel/internal/hasher"
	"github.com/anthropic-exercise/codeintel/internal/metadata"
	"github.com/anthropic-exercise/codeintel/internal/parser"
	"github.com/anthropic-exercise/codeintel/internal/pathfilter"
	"github.com/anthropic-exercise/codeintel/internal/relstore"
	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// ErrAlreadyIndexing is returned by IndexProject/IndexPath/RemovePath
// when another run already holds the single-writer IndexLock.
var ErrAlreadyIndexing = errors.New("indexer: an index run is already in progress")

// ProgressCallbacks lets a caller observe a run without blocking it.
// Each callback
// fires synchronously on whichever worker goroutine finished that
// file, so a slow callback only slows that file's worker.
type ProgressCallbacks struct {
	OnFileStarted  func(path string)
	OnFileFinished func(path string, stats FileStats)
	OnError        func(path string, err error)
}

func (cb ProgressCallbacks) fileStarted(path string) {
	if cb.OnFileStarted != nil {
		cb.OnFileStarted(path)
	}
}

func (cb ProgressCallbacks) fileFinished(path string, stats FileStats) {
	if cb.OnFileFinished != nil {
		cb.OnFileFinished(path, stats)
	}
}

func (cb ProgressCallbacks) fileError(path string, err error) {
	if cb.OnError != nil {
		cb.OnError(path, err)
	}
}

// FileStats summarizes one file's to_add/to_update/to_delete diff.
type FileStats struct {
	Added   int
	Updated int
	Deleted int
}

// Statistics summarizes a full index_project run.
type Statistics struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	ChunksAdded   int
	ChunksUpdated int
	ChunksDeleted int
	Duration      time.Duration
	Errors        []string
}

// Indexer drives the incremental indexing protocol: Path Filter -> Language
// Parser Registry -> diff against the Metadata Manager's FileRecord ->
// Embedder (deduped by content_hash) -> Vector Store -> Relationship
// Store -> FileRecord written last, fanned out over a bounded worker
// pool with content-addressed, multi-language, multi-store storage.
type Indexer struct {
	vectors       vectorstore.Store
	relationships relstore.Store
	metadata      *metadata.Manager
	registry      *parser.Registry
	embed         embedder.Embedder
	cache         *embedder.Cache
	pathConfig    pathfilter.Config
	moduleName    string
	workers       int

	lock    IndexLock
	symbols *symbolTable
}

// New builds an Indexer from its already-constructed dependencies.
// workers <= 0 selects runtime.NumCPU(), so the pool defaults to
// min(cores, configured_max).
func New(vectors vectorstore.Store, relationships relstore.Store, meta *metadata.Manager,
	registry *parser.Registry, embed embedder.Embedder, cache *embedder.Cache,
	pathConfig pathfilter.Config, workers int) *Indexer {
	if workers <= 0 || workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	return &Indexer{
		vectors:       vectors,
		relationships: relationships,
		metadata:      meta,
		registry:      registry,
		embed:         embed,
		cache:         cache,
		pathConfig:    pathConfig,
		workers:       workers,
		symbols:       newSymbolTable(),
	}
}

// parsedFile is one candidate's step-1/step-2 output: gatekeeper
// verdict plus (if not skipped) its emitted chunks.
type parsedFile struct {
	candidate pathfilter.Candidate
	language  string
	chunks    []*types.Chunk
	skip      bool
}

// IndexProject runs a full traversal of root. If force, the gatekeeper
// file-hash skip (step 1) is bypassed and every candidate is
// reprocessed. Processing happens in two worker-pool passes: the first
// parses every non-skipped file and populates the project-wide call
// symbol table (so a file processed early can still resolve a call
// into a file processed later), the second diffs/embeds/stores each
// file against the Vector Store, Relationship Store and Metadata
// Manager.
func (idx *Indexer) IndexProject(ctx context.Context, root string, force bool, cb ProgressCallbacks) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrAlreadyIndexing
	}
	defer idx.lock.Release()

	idx.readModuleName(root)

	start := time.Now()
	stats := &Statistics{}

	candidates, _, err := pathfilter.Filter(ctx, root, idx.pathConfig)
	if err != nil {
		return nil, fmt.Errorf("discover candidates: %w", err)
	}
	candidates = prioritize(root, candidates)

	knownPaths := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		knownPaths[filepath.ToSlash(c.RelPath)] = true
	}

	parsed, err := idx.parseAll(ctx, candidates, force, stats, cb)
	if err != nil {
		return nil, fmt.Errorf("parse phase: %w", err)
	}

	if err := idx.storeAll(ctx, parsed, knownPaths, stats, cb); err != nil {
		return nil, fmt.Errorf("store phase: %w", err)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// IndexPath re-indexes a single file, e.g. in response to a watcher
// event. It does not take the project-wide two-pass path IndexProject
// does: calls/imports resolve against whatever the in-memory symbol
// table and the Metadata Manager's current path set already know,
// which is the session-scoped best-effort behaviour documented on
// symbolTable.
func (idx *Indexer) IndexPath(ctx context.Context, root, relPath string, cb ProgressCallbacks) (FileStats, error) {
	if !idx.lock.TryAcquire() {
		return FileStats{}, ErrAlreadyIndexing
	}
	defer idx.lock.Release()

	idx.readModuleName(root)

	rel := filepath.ToSlash(relPath)
	abs := filepath.Join(root, relPath)

	content, err := os.ReadFile(abs)
	if err != nil {
		return FileStats{}, fmt.Errorf("%w: read %s: %v", types.ErrIO, rel, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileStats{}, fmt.Errorf("%w: stat %s: %v", types.ErrIO, rel, err)
	}

	cb.fileStarted(rel)

	chunks, err := idx.registry.Parse(rel, content)
	if err != nil {
		cb.fileError(rel, err)
		return FileStats{}, fmt.Errorf("%w: %s: %v", types.ErrParse, rel, err)
	}
	_, language, _ := idx.registry.Lookup(rel)
	idx.symbols.register(chunks)

	pf := parsedFile{
		candidate: pathfilter.Candidate{
			AbsPath: abs,
			RelPath: rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Content: content,
		},
		language: language,
		chunks:   chunks,
	}

	knownPaths := map[string]bool{rel: true}
	for _, p := range idx.metadata.AllPaths() {
		knownPaths[filepath.ToSlash(p)] = true
	}

	fstats, err := idx.storeFile(ctx, pf, knownPaths)
	if err != nil {
		cb.fileError(rel, err)
		return FileStats{}, err
	}
	cb.fileFinished(rel, fstats)
	return fstats, nil
}

// RemovePath deletes relPath's chunks from the Vector Store and its
// FileRecord from the Metadata Manager. Removing a path that isn't
// currently tracked is not an error.
func (idx *Indexer) RemovePath(ctx context.Context, relPath string) error {
	if !idx.lock.TryAcquire() {
		return ErrAlreadyIndexing
	}
	defer idx.lock.Release()

	rel := filepath.ToSlash(relPath)
	rec, ok := idx.metadata.Get(rel)
	if !ok {
		return nil
	}
	if len(rec.ChunkIDs) > 0 {
		if err := idx.vectors.Delete(ctx, rec.ChunkIDs); err != nil {
			return fmt.Errorf("delete chunks for %s: %w", rel, err)
		}
	}
	return idx.metadata.Delete(rel)
}

// parseAll is the incremental protocol's steps 1-2 across every
// candidate, fanned out over a bounded worker pool. A file whose
// gatekeeper hash matches its FileRecord (and force is false) is
// marked skip and never parsed.
func (idx *Indexer) parseAll(ctx context.Context, candidates []pathfilter.Candidate, force bool, stats *Statistics, cb ProgressCallbacks) ([]parsedFile, error) {
	results := make([]parsedFile, len(candidates))
	sem := make(chan struct{}, idx.workers)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			cb.fileStarted(c.RelPath)
			rel := filepath.ToSlash(c.RelPath)
			fileHash := hasher.FileHashBytes(c.Content)

			if !force {
				if rec, ok := idx.metadata.Get(rel); ok && rec.FileHash == fileHash {
					mu.Lock()
					stats.FilesSkipped++
					mu.Unlock()
					results[i] = parsedFile{candidate: c, skip: true}
					return nil
				}
			}

			chunks, err := idx.registry.Parse(rel, c.Content)
			if err != nil {
				mu.Lock()
				stats.FilesFailed++
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", rel, err))
				mu.Unlock()
				cb.fileError(rel, err)
				results[i] = parsedFile{candidate: c, skip: true}
				return nil
			}
			_, language, _ := idx.registry.Lookup(rel)
			idx.symbols.register(chunks)
			results[i] = parsedFile{candidate: c, language: language, chunks: chunks}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// storeAll is the incremental protocol's steps 3-6 across every parsed
// (non-skipped) file. Per-file failures are isolated; a Vector Store
// write-path failure that exhausts its recovery protocol
// (vectorstore.ErrStoreUnavailable) instead halts the whole batch,
// since the store itself is no longer trustworthy for the remaining
// files.
func (idx *Indexer) storeAll(ctx context.Context, parsed []parsedFile, knownPaths map[string]bool, stats *Statistics, cb ProgressCallbacks) error {
	sem := make(chan struct{}, idx.workers)
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, pf := range parsed {
		if pf.skip {
			continue
		}
		pf := pf
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			fstats, err := idx.storeFile(gctx, pf, knownPaths)
			if err != nil {
				if errors.Is(err, vectorstore.ErrStoreUnavailable) {
					return err
				}
				mu.Lock()
				stats.FilesFailed++
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", pf.candidate.RelPath, err))
				mu.Unlock()
				cb.fileError(pf.candidate.RelPath, err)
				return nil
			}

			mu.Lock()
			stats.FilesIndexed++
			stats.ChunksAdded += fstats.Added
			stats.ChunksUpdated += fstats.Updated
			stats.ChunksDeleted += fstats.Deleted
			mu.Unlock()
			cb.fileFinished(pf.candidate.RelPath, fstats)
			return nil
		})
	}
	return g.Wait()
}

// storeFile runs the diff (step 3), dedup-embed (step 4), delete (step
// 5) and FileRecord write (step 6, always last) for one already-parsed
// file, plus Relationship Store derivation.
func (idx *Indexer) storeFile(ctx context.Context, pf parsedFile, knownPaths map[string]bool) (FileStats, error) {
	rel := filepath.ToSlash(pf.candidate.RelPath)

	var existingIDs []string
	if rec, ok := idx.metadata.Get(rel); ok {
		existingIDs = rec.ChunkIDs
	}

	existingHash := make(map[string][16]byte, len(existingIDs))
	if len(existingIDs) > 0 {
		existing, err := idx.vectors.Get(ctx, existingIDs)
		if err != nil {
			return FileStats{}, fmt.Errorf("fetch existing chunks for %s: %w", rel, err)
		}
		for _, c := range existing {
			existingHash[c.ID] = c.ContentHash
		}
	}
	existingSet := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existingSet[id] = true
	}

	var toAdd, toUpdate []*types.Chunk
	newIDs := make(map[string]bool, len(pf.chunks))
	for _, c := range pf.chunks {
		newIDs[c.ID] = true
		switch {
		case !existingSet[c.ID]:
			toAdd = append(toAdd, c)
		case existingHash[c.ID] != c.ContentHash:
			toUpdate = append(toUpdate, c)
		}
	}

	var toDelete []string
	for _, id := range existingIDs {
		if !newIDs[id] {
			toDelete = append(toDelete, id)
		}
	}

	toEmbed := make([]*types.Chunk, 0, len(toAdd)+len(toUpdate))
	toEmbed = append(toEmbed, toAdd...)
	toEmbed = append(toEmbed, toUpdate...)
	if err := idx.embedAndStore(ctx, toEmbed); err != nil {
		return FileStats{}, fmt.Errorf("embed and store chunks for %s: %w", rel, err)
	}

	if len(toDelete) > 0 {
		if err := idx.vectors.Delete(ctx, toDelete); err != nil {
			return FileStats{}, fmt.Errorf("delete stale chunks for %s: %w", rel, err)
		}
	}

	edges := deriveContains(rel, pf.chunks)
	edges = append(edges, deriveCalls(pf.chunks, idx.symbols)...)
	edges = append(edges, deriveImports(rel, pf.language, pf.candidate.Content, idx.moduleName, knownPaths)...)
	if len(edges) > 0 {
		if err := idx.relationships.Upsert(ctx, edges); err != nil {
			return FileStats{}, fmt.Errorf("upsert relationships for %s: %w", rel, err)
		}
	}

	chunkIDs := make([]string, 0, len(pf.chunks))
	for _, c := range pf.chunks {
		chunkIDs = append(chunkIDs, c.ID)
	}
	rec := types.FileRecord{
		Path:        rel,
		Size:        pf.candidate.Size,
		ModTime:     pf.candidate.ModTime,
		FileHash:    hasher.FileHashBytes(pf.candidate.Content),
		ChunkIDs:    chunkIDs,
		Language:    pf.language,
		IndexedAt:   time.Now(),
		LossyDecode: pf.candidate.LossyDecode,
	}
	// The Metadata Manager write is last: if anything above failed,
	// we have already returned, and this file's FileRecord is left
	// exactly as it was, so the next run retries it from scratch.
	if err := idx.metadata.Put(rec); err != nil {
		return FileStats{}, fmt.Errorf("write file record for %s: %w", rel, err)
	}

	return FileStats{Added: len(toAdd), Updated: len(toUpdate), Deleted: len(toDelete)}, nil
}

// embedAndStore generates embeddings for chunks, deduped by
// ContentHash through the Embedder's cache (step 4), and writes the
// resulting {id, vector, metadata} entries to the Vector Store.
func (idx *Indexer) embedAndStore(ctx context.Context, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	byHash := make(map[[16]byte][]*types.Chunk)
	var order [][16]byte
	for _, c := range chunks {
		if _, ok := byHash[c.ContentHash]; !ok {
			order = append(order, c.ContentHash)
		}
		byHash[c.ContentHash] = append(byHash[c.ContentHash], c)
	}

	vectors := make(map[[16]byte][]float32, len(order))
	var missHashes [][16]byte
	var missTexts []string
	for _, h := range order {
		key := hex.EncodeToString(h[:])
		if emb, ok := idx.cache.Get(key); ok {
			vectors[h] = emb.Vector
			continue
		}
		missHashes = append(missHashes, h)
		missTexts = append(missTexts, byHash[h][0].Content)
	}

	if len(missTexts) > 0 {
		resp, err := idx.embed.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: missTexts})
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrEmbedding, err)
		}
		if len(resp.Embeddings) != len(missHashes) {
			return fmt.Errorf("%w: embedder returned %d vectors for %d inputs", types.ErrEmbedding, len(resp.Embeddings), len(missHashes))
		}
		for i, h := range missHashes {
			emb := resp.Embeddings[i]
			vectors[h] = emb.Vector
			idx.cache.Set(hex.EncodeToString(h[:]), emb)
		}
	}

	entries := make([]vectorstore.Entry, 0, len(chunks))
	for _, c := range chunks {
		vec, ok := vectors[c.ContentHash]
		if !ok {
			return fmt.Errorf("%w: no embedding resolved for chunk %s", types.ErrEmbedding, c.ID)
		}
		entries = append(entries, vectorstore.Entry{Chunk: c, Vector: vec})
	}

	return idx.vectors.Add(ctx, entries)
}

// readModuleName reads go.mod's module line once, for Go import
// resolution in deriveImports. A no-op once moduleName is already set,
// or if root carries no go.mod (a non-Go or mixed-language project).
func (idx *Indexer) readModuleName(root string) {
	if idx.moduleName != "" {
		return
	}
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			idx.moduleName = strings.TrimSpace(strings.TrimPrefix(line, "module"))
			return
		}
	}
}
