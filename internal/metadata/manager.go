// Package metadata implements the Metadata Manager: a persistent
// path → FileRecord mapping backed by a single JSON document with
// write-to-temp + rename atomicity. It never stores chunk vectors —
// only bookkeeping the Indexer's incremental-update protocol relies on.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// document is the on-disk shape of metadata.json.
type document struct {
	Records map[string]*types.FileRecord `json:"records"`
}

// Manager is the Metadata Manager. All mutating operations hold mu for
// their duration; the manager is safe for concurrent use by the
// Indexer's worker pool even though writes to Vector Store chunk
// content happen outside this package.
type Manager struct {
	mu   sync.RWMutex
	path string
	doc  document
}

// Open loads path into memory, creating an empty document if it does
// not yet exist.
func Open(path string) (*Manager, error) {
	m := &Manager{path: path, doc: document{Records: map[string]*types.FileRecord{}}}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrIO, path, err)
	}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m.doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", types.ErrIntegrity, path, err)
	}
	if m.doc.Records == nil {
		m.doc.Records = map[string]*types.FileRecord{}
	}
	return m, nil
}

// Get returns the FileRecord for path, or ok=false if absent.
func (m *Manager) Get(path string) (types.FileRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.doc.Records[path]
	if !ok {
		return types.FileRecord{}, false
	}
	return *rec, true
}

// Put upserts one FileRecord and persists the document atomically.
func (m *Manager) Put(rec types.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Records[rec.Path] = &rec
	return m.flushLocked()
}

// Delete removes path's FileRecord and persists the document atomically.
// It is a no-op if path is not present.
func (m *Manager) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doc.Records[path]; !ok {
		return nil
	}
	delete(m.doc.Records, path)
	return m.flushLocked()
}

// AllPaths returns every known path, in no particular order.
func (m *Manager) AllPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.doc.Records))
	for p := range m.doc.Records {
		paths = append(paths, p)
	}
	return paths
}

// BulkReplace atomically replaces records for the given set and removes
// removedPaths, in a single on-disk write. On-disk state matches
// in-memory state when this returns nil; on error the in-memory state
// is rolled back to its pre-call contents so the two never diverge.
func (m *Manager) BulkReplace(records []types.FileRecord, removedPaths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := make(map[string]*types.FileRecord, len(m.doc.Records))
	for k, v := range m.doc.Records {
		backup[k] = v
	}

	for _, rec := range records {
		r := rec
		m.doc.Records[r.Path] = &r
	}
	for _, p := range removedPaths {
		delete(m.doc.Records, p)
	}

	if err := m.flushLocked(); err != nil {
		m.doc.Records = backup
		return err
	}
	return nil
}

// flushLocked writes the document to a temp file in the same directory
// and renames it over path, giving atomic replace semantics on any
// filesystem where rename is atomic within a directory (true of all
// mainstream local filesystems on a single volume).
func (m *Manager) flushLocked() error {
	raw, err := json.MarshalIndent(m.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", types.ErrIntegrity, err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", types.ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", types.ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", types.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", types.ErrIO, err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		return fmt.Errorf("%w: rename into place: %v", types.ErrIO, err)
	}
	return nil
}
