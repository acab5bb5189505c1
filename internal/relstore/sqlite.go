package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx, the same pattern
// internal/vectorstore uses to write query helpers once and reuse
// them inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteStore implements Store on top of relationships.db.
//
// Unlike the Vector Store, relationships.db carries no lease-pool: its
// single-writer guarantee is scoped to the Vector Store specifically,
// and edge upserts here are small, single-statement transactions. A
// plain mutex serializes writes against SQLite's own single-writer
// constraint (SetMaxOpenConns(1)) without the read/write lease
// accounting the Vector Store needs.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens (creating if absent) the SQLite-backed relationship store
// at dbPath and applies pending migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open relationship store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply relationship store migrations: %w", err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, edges []types.Relationship) error {
	if len(edges) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := upsertEdge(ctx, tx, e); err != nil {
			_ = tx.Rollback()
			return err
		}
		if inv, ok := e.Kind.Inverse(); ok {
			reverse := types.Relationship{
				SourceChunkID: e.TargetChunkID,
				TargetChunkID: e.SourceChunkID,
				Kind:          inv,
				Weight:        e.Weight,
			}
			if err := upsertEdge(ctx, tx, reverse); err != nil {
				_ = tx.Rollback()
				return err
			}
		} else if e.Kind == types.RelSemanticallySimilar {
			reverse := types.Relationship{
				SourceChunkID: e.TargetChunkID,
				TargetChunkID: e.SourceChunkID,
				Kind:          e.Kind,
				Weight:        e.Weight,
			}
			if err := upsertEdge(ctx, tx, reverse); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

func upsertEdge(ctx context.Context, q querier, e types.Relationship) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO relationships (source_chunk_id, target_chunk_id, kind, weight)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_chunk_id, target_chunk_id, kind) DO UPDATE SET weight=excluded.weight
	`, e.SourceChunkID, e.TargetChunkID, string(e.Kind), e.Weight)
	return err
}

func (s *SQLiteStore) Incoming(ctx context.Context, id string, kind *types.RelationshipKind) ([]types.Relationship, error) {
	query := "SELECT source_chunk_id, target_chunk_id, kind, weight FROM relationships WHERE target_chunk_id = ?"
	args := []interface{}{id}
	if kind != nil {
		query += " AND kind = ?"
		args = append(args, string(*kind))
	}
	return s.queryEdges(ctx, query, args...)
}

func (s *SQLiteStore) Outgoing(ctx context.Context, id string, kind *types.RelationshipKind) ([]types.Relationship, error) {
	query := "SELECT source_chunk_id, target_chunk_id, kind, weight FROM relationships WHERE source_chunk_id = ?"
	args := []interface{}{id}
	if kind != nil {
		query += " AND kind = ?"
		args = append(args, string(*kind))
	}
	return s.queryEdges(ctx, query, args...)
}

// Siblings surfaces chunks related to id through containment (id's
// parent's other children, found by following contained_by then
// contains) or semantic similarity, merged and ranked by descending
// weight. Containment is not itself weighted, so sibling-by-parent
// edges are synthesized with weight 1.0; a chunk reachable through
// both containment and semantic similarity keeps its higher weight.
func (s *SQLiteStore) Siblings(ctx context.Context, id string, topK int) ([]types.Relationship, error) {
	byTarget := make(map[string]types.Relationship)

	containedBy, err := s.Outgoing(ctx, id, kindPtr(types.RelContainedBy))
	if err != nil {
		return nil, err
	}
	for _, parentEdge := range containedBy {
		children, err := s.Outgoing(ctx, parentEdge.TargetChunkID, kindPtr(types.RelContains))
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if child.TargetChunkID == id {
				continue
			}
			byTarget[child.TargetChunkID] = types.Relationship{
				SourceChunkID: id,
				TargetChunkID: child.TargetChunkID,
				Kind:          types.RelContains,
				Weight:        1.0,
			}
		}
	}

	similar, err := s.Outgoing(ctx, id, kindPtr(types.RelSemanticallySimilar))
	if err != nil {
		return nil, err
	}
	for _, edge := range similar {
		if existing, ok := byTarget[edge.TargetChunkID]; !ok || edge.Weight > existing.Weight {
			byTarget[edge.TargetChunkID] = edge
		}
	}

	out := make([]types.Relationship, 0, len(byTarget))
	for _, edge := range byTarget {
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].TargetChunkID < out[j].TargetChunkID
	})
	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}
	return out, nil
}

func kindPtr(k types.RelationshipKind) *types.RelationshipKind { return &k }

func (s *SQLiteStore) queryEdges(ctx context.Context, query string, args ...interface{}) ([]types.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []types.Relationship
	for rows.Next() {
		var e types.Relationship
		var kind string
		if err := rows.Scan(&e.SourceChunkID, &e.TargetChunkID, &kind, &e.Weight); err != nil {
			return nil, err
		}
		e.Kind = types.RelationshipKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
