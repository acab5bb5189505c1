package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so query helpers
// can be written once and reused inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLiteStore implements Store on top of SQLite, dual-driver per
// build_cgo.go/build_purego.go.
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	pool     *leasePool
	recovery func(ctx context.Context) error // rebuild callback; nil unless WithRecoveryCallback is passed
}

// Option configures a SQLiteStore at construction.
type Option func(*SQLiteStore)

// WithPoolSize overrides the default 4-handle lease pool size.
func WithPoolSize(n int) Option {
	return func(s *SQLiteStore) { s.pool = newLeasePool(n) }
}

// WithRecoveryCallback installs the rebuild callback that withRecovery
// invokes after the integrity probe fails. internal/project opens the
// store without this option, so no rebuild runs there.
func WithRecoveryCallback(fn func(ctx context.Context) error) Option {
	return func(s *SQLiteStore) { s.recovery = fn }
}

// Open opens (creating if absent) the SQLite-backed vector store at
// dbPath and applies pending migrations.
func Open(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply vector store migrations: %w", err)
	}
	s := &SQLiteStore{db: db, dbPath: dbPath, pool: newLeasePool(4)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Add(ctx context.Context, batch []Entry) error {
	release, err := s.pool.acquireWrite(ctx)
	if err != nil {
		return err
	}
	defer release()

	return s.withRecovery(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, e := range batch {
			if err := upsertChunk(ctx, tx, e.Chunk); err != nil {
				_ = tx.Rollback()
				return err
			}
			if e.Vector != nil {
				if err := upsertEmbedding(ctx, tx, e.Chunk.ID, e.Vector); err != nil {
					_ = tx.Rollback()
					return err
				}
			}
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	release, err := s.pool.acquireWrite(ctx)
	if err != nil {
		return err
	}
	defer release()

	return s.withRecovery(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) Get(ctx context.Context, ids []string) ([]*types.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	release, err := s.pool.acquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []*types.Chunk
	err = s.withRecovery(ctx, func() error {
		out = nil
		query, args := inClause("SELECT "+chunkColumns+" FROM chunks WHERE id IN (", ids, ")")
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			c, err := scanChunk(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *SQLiteStore) GetVectors(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	release, err := s.pool.acquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	out := make(map[string][]float32)
	err = s.withRecovery(ctx, func() error {
		for k := range out {
			delete(out, k)
		}
		query, args := inClause("SELECT chunk_id, vector FROM embeddings WHERE chunk_id IN (", ids, ")")
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var id string
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				return err
			}
			out[id] = deserializeVector(blob)
		}
		return rows.Err()
	})
	return out, err
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	release, err := s.pool.acquireRead(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	err = s.withRecovery(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	})
	return n, err
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	release, err := s.pool.acquireRead(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer release()

	var st Stats
	st.SchemaVersion = CurrentSchemaVersion
	err = s.withRecovery(ctx, func() error {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&st.ChunkCount); err != nil {
			return err
		}
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&st.EmbeddingCount); err != nil {
			return err
		}
		if info, err := os.Stat(s.dbPath); err == nil {
			st.SizeBytes = info.Size()
		}
		return nil
	})
	return st, err
}

func upsertChunk(ctx context.Context, q querier, c *types.Chunk) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := q.ExecContext(ctx, `
		INSERT INTO chunks (
			id, file_path, start_line, end_line, kind, name, language,
			content, content_hash, skeleton, docstring, leading_comment,
			parent_id, parse_quality, grade, smell_count,
			cyclomatic_complexity, cognitive_complexity, nesting_depth,
			parameter_count, method_count, lines_of_code,
			is_aggregate_root, is_entity, is_value_object, is_repository,
			is_service, is_command, is_query, is_handler,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			file_path=excluded.file_path, start_line=excluded.start_line,
			end_line=excluded.end_line, kind=excluded.kind, name=excluded.name,
			language=excluded.language, content=excluded.content,
			content_hash=excluded.content_hash, skeleton=excluded.skeleton,
			docstring=excluded.docstring, leading_comment=excluded.leading_comment,
			parent_id=excluded.parent_id, parse_quality=excluded.parse_quality,
			grade=excluded.grade, smell_count=excluded.smell_count,
			cyclomatic_complexity=excluded.cyclomatic_complexity,
			cognitive_complexity=excluded.cognitive_complexity,
			nesting_depth=excluded.nesting_depth,
			parameter_count=excluded.parameter_count,
			method_count=excluded.method_count, lines_of_code=excluded.lines_of_code,
			is_aggregate_root=excluded.is_aggregate_root, is_entity=excluded.is_entity,
			is_value_object=excluded.is_value_object, is_repository=excluded.is_repository,
			is_service=excluded.is_service, is_command=excluded.is_command,
			is_query=excluded.is_query, is_handler=excluded.is_handler,
			updated_at=excluded.updated_at
	`,
		c.ID, c.FilePath, c.StartLine, c.EndLine, string(c.Kind), c.Name, c.Language,
		c.Content, c.ContentHash[:], c.Skeleton, c.Docstring, c.LeadingComment,
		nullableString(c.ParentID), string(c.ParseQuality), string(c.Quality.Grade), c.Quality.SmellCount(),
		c.Quality.CyclomaticComplexity, c.Quality.CognitiveComplexity, c.Quality.NestingDepth,
		c.Quality.ParameterCount, c.Quality.MethodCount, c.Quality.LinesOfCode,
		c.DDD.IsAggregateRoot, c.DDD.IsEntity, c.DDD.IsValueObject, c.DDD.IsRepository,
		c.DDD.IsService, c.DDD.IsCommand, c.DDD.IsQuery, c.DDD.IsHandler,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func upsertEmbedding(ctx context.Context, q querier, chunkID string, vector []float32) error {
	blob := serializeVector(vector)
	_, err := q.ExecContext(ctx, `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, '', '', ?)
		ON CONFLICT(chunk_id) DO UPDATE SET vector=excluded.vector, dimension=excluded.dimension
	`, chunkID, blob, len(vector), time.Now())
	return err
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const chunkColumns = `id, file_path, start_line, end_line, kind, name, language,
	content, content_hash, skeleton, docstring, leading_comment,
	parent_id, parse_quality, grade, smell_count,
	cyclomatic_complexity, cognitive_complexity, nesting_depth,
	parameter_count, method_count, lines_of_code,
	is_aggregate_root, is_entity, is_value_object, is_repository,
	is_service, is_command, is_query, is_handler,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanChunk scans one chunkColumns row. The stored smell_count column
// is a denormalized filter predicate only (smell_count <= n); the
// full Quality.Smells detail is not persisted, so it is not restored
// here.
func scanChunk(row rowScanner) (*types.Chunk, error) {
	var c types.Chunk
	dest, apply := chunkScanDest(&c)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := apply(); err != nil {
		return nil, err
	}
	return &c, nil
}

func inClause(prefix string, ids []string, suffix string) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	query := prefix
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += suffix
	return query, args
}
