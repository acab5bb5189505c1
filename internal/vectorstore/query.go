package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

// ftsOperatorPattern matches FTS5's boolean operators so sanitizeFTSQuery
// can escape them.
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

func (s *SQLiteStore) Query(ctx context.Context, qVec []float32, k int, filter Filter) ([]Result, error) {
	release, err := s.pool.acquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var results []Result
	err = s.withRecovery(ctx, func() error {
		var qerr error
		if VectorExtensionAvailable {
			results, qerr = s.queryOptimized(ctx, qVec, k, filter)
		} else {
			results, qerr = s.queryFallback(ctx, qVec, k, filter)
		}
		return qerr
	})
	return results, err
}

// queryOptimized uses sqlite-vec's vec_distance_cosine to rank and
// limit at the SQL layer.
func (s *SQLiteStore) queryOptimized(ctx context.Context, qVec []float32, k int, filter Filter) ([]Result, error) {
	blob := serializeVector(qVec)
	query := `
		SELECT ` + prefixed("c", chunkColumns) + `, 1.0 - vec_distance_cosine(e.vector, ?) as similarity
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE 1=1
	`
	args := []interface{}{blob}
	query, args = applyFilter(query, args, filter)
	query += " ORDER BY similarity DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Result
	for rows.Next() {
		c, score, err := scanChunkWithScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, Result{ID: c.ID, Score: score, Metadata: c})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out, err = filterByPathRegex(out, filter.PathRegex)
	if err != nil {
		return nil, err
	}
	return truncateResults(out, k), nil
}

// queryFallback computes cosine similarity in Go when sqlite-vec is
// unavailable, generalizing searchVectorFallback.
func (s *SQLiteStore) queryFallback(ctx context.Context, qVec []float32, k int, filter Filter) ([]Result, error) {
	query := `SELECT ` + prefixed("c", chunkColumns) + `, e.vector FROM chunks c INNER JOIN embeddings e ON c.id = e.chunk_id WHERE 1=1`
	var args []interface{}
	query, args = applyFilter(query, args, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type candidate struct {
		chunk *types.Chunk
		score float64
	}
	var candidates []candidate
	for rows.Next() {
		var vectorBlob []byte
		c, err := scanChunkAndVector(rows, &vectorBlob)
		if err != nil {
			return nil, err
		}
		vec := deserializeVector(vectorBlob)
		if len(vec) != len(qVec) {
			continue
		}
		candidates = append(candidates, candidate{chunk: c, score: cosineSimilarity(qVec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if filter.PathRegex != "" {
		re, err := regexp.Compile(filter.PathRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid file_path regex: %w", err)
		}
		filtered := candidates[:0]
		for _, cand := range candidates {
			if re.MatchString(cand.chunk.FilePath) {
				filtered = append(filtered, cand)
			}
		}
		candidates = filtered
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if k > 0 && k < len(candidates) {
		candidates = candidates[:k]
	}
	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = Result{ID: c.chunk.ID, Score: c.score, Metadata: c.chunk}
	}
	return out, nil
}

func (s *SQLiteStore) SearchText(ctx context.Context, query string, k int, filter Filter) ([]Result, error) {
	release, err := s.pool.acquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("vectorstore: empty search query")
	}

	var results []Result
	err = s.withRecovery(ctx, func() error {
		sqlQuery := `
			SELECT ` + prefixed("c", chunkColumns) + `, bm25(chunks_fts) as score
			FROM chunks_fts
			INNER JOIN chunks c ON chunks_fts.rowid = c.rowid
			WHERE chunks_fts MATCH ?
		`
		args := []interface{}{sanitized}
		sqlQuery, args = applyFilter(sqlQuery, args, filter)
		sqlQuery += " ORDER BY score"

		rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
		if err != nil {
			return fmt.Errorf("text query: %w", err)
		}
		defer func() { _ = rows.Close() }()

		results = nil
		for rows.Next() {
			c, bm25, err := scanChunkWithScore(rows)
			if err != nil {
				return err
			}
			// BM25 is negative, lower (more negative) is better; fold
			// into a positive [0,1]-ish similarity score so it composes
			// with vector scores in the Search Engine's re-rank formula.
			score := 1.0 / (1.0 + math.Abs(bm25)/50.0)
			results = append(results, Result{ID: c.ID, Score: score, Metadata: c})
		}
		if err := rows.Err(); err != nil {
			return err
		}
		results, err = filterByPathRegex(results, filter.PathRegex)
		if err != nil {
			return err
		}
		results = truncateResults(results, k)
		return nil
	})
	return results, err
}

// applyFilter renders a Filter into the WHERE clause. It must be
// called against a query whose FROM clause aliases the chunks table
// as "c".
func applyFilter(query string, args []interface{}, f Filter) (string, []interface{}) {
	if len(f.Languages) > 0 {
		q, a := inClause(" AND c.language IN (", f.Languages, ")")
		query += q
		args = append(args, a...)
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		q, a := inClause(" AND c.kind IN (", kinds, ")")
		query += q
		args = append(args, a...)
	}
	if f.PathPrefix != "" {
		query += " AND c.file_path LIKE ?"
		args = append(args, f.PathPrefix+"%")
	}
	if f.PathGlob != "" {
		query += " AND c.file_path GLOB ?"
		args = append(args, f.PathGlob)
	}
	// f.PathRegex is applied in Go after scanning, via filterByPathRegex:
	// neither mattn/go-sqlite3 nor modernc.org/sqlite registers a SQL
	// REGEXP function by default.
	if f.MaxGrade != "" {
		allowed := gradesAtLeastAsGoodAs(f.MaxGrade)
		q, a := inClause(" AND c.grade IN (", allowed, ")")
		query += q
		args = append(args, a...)
	}
	if f.MaxSmells != nil {
		query += " AND c.smell_count <= ?"
		args = append(args, *f.MaxSmells)
	}
	if f.ComplexityMin != nil {
		query += " AND c.cyclomatic_complexity >= ?"
		args = append(args, *f.ComplexityMin)
	}
	if f.ComplexityMax != nil {
		query += " AND c.cyclomatic_complexity <= ?"
		args = append(args, *f.ComplexityMax)
	}
	return query, args
}

// filterByPathRegex applies the file_path regex predicate
// in Go, since no SQL REGEXP function is registered against either
// SQLite driver. A no-op when pattern is empty.
func filterByPathRegex(results []Result, pattern string) ([]Result, error) {
	if pattern == "" {
		return results, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid file_path regex: %w", err)
	}
	out := results[:0]
	for _, r := range results {
		if r.Metadata != nil && re.MatchString(r.Metadata.FilePath) {
			out = append(out, r)
		}
	}
	return out, nil
}

func truncateResults(results []Result, k int) []Result {
	if k > 0 && k < len(results) {
		return results[:k]
	}
	return results
}

func gradesAtLeastAsGoodAs(threshold types.Grade) []string {
	all := []types.Grade{types.GradeA, types.GradeB, types.GradeC, types.GradeD, types.GradeF}
	var out []string
	for _, g := range all {
		if types.GradeAtLeastAsGoodAs(g, threshold) {
			out = append(out, string(g))
		}
	}
	return out
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// chunkScanDest returns scan destinations for the chunkColumns
// projection plus whatever trailing columns extra supplies (a score,
// a vector blob, or nothing), applying the scanned values into c
// after Scan succeeds via the returned apply func.
func chunkScanDest(c *types.Chunk, extra ...interface{}) ([]interface{}, func() error) {
	var kind, grade, parseQuality string
	var parentID sql.NullString
	var contentHash []byte

	dest := []interface{}{
		&c.ID, &c.FilePath, &c.StartLine, &c.EndLine, &kind, &c.Name, &c.Language,
		&c.Content, &contentHash, &c.Skeleton, &c.Docstring, &c.LeadingComment,
		&parentID, &parseQuality, &grade, new(int),
		&c.Quality.CyclomaticComplexity, &c.Quality.CognitiveComplexity, &c.Quality.NestingDepth,
		&c.Quality.ParameterCount, &c.Quality.MethodCount, &c.Quality.LinesOfCode,
		&c.DDD.IsAggregateRoot, &c.DDD.IsEntity, &c.DDD.IsValueObject, &c.DDD.IsRepository,
		&c.DDD.IsService, &c.DDD.IsCommand, &c.DDD.IsQuery, &c.DDD.IsHandler,
		&c.CreatedAt, &c.UpdatedAt,
	}
	dest = append(dest, extra...)
	apply := func() error {
		c.Kind = types.ChunkKind(kind)
		c.ParseQuality = types.ParseQuality(parseQuality)
		c.Quality.Grade = types.Grade(grade)
		if parentID.Valid {
			c.ParentID = parentID.String
		}
		if len(contentHash) == 16 {
			copy(c.ContentHash[:], contentHash)
		}
		return nil
	}
	return dest, apply
}

func scanChunkWithScore(rows *sql.Rows) (*types.Chunk, float64, error) {
	var c types.Chunk
	var score float64
	dest, apply := chunkScanDest(&c, &score)
	if err := rows.Scan(dest...); err != nil {
		return nil, 0, err
	}
	if err := apply(); err != nil {
		return nil, 0, err
	}
	return &c, score, nil
}

func scanChunkAndVector(rows *sql.Rows, blob *[]byte) (*types.Chunk, error) {
	var c types.Chunk
	dest, apply := chunkScanDest(&c, blob)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	if err := apply(); err != nil {
		return nil, err
	}
	return &c, nil
}

func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sanitizeFTSQuery escapes FTS5 special characters/operators.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		`"`, `\"`,
		`*`, `\*`,
		`(`, `\(`,
		`)`, `\)`,
	)
	escaped := replacer.Replace(query)
	escaped = ftsOperatorPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `\` + match
	})
	return escaped
}
