package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/vecsync/vecsync/pkg/types"
)

// hasBatchSize bounds the number of parameters per existence query; SQLite
// limits bound parameters per statement.
const hasBatchSize = 500

// SQLiteStore implements Store using SQLite. The chunks table carries both
// the vector and the sync metadata, so the database file is the single
// source of truth for change detection.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore opens (or creates) the store at dbPath and applies pending
// migrations. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert writes points inside a single transaction: either the whole batch
// becomes visible or none of it does.
func (s *SQLiteStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", types.ErrStoreWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO chunks (chunk_id, text, vector, dimension, source_path, scope_root,
		                    file_mtime_ns, chunk_index, chunk_total, content_hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(chunk_id) DO UPDATE SET
			text = excluded.text,
			vector = excluded.vector,
			dimension = excluded.dimension,
			source_path = excluded.source_path,
			scope_root = excluded.scope_root,
			file_mtime_ns = excluded.file_mtime_ns,
			chunk_index = excluded.chunk_index,
			chunk_total = excluded.chunk_total,
			content_hash = excluded.content_hash,
			updated_at = CURRENT_TIMESTAMP
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", types.ErrStoreWrite, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range points {
		_, err := stmt.ExecContext(ctx,
			p.ID, p.Text, serializeVector(p.Vector), len(p.Vector),
			p.Metadata.SourcePath, p.Metadata.ScopeRoot,
			p.Metadata.FileModTime.UnixNano(), p.Metadata.ChunkIndex,
			p.Metadata.ChunkTotal, p.Metadata.ContentHash)
		if err != nil {
			return fmt.Errorf("%w: upsert chunk %s: %v", types.ErrStoreWrite, p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", types.ErrStoreWrite, err)
	}
	return nil
}

// Has reports which ids exist, querying in bounded batches.
func (s *SQLiteStore) Has(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	for start := 0; start < len(ids); start += hasBatchSize {
		end := start + hasBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		query := "SELECT chunk_id FROM chunks WHERE chunk_id IN (" + placeholders(len(batch)) + ")"
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query chunk existence: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan chunk id: %w", err)
			}
			result[id] = true
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}

	return result, nil
}

// Get fetches a single point by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Point, error) {
	query := `
		SELECT chunk_id, text, vector, source_path, scope_root, file_mtime_ns, chunk_index, chunk_total, content_hash
		FROM chunks
		WHERE chunk_id = ?
	`
	var (
		p       Point
		blob    []byte
		mtimeNS int64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Text, &blob,
		&p.Metadata.SourcePath, &p.Metadata.ScopeRoot,
		&mtimeNS, &p.Metadata.ChunkIndex, &p.Metadata.ChunkTotal, &p.Metadata.ContentHash)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}

	p.Vector, err = deserializeVector(blob)
	if err != nil {
		return nil, err
	}
	p.Metadata.FileModTime = time.Unix(0, mtimeNS)
	return &p, nil
}

// ListFileStates derives per-path file state from chunk metadata. When a
// partially failed run left mixed records for a path, the newest mtime wins.
func (s *SQLiteStore) ListFileStates(ctx context.Context, scopeRoot string) ([]types.FileState, error) {
	query := `
		SELECT source_path, content_hash, file_mtime_ns, chunk_total
		FROM chunks
		WHERE scope_root = ?
	`
	rows, err := s.db.QueryContext(ctx, query, scopeRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list file states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byPath := make(map[string]*types.FileState)
	for rows.Next() {
		var (
			path, hash string
			mtimeNS    int64
			total      int
		)
		if err := rows.Scan(&path, &hash, &mtimeNS, &total); err != nil {
			return nil, fmt.Errorf("failed to scan file state: %w", err)
		}

		mtime := time.Unix(0, mtimeNS)
		st, ok := byPath[path]
		if !ok {
			byPath[path] = &types.FileState{Path: path, ContentHash: hash, ModTime: mtime, ChunkCount: 1, ChunkTotal: total}
			continue
		}
		st.ChunkCount++
		if total > st.ChunkTotal {
			st.ChunkTotal = total
		}
		if mtime.After(st.ModTime) {
			st.ModTime = mtime
			st.ContentHash = hash
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	states := make([]types.FileState, 0, len(byPath))
	for _, st := range byPath {
		states = append(states, *st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Path < states[j].Path })
	return states, nil
}

// UpdateFilePath performs the metadata-only move upsert: vectors and text
// are untouched.
func (s *SQLiteStore) UpdateFilePath(ctx context.Context, scopeRoot, oldPath, newPath string, modTime time.Time) (int, error) {
	query := `
		UPDATE chunks
		SET source_path = ?, file_mtime_ns = ?, updated_at = CURRENT_TIMESTAMP
		WHERE scope_root = ? AND source_path = ?
	`
	res, err := s.db.ExecContext(ctx, query, newPath, modTime.UnixNano(), scopeRoot, oldPath)
	if err != nil {
		return 0, fmt.Errorf("%w: update file path: %v", types.ErrStoreWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// RefreshModTime updates only the stored mtime for a path.
func (s *SQLiteStore) RefreshModTime(ctx context.Context, scopeRoot, path string, modTime time.Time) (int, error) {
	query := `
		UPDATE chunks
		SET file_mtime_ns = ?, updated_at = CURRENT_TIMESTAMP
		WHERE scope_root = ? AND source_path = ?
	`
	res, err := s.db.ExecContext(ctx, query, modTime.UnixNano(), scopeRoot, path)
	if err != nil {
		return 0, fmt.Errorf("%w: refresh mtime: %v", types.ErrStoreWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// UpdateFileMeta rewrites file-level metadata on every chunk of a path.
func (s *SQLiteStore) UpdateFileMeta(ctx context.Context, scopeRoot, path string, modTime time.Time, contentHash string, chunkTotal int) (int, error) {
	query := `
		UPDATE chunks
		SET file_mtime_ns = ?, content_hash = ?, chunk_total = ?, updated_at = CURRENT_TIMESTAMP
		WHERE scope_root = ? AND source_path = ?
	`
	res, err := s.db.ExecContext(ctx, query, modTime.UnixNano(), contentHash, chunkTotal, scopeRoot, path)
	if err != nil {
		return 0, fmt.Errorf("%w: update file meta: %v", types.ErrStoreWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// DeleteByPaths removes chunks matching the filter. The scope root is a
// hard filter term, never inferred from path prefixes.
func (s *SQLiteStore) DeleteByPaths(ctx context.Context, filter DeleteFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	if len(filter.SourcePaths) == 0 {
		return 0, nil
	}

	deleted := 0
	for start := 0; start < len(filter.SourcePaths); start += hasBatchSize {
		end := start + hasBatchSize
		if end > len(filter.SourcePaths) {
			end = len(filter.SourcePaths)
		}
		batch := filter.SourcePaths[start:end]

		query := "DELETE FROM chunks WHERE scope_root = ? AND source_path IN (" + placeholders(len(batch)) + ")"
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, filter.ScopeRoot)
		for _, p := range batch {
			args = append(args, p)
		}

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return deleted, fmt.Errorf("%w: delete by paths: %v", types.ErrStoreWrite, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}

	return deleted, nil
}

// DeleteStale removes chunks of one path whose ids are not in keep.
func (s *SQLiteStore) DeleteStale(ctx context.Context, scopeRoot, path string, keep []string) (int, error) {
	if scopeRoot == "" {
		return 0, fmt.Errorf("%w: refusing stale delete with empty scope", types.ErrScopeViolation)
	}

	query := "DELETE FROM chunks WHERE scope_root = ? AND source_path = ?"
	args := []interface{}{scopeRoot, path}
	if len(keep) > 0 {
		query += " AND chunk_id NOT IN (" + placeholders(len(keep)) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: delete stale: %v", types.ErrStoreWrite, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Query scans candidate chunks and ranks them by cosine similarity in Go.
// An empty scopeRoot searches the whole store.
func (s *SQLiteStore) Query(ctx context.Context, scopeRoot string, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	query := `
		SELECT chunk_id, text, vector, source_path, scope_root, file_mtime_ns, chunk_index, chunk_total, content_hash
		FROM chunks
	`
	var args []interface{}
	if scopeRoot != "" {
		query += " WHERE scope_root = ?"
		args = append(args, scopeRoot)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var (
			r       SearchResult
			blob    []byte
			mtimeNS int64
		)
		if err := rows.Scan(&r.ID, &r.Text, &blob,
			&r.Metadata.SourcePath, &r.Metadata.ScopeRoot,
			&mtimeNS, &r.Metadata.ChunkIndex, &r.Metadata.ChunkTotal, &r.Metadata.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		stored, err := deserializeVector(blob)
		if err != nil {
			return nil, err
		}
		r.Metadata.FileModTime = time.Unix(0, mtimeNS)
		r.Score = cosineSimilarity(vector, stored)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of chunks under a scope (all chunks when the
// scope is empty).
func (s *SQLiteStore) Count(ctx context.Context, scopeRoot string) (int, error) {
	query := "SELECT COUNT(*) FROM chunks"
	var args []interface{}
	if scopeRoot != "" {
		query += " WHERE scope_root = ?"
		args = append(args, scopeRoot)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Wipe removes every record.
func (s *SQLiteStore) Wipe(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("%w: wipe: %v", types.ErrStoreWrite, err)
	}
	return nil
}

// placeholders builds a "?, ?, ?" list of the given length.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, '?')
	}
	return string(buf)
}
