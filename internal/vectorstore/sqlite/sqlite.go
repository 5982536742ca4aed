// Package sqlite stores chunk vectors in a single SQLite database file and
// ranks them with a vec_cosine scalar function registered on the
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"ragqa/internal/domain"
)

// FileName is the database file created under the store directory. Its
// presence marks an initialized collection.
const FileName = "collection.sqlite3"

var schema = []string{`
CREATE TABLE IF NOT EXISTS collection (
	name      TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL DEFAULT 0
)`, `
CREATE TABLE IF NOT EXISTS chunks (
	rid         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL,
	collection  TEXT NOT NULL,
	text        TEXT NOT NULL,
	source      TEXT NOT NULL,
	char_offset INTEGER NOT NULL,
	chunk_index INTEGER NOT NULL,
	metadata    TEXT,
	embedding   BLOB NOT NULL,
	UNIQUE (collection, id)
)`}

// Config configures the SQLite store.
type Config struct {
	Dir        string
	Collection string
	MinScore   float64
}

// Storage is a persistent vector store backed by SQLite.
type Storage struct {
	db         *sql.DB
	path       string
	collection string
	minScore   float64
	existed    bool
}

// Open opens (creating when needed) the database under cfg.Dir.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	path := filepath.Join(cfg.Dir, FileName)
	_, statErr := os.Stat(path)
	existed := statErr == nil

	registerFunctions()
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO collection(name, dimension) VALUES (?, 0)`, cfg.Collection); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init collection: %w", err)
	}
	return &Storage{db: db, path: path, collection: cfg.Collection, minScore: cfg.MinScore, existed: existed}, nil
}

func (s *Storage) dimension(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, `SELECT dimension FROM collection WHERE name = ?`, s.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}

// Add upserts chunks by ID. An updated chunk keeps its rid and with it its
// place in the tie order. The first call on an empty collection fixes its dimension.
func (s *Storage) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, errors.New("chunks and vectors length mismatch")
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	dim, err := s.dimension(ctx, tx)
	if err != nil {
		return 0, err
	}
	if dim == 0 {
		dim = len(vectors[0])
		if _, err := tx.ExecContext(ctx, `UPDATE collection SET dimension = ? WHERE name = ?`, dim, s.collection); err != nil {
			return 0, err
		}
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(id, collection, text, source, char_offset, chunk_index, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			text = excluded.text, source = excluded.source, char_offset = excluded.char_offset,
			chunk_index = excluded.chunk_index, metadata = excluded.metadata, embedding = excluded.embedding`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, c := range chunks {
		if len(vectors[i]) != dim || dim == 0 {
			return 0, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vectors[i]), dim)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, c.ID, s.collection, c.Text, c.SourcePath, c.Offset, c.Index,
			string(meta), encodeEmbedding(vectors[i])); err != nil {
			return 0, fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// Query ranks the collection by vec_cosine against vector.
func (s *Storage) Query(ctx context.Context, vector []float32, k int) ([]domain.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	dim, err := s.dimension(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vector), dim)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, source, char_offset, chunk_index, metadata, score FROM (
			SELECT rid, id, text, source, char_offset, chunk_index, metadata,
			       vec_cosine(embedding, ?) AS score
			FROM chunks WHERE collection = ?
		) WHERE score >= ?
		ORDER BY score DESC, rid ASC
		LIMIT ?`, encodeEmbedding(vector), s.collection, s.minScore, k)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.Result
	for rows.Next() {
		var (
			r    domain.Result
			meta sql.NullString
		)
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.Text, &r.Chunk.SourcePath, &r.Chunk.Offset,
			&r.Chunk.Index, &meta, &r.Score); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &r.Chunk.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", r.Chunk.ID, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Info reports the collection state. A collection counts as initialized when
// the database file existed before Open or it holds chunks.
func (s *Storage) Info(ctx context.Context) (domain.CollectionInfo, error) {
	info := domain.CollectionInfo{Name: s.collection, Location: s.path}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, s.collection).Scan(&info.Count); err != nil {
		return info, err
	}
	dim, err := s.dimension(ctx, s.db)
	if err != nil {
		return info, err
	}
	info.Dimension = dim
	info.Initialized = s.existed || info.Count > 0
	return info, nil
}

// DeleteSource deletes the chunks stored for one source path.
func (s *Storage) DeleteSource(ctx context.Context, source string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ? AND source = ?`, s.collection, source)
	if err != nil {
		return 0, fmt.Errorf("delete source %s: %w", source, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Clear deletes every chunk of the collection and resets its dimension.
func (s *Storage) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, s.collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE collection SET dimension = 0 WHERE name = ?`, s.collection); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) Close() error { return s.db.Close() }
