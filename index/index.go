// Package index owns the embedding index: chunk vectors, their
// parallel metadata records, and nearest-neighbor search. Vector ids
// are assigned in insertion order starting at 0 and are never reused,
// so an id always equals the cumulative index size at the time its
// chunk was inserted — including across process restarts, since ids
// are derived from the persisted count.
//
// Mutation is serialised behind a single-writer mutex; the vector
// table and metadata are written in one transaction, so a concurrent
// reader sees either the pre-write or the post-write state, never a
// torn index.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Embedder computes one fixed-dimension vector per input text. The
// llm.Provider interface satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is a single vector search hit.
type Result struct {
	ID    int64   `json:"id"`
	DocID int64   `json:"doc_id"`
	Chunk string  `json:"chunk"`
	Score float64 `json:"score"`
}

// Index stores chunk embeddings and answers nearest-neighbor queries.
type Index struct {
	mu       sync.Mutex // serialises Add; Search reads run concurrently
	db       *sql.DB
	dim      int
	embedder Embedder
}

// New opens (or creates) the index database at path. If a prior index
// exists it is loaded and new ids continue from the persisted count.
func New(path string, dim int, embedder Embedder) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging index database: %w", err)
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunk_meta (
    id INTEGER PRIMARY KEY,
    doc_id INTEGER NOT NULL,
    chunk TEXT NOT NULL
);
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);
CREATE INDEX IF NOT EXISTS idx_chunk_meta_doc ON chunk_meta(doc_id);
`, dim)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Index{db: db, dim: dim, embedder: embedder}, nil
}

// Close releases the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// Dim returns the configured embedding dimension.
func (x *Index) Dim() int { return x.dim }

// Count returns the number of indexed vectors, which also equals the
// next id to be assigned.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunk_meta").Scan(&n)
	return n, err
}

// Add embeds the given chunk texts and appends them to the index with
// a parallel metadata record per chunk. Empty input is a no-op. An
// embedding failure aborts the whole call: nothing is written and the
// index remains in its last-good state.
func (x *Index) Add(ctx context.Context, docID int64, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings, err := x.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	for i, emb := range embeddings {
		if len(emb) != x.dim {
			return fmt.Errorf("chunk %d: embedding dimension %d, want %d", i, len(emb), x.dim)
		}
		normalize(emb)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	start := time.Now()
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Ids continue from the persisted count: the first new id equals
	// the index size at insertion time.
	var next int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunk_meta").Scan(&next); err != nil {
		return err
	}

	metaStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunk_meta (id, doc_id, chunk) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer metaStmt.Close()

	vecStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for i, chunk := range chunks {
		id := next + int64(i)
		if _, err := metaStmt.ExecContext(ctx, id, docID, chunk); err != nil {
			return fmt.Errorf("inserting chunk metadata %d: %w", id, err)
		}
		if _, err := vecStmt.ExecContext(ctx, id, serializeFloat32(embeddings[i])); err != nil {
			return fmt.Errorf("inserting vector %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index write: %w", err)
	}

	slog.Debug("index: chunks added",
		"doc_id", docID, "chunks", len(chunks), "first_id", next,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Search returns up to k chunks nearest to the query by cosine
// similarity, best first. k is clamped to the index size; an empty
// index yields an empty result, not an error — "no documents yet" is
// an expected state.
func (x *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	count, err := x.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	embeddings, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(embeddings) != 1 || len(embeddings[0]) != x.dim {
		return nil, fmt.Errorf("embedder returned unexpected query vector shape")
	}
	qvec := embeddings[0]
	normalize(qvec)

	rows, err := x.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance, m.doc_id, m.chunk
		FROM vec_chunks v
		JOIN chunk_meta m ON m.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(qvec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var distance float64
		if err := rows.Scan(&r.ID, &distance, &r.DocID, &r.Chunk); err != nil {
			return nil, err
		}
		// Cosine distance is 1 - similarity.
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// normalize scales v to unit length in place. Zero vectors are left
// untouched.
func normalize(v []float32) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// serializeFloat32 converts a float32 slice to little-endian bytes for
// sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
