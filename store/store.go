// Package store keeps the document registry: one row per uploaded
// file, tracking its processing status and parse metadata. Filenames
// are unique; re-uploading the same name is reported, not reprocessed.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Processing statuses, in lifecycle order.
const (
	StatusUploaded      = "uploaded"
	StatusParsed        = "parsed"
	StatusChunked       = "chunked"
	StatusIndexed       = "indexed"
	StatusExtracted     = "extracted"
	StatusGraphUpserted = "graph_upserted"
	StatusQueryable     = "queryable"
	StatusFailed        = "failed"
)

// ErrNotFound is returned when a document id or filename does not
// exist in the registry.
var ErrNotFound = errors.New("store: document not found")

// ErrDuplicate is returned when registering a filename that already
// exists.
var ErrDuplicate = errors.New("store: document already exists")

// Document is one registered file.
type Document struct {
	ID        int64             `json:"id"`
	Filename  string            `json:"filename"`
	Status    string            `json:"status"`
	Chunks    int               `json:"chunks"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store is the document registry.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    chunks INTEGER NOT NULL DEFAULT 0,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Open opens (or creates) the registry database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening document registry: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging document registry: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating registry schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register creates a new document record in status uploaded and
// returns its id. A duplicate filename returns ErrDuplicate.
func (s *Store) Register(ctx context.Context, filename string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (filename, status) VALUES (?, ?)",
		filename, StatusUploaded)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("%w: %s", ErrDuplicate, filename)
		}
		return 0, fmt.Errorf("registering document: %w", err)
	}
	return res.LastInsertId()
}

// SetStatus advances a document to the given status.
func (s *Store) SetStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// SetChunks records the chunk count produced for a document.
func (s *Store) SetChunks(ctx context.Context, id int64, chunks int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET chunks = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		chunks, id)
	return err
}

// SetMetadata stores parse metadata for a document as JSON.
func (s *Store) SetMetadata(ctx context.Context, id int64, metadata map[string]string) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE documents SET metadata = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(data), id)
	return err
}

// Get returns the document with the given id.
func (s *Store) Get(ctx context.Context, id int64) (Document, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, filename, status, chunks, metadata, created_at, updated_at
		FROM documents WHERE id = ?`, id))
}

// GetByFilename returns the document with the given filename.
func (s *Store) GetByFilename(ctx context.Context, filename string) (Document, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, filename, status, chunks, metadata, created_at, updated_at
		FROM documents WHERE filename = ?`, filename))
}

// List returns all documents, newest first.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, status, chunks, metadata, created_at, updated_at
		FROM documents ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOne(row *sql.Row) (Document, error) {
	doc, err := scanDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func scanDoc(r rowScanner) (Document, error) {
	var doc Document
	var metadata string
	if err := r.Scan(&doc.ID, &doc.Filename, &doc.Status, &doc.Chunks,
		&metadata, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
			return Document{}, fmt.Errorf("decoding document metadata: %w", err)
		}
	}
	return doc, nil
}
