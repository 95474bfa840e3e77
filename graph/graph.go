// Package graph persists the entity-relation graph built from
// extracted triples. Nodes are unique by (type, value) and edges by
// (source, target, predicate, source document), so re-ingesting the
// same document is idempotent.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/askdoc/askdoc/extract"
)

// Node is a graph vertex: an extracted entity.
type Node struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Edge is a directed relation between two entity values.
type Edge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Predicate string `json:"predicate"`
	SourceDoc string `json:"source_doc"`
}

// Stats summarises the graph size.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Store is the persistent entity-relation graph.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    value TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(entity_type, value)
);

CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    predicate TEXT NOT NULL,
    source_doc TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source, target, predicate, source_doc)
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
CREATE INDEX IF NOT EXISTS idx_nodes_value ON nodes(value);
`

// Open opens (or creates) the graph database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating graph directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening graph database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging graph database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating graph schema: %w", err)
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

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UpsertEntities adds the given entities as nodes. Existing
// (type, value) pairs are left untouched.
func (s *Store) UpsertEntities(ctx context.Context, entities []extract.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO nodes (entity_type, value) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range entities {
			if e.Text == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, e.Label, e.Text); err != nil {
				return fmt.Errorf("upserting node %q: %w", e.Text, err)
			}
		}
		return nil
	})
}

// UpsertTriples adds the given triples as edges attributed to
// sourceDoc, creating endpoint nodes as needed. Triples with an empty
// subject, predicate, or object are skipped. The whole batch is
// written in one transaction.
func (s *Store) UpsertTriples(ctx context.Context, sourceDoc string, triples []extract.Triple) error {
	if len(triples) == 0 {
		return nil
	}
	start := time.Now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		nodeStmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO nodes (entity_type, value) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer nodeStmt.Close()

		edgeStmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO edges (source, target, predicate, source_doc) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer edgeStmt.Close()

		for _, t := range triples {
			if t.Subject == "" || t.Predicate == "" || t.Object == "" {
				continue
			}
			// Endpoints extracted only as triple members have no NER
			// label; record them as plain entities.
			if _, err := nodeStmt.ExecContext(ctx, "ENTITY", t.Subject); err != nil {
				return err
			}
			if _, err := nodeStmt.ExecContext(ctx, "ENTITY", t.Object); err != nil {
				return err
			}
			if _, err := edgeStmt.ExecContext(ctx, t.Subject, t.Object, t.Predicate, sourceDoc); err != nil {
				return fmt.Errorf("upserting edge %q-%q->%q: %w", t.Subject, t.Predicate, t.Object, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("graph: triples upserted",
		"source_doc", sourceDoc, "triples", len(triples),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Query returns nodes whose value contains term as a case-sensitive
// substring, in insertion order, up to limit. This is a naive keyword
// filter, not ranked and not semantic.
func (s *Store) Query(ctx context.Context, term string, limit int) ([]Node, error) {
	if term == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, value
		FROM nodes
		WHERE instr(value, ?) > 0
		ORDER BY id
		LIMIT ?
	`, term, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Type, &n.Value); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Stats returns the current node and edge counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&st.Nodes); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&st.Edges); err != nil {
		return Stats{}, err
	}
	return st, nil
}

type exportDoc struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ExportJSON writes the full graph as a JSON document to path. The
// file is written to a temporary sibling first and renamed into place,
// so readers never see a partial export.
func (s *Store) ExportJSON(ctx context.Context, path string) error {
	var doc exportDoc

	rows, err := s.db.QueryContext(ctx, "SELECT id, entity_type, value FROM nodes ORDER BY id")
	if err != nil {
		return err
	}
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.Type, &n.Value); err != nil {
			rows.Close()
			return err
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, "SELECT source, target, predicate, source_doc FROM edges ORDER BY id")
	if err != nil {
		return err
	}
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Predicate, &e.SourceDoc); err != nil {
			rows.Close()
			return err
		}
		doc.Edges = append(doc.Edges, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing graph export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalising graph export: %w", err)
	}
	return nil
}
