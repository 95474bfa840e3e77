//go:build cgo

package graph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/askdoc/askdoc/extract"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertTriplesIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	triples := []extract.Triple{
		{Subject: "Tim Cook", Predicate: "lead", Object: "Apple Inc."},
		{Subject: "Apple Inc.", Predicate: "be", Object: "company"},
	}

	for i := 0; i < 3; i++ {
		if err := s.UpsertTriples(ctx, "doc.txt", triples); err != nil {
			t.Fatalf("UpsertTriples round %d: %v", i, err)
		}
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Edges != 2 {
		t.Errorf("Edges = %d, want 2", st.Edges)
	}
	// Apple Inc. appears as both subject and object but is one node.
	if st.Nodes != 3 {
		t.Errorf("Nodes = %d, want 3", st.Nodes)
	}
}

func TestUpsertTriplesSkipsIncomplete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	triples := []extract.Triple{
		{Subject: "", Predicate: "be", Object: "thing"},
		{Subject: "subject", Predicate: "", Object: "thing"},
		{Subject: "subject", Predicate: "be", Object: ""},
		{Subject: "subject", Predicate: "be", Object: "thing"},
	}
	if err := s.UpsertTriples(ctx, "doc.txt", triples); err != nil {
		t.Fatalf("UpsertTriples: %v", err)
	}

	st, _ := s.Stats(ctx)
	if st.Edges != 1 {
		t.Errorf("Edges = %d, want 1", st.Edges)
	}
}

func TestSameEdgeDifferentDocs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	triple := []extract.Triple{{Subject: "a", Predicate: "relate", Object: "b"}}
	if err := s.UpsertTriples(ctx, "one.txt", triple); err != nil {
		t.Fatalf("UpsertTriples: %v", err)
	}
	if err := s.UpsertTriples(ctx, "two.txt", triple); err != nil {
		t.Fatalf("UpsertTriples: %v", err)
	}

	st, _ := s.Stats(ctx)
	if st.Edges != 2 {
		t.Errorf("Edges = %d, want 2 (one per source doc)", st.Edges)
	}
	if st.Nodes != 2 {
		t.Errorf("Nodes = %d, want 2", st.Nodes)
	}
}

func TestUpsertEntitiesIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entities := []extract.Entity{
		{Text: "Apple Inc.", Label: "ORG"},
		{Text: "Tim Cook", Label: "PERSON"},
		{Text: "Apple Inc.", Label: "ORG"},
	}
	if err := s.UpsertEntities(ctx, entities); err != nil {
		t.Fatalf("UpsertEntities: %v", err)
	}
	if err := s.UpsertEntities(ctx, entities); err != nil {
		t.Fatalf("UpsertEntities again: %v", err)
	}

	st, _ := s.Stats(ctx)
	if st.Nodes != 2 {
		t.Errorf("Nodes = %d, want 2", st.Nodes)
	}
}

func TestQuerySubstring(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entities := []extract.Entity{
		{Text: "Apple Inc.", Label: "ORG"},
		{Text: "Apple Park", Label: "GPE"},
		{Text: "Tim Cook", Label: "PERSON"},
	}
	if err := s.UpsertEntities(ctx, entities); err != nil {
		t.Fatalf("UpsertEntities: %v", err)
	}

	nodes, err := s.Query(ctx, "Apple", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}

	// Matching is case-sensitive.
	nodes, err = s.Query(ctx, "apple", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("got %d nodes for lowercase term, want 0", len(nodes))
	}

	nodes, err = s.Query(ctx, "Apple", 1)
	if err != nil {
		t.Fatalf("Query with limit: %v", err)
	}
	if len(nodes) != 1 {
		t.Errorf("got %d nodes with limit 1, want 1", len(nodes))
	}
}

func TestQueryEmptyTerm(t *testing.T) {
	s := newTestStore(t)
	nodes, err := s.Query(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if nodes != nil {
		t.Errorf("got %v for empty term, want nil", nodes)
	}
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpsertTriples(ctx, "doc.txt", []extract.Triple{
		{Subject: "a", Predicate: "relate", Object: "b"},
	}); err != nil {
		t.Fatalf("UpsertTriples: %v", err)
	}

	path := filepath.Join(t.TempDir(), "graph.json")
	if err := s.ExportJSON(ctx, path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	var doc struct {
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
		t.Errorf("export has %d nodes and %d edges, want 2 and 1", len(doc.Nodes), len(doc.Edges))
	}
	if doc.Edges[0].SourceDoc != "doc.txt" {
		t.Errorf("edge source_doc = %q, want doc.txt", doc.Edges[0].SourceDoc)
	}
}
