package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/askdoc/askdoc/graph"
	"github.com/askdoc/askdoc/index"
)

type fakeGraph struct {
	nodes    []graph.Node
	err      error
	gotLimit int
}

func (f *fakeGraph) Query(_ context.Context, _ string, limit int) ([]graph.Node, error) {
	f.gotLimit = limit
	return f.nodes, f.err
}

type fakeIndex struct {
	results []index.Result
	err     error
	gotK    int
}

func (f *fakeIndex) Search(_ context.Context, _ string, k int) ([]index.Result, error) {
	f.gotK = k
	return f.results, f.err
}

func TestRetrieveBothChannels(t *testing.T) {
	g := &fakeGraph{nodes: []graph.Node{
		{ID: 1, Type: "PERSON", Value: "Tim Cook"},
	}}
	x := &fakeIndex{results: []index.Result{
		{ID: 0, DocID: 1, Chunk: "Tim Cook is the CEO of Apple.", Score: 0.92},
	}}

	rc, err := NewFusion(g, x).Retrieve(context.Background(), "Tim Cook", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(rc.Entities) != 1 || len(rc.Chunks) != 1 {
		t.Fatalf("got %d entities, %d chunks", len(rc.Entities), len(rc.Chunks))
	}
	if x.gotK != 5 {
		t.Errorf("index k = %d, want 5", x.gotK)
	}

	rendered := rc.Render()
	graphPos := strings.Index(rendered, "Knowledge Graph Information:")
	chunkPos := strings.Index(rendered, "Related Content:")
	if graphPos == -1 || chunkPos == -1 {
		t.Fatalf("missing section headers:\n%s", rendered)
	}
	if graphPos > chunkPos {
		t.Errorf("graph section should come before chunk section:\n%s", rendered)
	}
	if !strings.Contains(rendered, "- PERSON: Tim Cook") {
		t.Errorf("entity not rendered:\n%s", rendered)
	}
	if !strings.Contains(rendered, "- Tim Cook is the CEO of Apple. (similarity: 0.92)") {
		t.Errorf("chunk not rendered:\n%s", rendered)
	}
}

func TestRetrieveDefaultTopK(t *testing.T) {
	x := &fakeIndex{}
	if _, err := NewFusion(&fakeGraph{}, x).Retrieve(context.Background(), "q", 0); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if x.gotK != DefaultTopK {
		t.Errorf("index k = %d, want %d", x.gotK, DefaultTopK)
	}
}

func TestRenderOmitsEmptySections(t *testing.T) {
	rc := &Context{Chunks: []index.Result{{DocID: 2, Chunk: "text"}}}
	rendered := rc.Render()
	if strings.Contains(rendered, "Knowledge Graph Information:") {
		t.Errorf("empty graph section rendered:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Related Content:") {
		t.Errorf("chunk section missing:\n%s", rendered)
	}

	rc = &Context{Entities: []graph.Node{{Type: "ORG", Value: "Acme"}}}
	rendered = rc.Render()
	if strings.Contains(rendered, "Related Content:") {
		t.Errorf("empty chunk section rendered:\n%s", rendered)
	}

	rc = &Context{}
	if rc.Render() != "" {
		t.Errorf("empty context rendered non-empty: %q", rc.Render())
	}
	if !rc.Empty() {
		t.Error("Empty() = false for empty context")
	}
}

func TestRetrieveOneChannelFailing(t *testing.T) {
	g := &fakeGraph{err: errors.New("graph down")}
	x := &fakeIndex{results: []index.Result{{DocID: 1, Chunk: "still here"}}}

	rc, err := NewFusion(g, x).Retrieve(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Retrieve with one failing channel: %v", err)
	}
	if len(rc.Chunks) != 1 {
		t.Fatalf("surviving channel lost: %d chunks", len(rc.Chunks))
	}
	if len(rc.Entities) != 0 {
		t.Fatalf("failed channel produced entities")
	}
}

func TestRetrieveNothingRetrievedAndChannelFailed(t *testing.T) {
	// Whichever channel fails, an empty context plus a failure is an
	// error, never a silent empty result.
	cases := []struct {
		name string
		g    *fakeGraph
		x    *fakeIndex
	}{
		{"graph down, vector empty", &fakeGraph{err: errors.New("graph down")}, &fakeIndex{}},
		{"vector down, graph empty", &fakeGraph{}, &fakeIndex{err: errors.New("index down")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFusion(tc.g, tc.x).Retrieve(context.Background(), "q", 3)
			if err == nil {
				t.Fatal("got nil error for empty context with a failed channel")
			}
		})
	}
}

func TestRetrieveBothChannelsFailing(t *testing.T) {
	g := &fakeGraph{err: errors.New("graph down")}
	x := &fakeIndex{err: errors.New("index down")}

	_, err := NewFusion(g, x).Retrieve(context.Background(), "q", 3)
	if err == nil {
		t.Fatal("Retrieve with both channels failing: got nil error")
	}
}
