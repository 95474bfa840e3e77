//go:build cgo

package askdoc

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askdoc/askdoc/llm"
)

// newTestLLMServer serves the OpenAI-compatible chat and embedding
// endpoints with deterministic responses: embeddings are hashed from
// the input text, and the chat answer is fixed.
func newTestLLMServer(t *testing.T, dim int, answer string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		for i, text := range req.Input {
			v := make([]float32, dim)
			h := fnv.New64a()
			h.Write([]byte(text))
			seed := h.Sum64()
			for j := range v {
				seed = seed*6364136223846793005 + 1442695040888963407
				v[j] = float32(int64(seed>>33)) / float32(math.MaxInt32)
			}
			resp.Data = append(resp.Data, datum{Embedding: v, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message":       map[string]string{"content": answer},
					"finish_reason": "stop",
				},
			},
			"model": "test-model",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestEngine(t *testing.T, answer string) *Engine {
	t.Helper()
	srv := newTestLLMServer(t, 8, answer)

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.EmbeddingDim = 8
	cfg.Chat = llm.Config{Provider: "custom", Model: "test-model", BaseURL: srv.URL}
	cfg.Embedding = llm.Config{Provider: "custom", Model: "test-embed", BaseURL: srv.URL}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestIngestAndAsk(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "Tim Cook leads Apple. Source: bio.txt")

	text := "Tim Cook leads Apple Inc. in Cupertino. Apple Inc. makes the iPhone."
	res, err := e.Ingest(ctx, "bio.txt", []byte(text))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != "queryable" {
		t.Errorf("Status = %q, want queryable", res.Status)
	}
	if res.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", res.Chunks)
	}
	if res.Entities == 0 {
		t.Error("no entities extracted")
	}

	ans, err := e.Ask(ctx, "Who leads Apple?", WithDomain("Business"), WithRole("Analyst"))
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Text, "Tim Cook") {
		t.Errorf("answer = %q", ans.Text)
	}
	if ans.Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0", ans.Confidence)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "bio.txt" {
		t.Errorf("Sources = %v", ans.Sources)
	}
}

func TestIngestDuplicateFilename(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "ok")

	if _, err := e.Ingest(ctx, "doc.txt", []byte("Alpha Corp. builds rockets.")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	res, err := e.Ingest(ctx, "doc.txt", []byte("completely different content"))
	if err != nil {
		t.Fatalf("duplicate Ingest: %v", err)
	}
	if res.Status != "exists" {
		t.Errorf("duplicate Status = %q, want exists", res.Status)
	}

	docs, err := e.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("got %d documents, want 1", len(docs))
	}
}

func TestIngestUnknownFormatStaysTracked(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "ok")

	res, err := e.Ingest(ctx, "image.png", []byte{0x89, 0x50})
	if err != nil {
		t.Fatalf("Ingest unknown format: %v", err)
	}
	if res.Status != "queryable" {
		t.Errorf("Status = %q, want queryable", res.Status)
	}
	if res.Chunks != 0 {
		t.Errorf("Chunks = %d, want 0", res.Chunks)
	}

	docs, err := e.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents", len(docs))
	}
}

func TestAskEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "I don't have information about that.")

	ans, err := e.Ask(ctx, "Anything?")
	if err != nil {
		t.Fatalf("Ask on empty corpus: %v", err)
	}
	if ans.Text == "" {
		t.Error("empty answer")
	}
}

func TestGraphStatsAndExport(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "ok")

	if _, err := e.Ingest(ctx, "facts.txt", []byte("Acme Corp. acquired Widget Inc.")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	stats, err := e.GraphStats(ctx)
	if err != nil {
		t.Fatalf("GraphStats: %v", err)
	}
	if stats.Nodes == 0 {
		t.Error("no graph nodes after ingest")
	}

	path, err := e.ExportGraph(ctx, "")
	if err != nil {
		t.Fatalf("ExportGraph: %v", err)
	}
	if path == "" {
		t.Error("empty export path")
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	e := newTestEngine(t, "ok")
	_, err := e.GetDocument(context.Background(), 999)
	if err == nil {
		t.Fatal("GetDocument(999): got nil error")
	}
}
