package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/askdoc/askdoc/index"
	"github.com/askdoc/askdoc/llm"
	"github.com/askdoc/askdoc/retrieval"
)

type fakeProvider struct {
	resp    llm.ChatResponse
	err     error
	lastReq llm.ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &f.resp, nil
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func testContext() *retrieval.Context {
	return &retrieval.Context{
		Chunks: []index.Result{
			{DocID: 1, Chunk: "Tim Cook is the CEO of Apple.", Score: 0.9},
		},
	}
}

func TestSynthesizeStopConfidence(t *testing.T) {
	p := &fakeProvider{resp: llm.ChatResponse{
		Content:      "Tim Cook. Source: bio.txt",
		FinishReason: llm.FinishStop,
	}}
	s := New(p, "test-model", time.Minute)

	ans, err := s.Synthesize(context.Background(), Request{Question: "Who leads Apple?"}, testContext())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if ans.Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0", ans.Confidence)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "bio.txt" {
		t.Errorf("Sources = %v, want [bio.txt]", ans.Sources)
	}
}

func TestSynthesizeTruncatedConfidence(t *testing.T) {
	p := &fakeProvider{resp: llm.ChatResponse{
		Content:      "Partial answer",
		FinishReason: "length",
	}}
	ans, err := New(p, "m", 0).Synthesize(context.Background(), Request{Question: "q"}, testContext())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if ans.Confidence != 0.0 {
		t.Errorf("Confidence = %f, want 0.0 for non-stop finish", ans.Confidence)
	}
	if ans.Sources != nil {
		t.Errorf("Sources = %v, want nil when answer has no citations", ans.Sources)
	}
}

func TestSynthesizePromptShape(t *testing.T) {
	p := &fakeProvider{resp: llm.ChatResponse{Content: "ok", FinishReason: llm.FinishStop}}
	req := Request{Question: "Who leads Apple?", Domain: "Business", Role: "Analyst"}
	if _, err := New(p, "m", 0).Synthesize(context.Background(), req, testContext()); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if len(p.lastReq.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(p.lastReq.Messages))
	}
	if p.lastReq.Messages[0].Role != "system" || p.lastReq.Messages[0].Content != systemPrompt {
		t.Errorf("system message = %+v", p.lastReq.Messages[0])
	}
	user := p.lastReq.Messages[1].Content
	for _, want := range []string{
		"Domain: Business",
		"Role: Analyst",
		"Question: Who leads Apple?",
		"Related Content:",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestSynthesizeDefaultsDomainAndRole(t *testing.T) {
	p := &fakeProvider{resp: llm.ChatResponse{Content: "ok", FinishReason: llm.FinishStop}}
	if _, err := New(p, "m", 0).Synthesize(context.Background(), Request{Question: "q"}, testContext()); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	user := p.lastReq.Messages[1].Content
	if !strings.Contains(user, "Domain: General") || !strings.Contains(user, "Role: General") {
		t.Errorf("defaults not applied:\n%s", user)
	}
}

func TestSynthesizeFallbackOnChatFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	ans, err := New(p, "m", 0).Synthesize(context.Background(), Request{Question: "q"}, testContext())
	if err != nil {
		t.Fatalf("Synthesize should degrade, not fail: %v", err)
	}
	if ans.Confidence != 0.0 {
		t.Errorf("fallback Confidence = %f, want 0.0", ans.Confidence)
	}
	if !strings.Contains(ans.Text, "Tim Cook is the CEO of Apple.") {
		t.Errorf("fallback should quote chunks, got %q", ans.Text)
	}
}

func TestSynthesizeFallbackTruncatesLongChunks(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	long := strings.Repeat("x", 2000)
	rc := &retrieval.Context{Chunks: []index.Result{{Chunk: long}}}

	ans, err := New(p, "m", 0).Synthesize(context.Background(), Request{Question: "q"}, rc)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(ans.Text) != fallbackChunkLimit {
		t.Errorf("fallback length = %d, want %d", len(ans.Text), fallbackChunkLimit)
	}
}

func TestSynthesizeFallbackTruncatesOnRuneBoundary(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	// Three-byte runes that do not divide the byte limit evenly, so a
	// naive byte slice would cut mid-rune.
	long := strings.Repeat("日", 400)
	rc := &retrieval.Context{Chunks: []index.Result{{Chunk: long}}}

	ans, err := New(p, "m", 0).Synthesize(context.Background(), Request{Question: "q"}, rc)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(ans.Text) > fallbackChunkLimit {
		t.Errorf("fallback length = %d bytes, want <= %d", len(ans.Text), fallbackChunkLimit)
	}
	if !utf8.ValidString(ans.Text) {
		t.Error("fallback answer is not valid UTF-8")
	}
	if !strings.HasSuffix(ans.Text, "日") {
		t.Errorf("fallback does not end on a whole rune: %q", ans.Text[len(ans.Text)-4:])
	}
}

func TestSynthesizeFallbackEmptyContext(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	ans, err := New(p, "m", 0).Synthesize(context.Background(), Request{Question: "q"}, &retrieval.Context{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if ans.Text == "" {
		t.Error("fallback answer empty for empty context")
	}
	if ans.Confidence != 0.0 {
		t.Errorf("Confidence = %f, want 0.0", ans.Confidence)
	}
}

func TestExtractSourcesMultiple(t *testing.T) {
	sources := extractSources("Answer text. Source: a.txt Source: b.txt")
	if len(sources) != 2 || sources[0] != "a.txt" || sources[1] != "b.txt" {
		t.Errorf("sources = %v", sources)
	}
}
