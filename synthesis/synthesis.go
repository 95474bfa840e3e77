// Package synthesis turns a question and its retrieved context into
// an answer via the chat model, with naive source citation parsing
// and a degraded extractive fallback when the model is unavailable.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/askdoc/askdoc/llm"
	"github.com/askdoc/askdoc/retrieval"
)

const systemPrompt = "You are a helpful assistant that provides accurate answers based on the given context."

// fallbackChunkLimit bounds how much of each chunk the extractive
// fallback quotes.
const fallbackChunkLimit = 800

// Answer is a synthesised response.
type Answer struct {
	Text       string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// Request carries the question plus optional framing metadata. Empty
// Domain and Role default to "General" in the prompt.
type Request struct {
	Question string
	Domain   string
	Role     string
}

// Synthesizer generates answers with a chat provider.
type Synthesizer struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
}

// New returns a Synthesizer. timeout bounds each model call; zero
// means no extra bound beyond the caller's context.
func New(provider llm.Provider, model string, timeout time.Duration) *Synthesizer {
	return &Synthesizer{provider: provider, model: model, timeout: timeout}
}

// Synthesize asks the model to answer req.Question from the retrieved
// context. A model failure degrades to an extractive answer built
// from the context chunks, reported with zero confidence.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request, rc *retrieval.Context) (*Answer, error) {
	prompt := buildPrompt(req, rc.Render())

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.provider.Chat(callCtx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		slog.Warn("synthesis: chat failed, using extractive fallback", "error", err)
		return fallbackAnswer(rc), nil
	}

	confidence := 0.0
	if resp.FinishReason == llm.FinishStop {
		confidence = 1.0
	}

	return &Answer{
		Text:       resp.Content,
		Sources:    extractSources(resp.Content),
		Confidence: confidence,
	}, nil
}

func buildPrompt(req Request, renderedContext string) string {
	domain := req.Domain
	if domain == "" {
		domain = "General"
	}
	role := req.Role
	if role == "" {
		role = "General"
	}

	parts := []string{
		"Based on the following context and metadata, please answer the question.",
		fmt.Sprintf("\nContext:\n%s", renderedContext),
		fmt.Sprintf("\nDomain: %s", domain),
		fmt.Sprintf("Role: %s", role),
		fmt.Sprintf("\nQuestion: %s", req.Question),
		"\nPlease provide a concise and accurate answer. If possible, cite relevant sources.",
	}
	return strings.Join(parts, "\n")
}

// extractSources parses "Source:" citations out of an answer.
func extractSources(answer string) []string {
	if !strings.Contains(answer, "Source:") {
		return nil
	}
	var sources []string
	for _, part := range strings.Split(answer, "Source:")[1:] {
		sources = append(sources, strings.TrimSpace(part))
	}
	return sources
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// fallbackAnswer quotes the retrieved chunks directly when the model
// cannot be reached.
func fallbackAnswer(rc *retrieval.Context) *Answer {
	if rc.Empty() {
		return &Answer{
			Text:       "No relevant information found for this question.",
			Confidence: 0.0,
		}
	}

	var parts []string
	for _, ch := range rc.Chunks {
		parts = append(parts, truncate(ch.Chunk, fallbackChunkLimit))
	}
	if len(parts) == 0 {
		for _, n := range rc.Entities {
			parts = append(parts, fmt.Sprintf("%s: %s", n.Type, n.Value))
		}
	}

	return &Answer{
		Text:       strings.Join(parts, "\n\n"),
		Confidence: 0.0,
	}
}
