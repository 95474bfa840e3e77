// Package retrieval runs the two retrieval channels for a question
// and fuses them into one context block: graph entities first, then
// vector-matched chunks. The channels stay in separate labelled
// sections and are never interleaved or re-ranked against each other.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdoc/askdoc/graph"
	"github.com/askdoc/askdoc/index"
)

// DefaultTopK is how many chunks the vector channel contributes when
// the caller does not say otherwise.
const DefaultTopK = 3

// graphLimit caps how many entities the graph channel contributes.
const graphLimit = 10

// ChunkSearcher is the vector retrieval channel.
type ChunkSearcher interface {
	Search(ctx context.Context, query string, k int) ([]index.Result, error)
}

// GraphQuerier is the graph retrieval channel: a naive substring
// match over stored entity values.
type GraphQuerier interface {
	Query(ctx context.Context, term string, limit int) ([]graph.Node, error)
}

// Context is the fused retrieval result for one question.
type Context struct {
	Entities []graph.Node   `json:"entities"`
	Chunks   []index.Result `json:"chunks"`
}

// Empty reports whether neither channel returned anything.
func (c *Context) Empty() bool {
	return len(c.Entities) == 0 && len(c.Chunks) == 0
}

// Fusion retrieves from both channels and renders the combined
// context. A failure in one channel does not discard the other.
type Fusion struct {
	graph GraphQuerier
	index ChunkSearcher
}

// NewFusion wires the two retrieval channels together.
func NewFusion(g GraphQuerier, x ChunkSearcher) *Fusion {
	return &Fusion{graph: g, index: x}
}

// Retrieve runs both channels for query. topK bounds the vector
// channel; values <= 0 fall back to DefaultTopK.
func (f *Fusion) Retrieve(ctx context.Context, query string, topK int) (*Context, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	start := time.Now()
	out := &Context{}
	var channelErr error

	entities, err := f.graph.Query(ctx, query, graphLimit)
	if err != nil {
		slog.Warn("retrieval: graph channel failed", "error", err)
		channelErr = err
	} else {
		out.Entities = entities
	}

	chunks, err := f.index.Search(ctx, query, topK)
	if err != nil {
		slog.Warn("retrieval: vector channel failed", "error", err)
		channelErr = err
	} else {
		out.Chunks = chunks
	}

	if out.Empty() && channelErr != nil {
		return nil, fmt.Errorf("retrieving context: %w", channelErr)
	}

	slog.Debug("retrieval: context assembled",
		"entities", len(out.Entities), "chunks", len(out.Chunks),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return out, nil
}

// Render formats the fused context for the synthesis prompt. Empty
// sections are omitted entirely.
func (c *Context) Render() string {
	var parts []string

	if len(c.Entities) > 0 {
		var sb strings.Builder
		sb.WriteString("Knowledge Graph Information:\n")
		for _, n := range c.Entities {
			fmt.Fprintf(&sb, "- %s: %s\n", n.Type, n.Value)
		}
		parts = append(parts, sb.String())
	}

	if len(c.Chunks) > 0 {
		var sb strings.Builder
		sb.WriteString("Related Content:\n")
		for _, ch := range c.Chunks {
			fmt.Fprintf(&sb, "- %s (similarity: %.2f)\n", ch.Chunk, ch.Score)
		}
		parts = append(parts, sb.String())
	}

	return strings.TrimRight(strings.Join(parts, "\n"), "\n")
}
