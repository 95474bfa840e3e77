// Package parser turns uploaded files into plain text for chunking.
// Parsing is lenient: an unknown format yields an empty result rather
// than an error, so the rest of the pipeline still runs and the
// document stays tracked.
package parser

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
)

// Result is the text extracted from one file.
type Result struct {
	Text     string            `json:"text"`
	Format   string            `json:"format"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Parser extracts text from a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*Result, error)
	SupportedFormats() []string
}

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the built-in parsers
// registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&TextParser{}, &PDFParser{}, &XLSXParser{}, &CSVParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Register adds or replaces the parser for a format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Parse extracts text from the file at path, choosing the parser by
// extension. An unrecognised extension returns an empty result; a
// parser failure is reported to the caller.
func (r *Registry) Parse(ctx context.Context, path string) (*Result, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	p, ok := r.parsers[format]
	if !ok {
		slog.Warn("parser: unsupported format, storing without text",
			"format", format, "file", filepath.Base(path))
		return &Result{Format: format}, nil
	}
	res, err := p.Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	res.Format = format
	return res, nil
}
