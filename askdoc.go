// Package askdoc is a hybrid question-answering engine over uploaded
// documents. Ingestion parses a file, chunks its text into an
// embedding index, and extracts entities and relations into a
// persistent graph. Questions are answered by retrieving from both
// the index and the graph and synthesising an answer with a chat
// model.
package askdoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/askdoc/askdoc/chunker"
	"github.com/askdoc/askdoc/extract"
	"github.com/askdoc/askdoc/graph"
	"github.com/askdoc/askdoc/index"
	"github.com/askdoc/askdoc/llm"
	"github.com/askdoc/askdoc/parser"
	"github.com/askdoc/askdoc/retrieval"
	"github.com/askdoc/askdoc/store"
	"github.com/askdoc/askdoc/synthesis"
)

// IngestResult reports what happened to one uploaded file.
type IngestResult struct {
	DocID    int64  `json:"doc_id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Chunks   int    `json:"chunks"`
	Entities int    `json:"entities"`
	Triples  int    `json:"triples"`
}

// Answer is the engine's response to a question.
type Answer struct {
	Text       string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// AskOption configures a single Ask call.
type AskOption func(*askOptions)

type askOptions struct {
	domain string
	role   string
	topK   int
}

// WithDomain frames the answer for a subject domain.
func WithDomain(domain string) AskOption {
	return func(o *askOptions) { o.domain = domain }
}

// WithRole frames the answer for a reader role.
func WithRole(role string) AskOption {
	return func(o *askOptions) { o.role = role }
}

// WithTopK overrides how many chunks the vector channel retrieves.
func WithTopK(k int) AskOption {
	return func(o *askOptions) { o.topK = k }
}

// Engine is the document question-answering engine.
type Engine struct {
	cfg       Config
	dataDir   string
	docs      *store.Store
	idx       *index.Index
	graph     *graph.Store
	parsers   *parser.Registry
	chunkr    *chunker.Chunker
	extractor *extract.Extractor
	fusion    *retrieval.Fusion
	synth     *synthesis.Synthesizer
	chatLLM   llm.Provider
}

// New creates an Engine from configuration, opening (or creating) its
// stores under the data directory.
func New(cfg Config) (*Engine, error) {
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}
	if cfg.EmbeddingDim < 0 {
		return nil, fmt.Errorf("%w: negative embedding dimension", ErrInvalidConfig)
	}

	dataDir := cfg.resolveDataDir()
	if err := os.MkdirAll(filepath.Join(dataDir, "uploads"), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	chatLLM, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("%w: chat provider: %v", ErrInvalidConfig, err)
	}
	embedLLM, err := llm.NewProvider(cfg.embeddingConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: embedding provider: %v", ErrInvalidConfig, err)
	}

	docs, err := store.Open(filepath.Join(dataDir, "documents.db"))
	if err != nil {
		return nil, fmt.Errorf("opening document registry: %w", err)
	}

	idx, err := index.New(filepath.Join(dataDir, "index.db"), cfg.EmbeddingDim, embedLLM)
	if err != nil {
		docs.Close()
		return nil, fmt.Errorf("opening embedding index: %w", err)
	}

	g, err := graph.Open(filepath.Join(dataDir, "graph.db"))
	if err != nil {
		docs.Close()
		idx.Close()
		return nil, fmt.Errorf("opening graph store: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		dataDir:   dataDir,
		docs:      docs,
		idx:       idx,
		graph:     g,
		parsers:   parser.NewRegistry(),
		chunkr:    chunker.New(cfg.Chunking),
		extractor: extract.New(nil),
		fusion:    retrieval.NewFusion(g, idx),
		synth: synthesis.New(chatLLM, cfg.Chat.Model,
			time.Duration(cfg.AnswerTimeoutSecs)*time.Second),
		chatLLM: chatLLM,
	}, nil
}

// Close releases all underlying stores.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{e.docs, e.idx, e.graph} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ingest stores data under filename and runs the full pipeline:
// parse, chunk, embed into the index, extract entities and relations
// into the graph. A filename that already exists short-circuits with
// status "exists" and no reprocessing. An indexing failure does not
// block graph extraction; the document ends in status failed but
// whatever succeeded stays persisted.
func (e *Engine) Ingest(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	if existing, err := e.docs.GetByFilename(ctx, filename); err == nil {
		slog.Info("ingest: duplicate filename, skipping", "file", filename, "doc_id", existing.ID)
		return &IngestResult{
			DocID:    existing.ID,
			Filename: filename,
			Status:   "exists",
			Chunks:   existing.Chunks,
		}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	path := filepath.Join(e.dataDir, "uploads", filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	docID, err := e.docs.Register(ctx, filename)
	if err != nil {
		return nil, err
	}
	res := &IngestResult{DocID: docID, Filename: filename}

	slog.Info("ingest: parsing document", "file", filename, "doc_id", docID)
	parsed, err := e.parsers.Parse(ctx, path)
	if err != nil {
		e.docs.SetStatus(ctx, docID, store.StatusFailed)
		res.Status = store.StatusFailed
		return res, fmt.Errorf("parsing %s: %w", filename, err)
	}
	e.docs.SetMetadata(ctx, docID, parsed.Metadata)
	e.docs.SetStatus(ctx, docID, store.StatusParsed)

	chunks := e.chunkr.Chunk(parsed.Text)
	e.docs.SetChunks(ctx, docID, len(chunks))
	e.docs.SetStatus(ctx, docID, store.StatusChunked)
	res.Chunks = len(chunks)
	slog.Info("ingest: chunking complete", "file", filename, "chunks", len(chunks))

	indexed := true
	if len(chunks) > 0 {
		if err := e.idx.Add(ctx, docID, chunks); err != nil {
			// Graph extraction still runs; the two stores are
			// independent.
			slog.Warn("ingest: indexing failed", "file", filename, "error", err)
			indexed = false
		} else {
			e.docs.SetStatus(ctx, docID, store.StatusIndexed)
		}
	} else {
		e.docs.SetStatus(ctx, docID, store.StatusIndexed)
	}

	extracted := e.extractor.Extract(parsed.Text)
	res.Entities = len(extracted.Entities)
	res.Triples = len(extracted.Triples)
	e.docs.SetStatus(ctx, docID, store.StatusExtracted)

	if err := e.graph.UpsertEntities(ctx, extracted.Entities); err != nil {
		e.docs.SetStatus(ctx, docID, store.StatusFailed)
		res.Status = store.StatusFailed
		return res, fmt.Errorf("%w: %v", ErrGraphWriteFailed, err)
	}
	if err := e.graph.UpsertTriples(ctx, filename, extracted.Triples); err != nil {
		e.docs.SetStatus(ctx, docID, store.StatusFailed)
		res.Status = store.StatusFailed
		return res, fmt.Errorf("%w: %v", ErrGraphWriteFailed, err)
	}
	e.docs.SetStatus(ctx, docID, store.StatusGraphUpserted)

	if !indexed {
		e.docs.SetStatus(ctx, docID, store.StatusFailed)
		res.Status = store.StatusFailed
		return res, fmt.Errorf("%w: document %s stored but not indexed", ErrEmbeddingFailed, filename)
	}

	e.docs.SetStatus(ctx, docID, store.StatusQueryable)
	res.Status = store.StatusQueryable
	slog.Info("ingest: document ready",
		"file", filename, "doc_id", docID,
		"chunks", res.Chunks, "entities", res.Entities, "triples", res.Triples)
	return res, nil
}

// IngestFile reads path from disk and ingests it under its base name.
func (e *Engine) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return e.Ingest(ctx, filepath.Base(path), data)
}

// Ask answers a question from the ingested corpus.
func (e *Engine) Ask(ctx context.Context, question string, opts ...AskOption) (*Answer, error) {
	var o askOptions
	for _, opt := range opts {
		opt(&o)
	}
	topK := o.topK
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	start := time.Now()
	rc, err := e.fusion.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	ans, err := e.synth.Synthesize(ctx, synthesis.Request{
		Question: question,
		Domain:   o.domain,
		Role:     o.role,
	}, rc)
	if err != nil {
		return nil, err
	}

	slog.Info("ask: answered",
		"entities", len(rc.Entities), "chunks", len(rc.Chunks),
		"confidence", ans.Confidence,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return &Answer{Text: ans.Text, Sources: ans.Sources, Confidence: ans.Confidence}, nil
}

// ListDocuments returns all registered documents, newest first.
func (e *Engine) ListDocuments(ctx context.Context) ([]store.Document, error) {
	return e.docs.List(ctx)
}

// GetDocument returns one document by id.
func (e *Engine) GetDocument(ctx context.Context, id int64) (store.Document, error) {
	doc, err := e.docs.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Document{}, fmt.Errorf("%w: id %d", ErrDocumentNotFound, id)
	}
	return doc, err
}

// GraphStats returns the current graph size.
func (e *Engine) GraphStats(ctx context.Context) (graph.Stats, error) {
	return e.graph.Stats(ctx)
}

// ExportGraph writes the graph as JSON to path. An empty path
// defaults to graph.json in the data directory.
func (e *Engine) ExportGraph(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = filepath.Join(e.dataDir, "graph.json")
	}
	if err := e.graph.ExportJSON(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}
