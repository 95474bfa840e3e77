package askdoc

import "errors"

// Sentinel errors returned by the engine. Callers match them with
// errors.Is; wrapped variants carry the operation detail.
var (
	// ErrInvalidConfig indicates the engine configuration is
	// incomplete or inconsistent.
	ErrInvalidConfig = errors.New("askdoc: invalid configuration")

	// ErrEmbeddingFailed indicates chunk or query embedding failed;
	// the index was not modified.
	ErrEmbeddingFailed = errors.New("askdoc: embedding failed")

	// ErrGraphWriteFailed indicates extracted triples could not be
	// persisted to the graph.
	ErrGraphWriteFailed = errors.New("askdoc: graph write failed")

	// ErrDocumentNotFound indicates the requested document is not in
	// the registry.
	ErrDocumentNotFound = errors.New("askdoc: document not found")
)
