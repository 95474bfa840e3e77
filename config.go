package askdoc

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/askdoc/askdoc/chunker"
	"github.com/askdoc/askdoc/llm"
)

// Config holds all configuration for the AskDoc engine.
type Config struct {
	// DataDir is where the engine keeps its databases, the uploads
	// directory, and graph exports. If empty, defaults to
	// ~/.askdoc (falling back to ./askdoc-data when no home
	// directory is available).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// LLM providers. Embedding may be left zero to reuse Chat.
	Chat      llm.Config `json:"chat" yaml:"chat"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// Chunking window, in words.
	Chunking chunker.Config `json:"chunking" yaml:"chunking"`

	// EmbeddingDim must match the embedding model's output width.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// TopK is the default number of chunks retrieved per question.
	TopK int `json:"top_k" yaml:"top_k"`

	// AnswerTimeoutSecs bounds each answer generation call.
	AnswerTimeoutSecs int `json:"answer_timeout_secs" yaml:"answer_timeout_secs"`
}

// DefaultConfig returns a Config tuned for local inference via
// Ollama. Data lives in ~/.askdoc by default.
func DefaultConfig() Config {
	return Config{
		Chat: llm.Config{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: llm.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Chunking: chunker.Config{
			Size:    chunker.DefaultSize,
			Overlap: chunker.DefaultOverlap,
		},
		EmbeddingDim:      768,
		TopK:              3,
		AnswerTimeoutSecs: 120,
	}
}

// LoadConfig reads a YAML config file, applying defaults for unset
// fields.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// resolveDataDir computes the final data directory.
func (c *Config) resolveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "askdoc-data"
	}
	return filepath.Join(home, ".askdoc")
}

// embeddingConfig returns the provider config used for embeddings,
// falling back to the chat provider when unset.
func (c *Config) embeddingConfig() llm.Config {
	if c.Embedding.Provider == "" {
		return c.Chat
	}
	return c.Embedding
}
