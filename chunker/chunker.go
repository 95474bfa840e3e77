// Package chunker splits raw document text into overlapping fixed-size
// word windows. Chunking is pure and deterministic: the same text and
// configuration always produce the same sequence of chunks, which keeps
// the embedding index reproducible across re-ingests.
package chunker

import "strings"

// Default window parameters, in words.
const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Config controls the chunking behaviour. Size is the window length in
// words; Overlap is the number of words shared between consecutive
// windows and must satisfy 0 <= Overlap < Size.
type Config struct {
	Size    int `json:"size" yaml:"size"`
	Overlap int `json:"overlap" yaml:"overlap"`
}

// Chunker converts raw text into overlapping word windows.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration. Zero or invalid
// values fall back to the defaults (500-word windows, 50-word overlap).
func New(cfg Config) *Chunker {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		cfg.Overlap = DefaultOverlap
		if cfg.Overlap >= cfg.Size {
			cfg.Overlap = cfg.Size / 10
		}
	}
	return &Chunker{cfg: cfg}
}

// Size returns the configured window length in words.
func (c *Chunker) Size() int { return c.cfg.Size }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.cfg.Overlap }

// Chunk splits text into windows of Size words, stepping Size-Overlap
// words at a time. Empty or whitespace-only text yields no chunks; text
// shorter than one window yields a single chunk containing all of it.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.cfg.Size - c.cfg.Overlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + c.cfg.Size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
