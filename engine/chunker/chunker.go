// Package chunker splits raw document text into bounded retrievable
// segments using a two-tier strategy: paragraph boundaries first, falling
// back to sentence boundaries when any paragraph exceeds the size target.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/docstack-ai/docstack/engine/domain"
)

const (
	// DefaultChunkSize is the target number of characters per chunk.
	DefaultChunkSize = 512
	// DefaultOverlap is the reserved sliding-window overlap. The current
	// algorithm does not apply it; it is kept so callers configuring a
	// window today keep working when overlapping windows land.
	DefaultOverlap = 50
)

var (
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
	sentenceRe  = regexp.MustCompile(`[.!?]+`)
)

// Config holds the chunking parameters.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Chunker splits text and documents into chunks.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Non-positive values fall back to defaults.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultOverlap
	}
	return &Chunker{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
}

// ChunkSize returns the configured target segment length.
func (c *Chunker) ChunkSize() int { return c.size }

// Overlap returns the configured (reserved) overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split splits text into segments. It first splits on blank-line
// paragraph boundaries; if any resulting segment is longer than the
// chunk size the paragraph split is discarded entirely and the original
// text is split on sentence-terminal punctuation instead. No further
// recursion happens after the sentence pass, so a single oversized
// sentence is returned as-is; callers needing a hard ceiling must
// post-filter.
func (c *Chunker) Split(text string) []string {
	paragraphs := splitAndTrim(paragraphRe, text)

	oversized := false
	for _, p := range paragraphs {
		if utf8.RuneCountInString(p) > c.size {
			oversized = true
			break
		}
	}
	if !oversized {
		return paragraphs
	}
	return splitAndTrim(sentenceRe, text)
}

// ChunkDocuments splits each document's content and emits one Chunk per
// segment. chunk_id is the 0-based position within the parent document
// and total_chunks the segment count for that document alone.
func (c *Chunker) ChunkDocuments(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		segments := c.Split(doc.Content)
		for i, segment := range segments {
			chunks = append(chunks, domain.Chunk{
				Content:  segment,
				Metadata: domain.MergeChunkMeta(doc.Metadata, i, len(segments)),
			})
		}
	}
	return chunks
}

func splitAndTrim(re *regexp.Regexp, text string) []string {
	parts := re.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
