// Package domain defines the core data model for the docstack pipeline:
// documents produced by loaders, chunks derived from them, and retrieval
// results handed back to callers. It also owns the sentinel errors shared
// across the engine.
package domain

// Metadata carries scalar key/value pairs attached to a document or chunk.
type Metadata map[string]any

// Reserved metadata keys. Loaders set source/page/total_pages; the chunker
// sets chunk_id/total_chunks.
const (
	MetaSource      = "source"
	MetaPage        = "page"
	MetaTotalPages  = "total_pages"
	MetaChunkID     = "chunk_id"
	MetaTotalChunks = "total_chunks"
)

// Document is one loadable unit of text, typically a single page of a
// source file. Immutable once created.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Chunk is a bounded segment of exactly one Document, ordered within its
// parent by the chunk_id metadata key.
type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// RetrievedResult is a chunk returned from a similarity query. Ephemeral,
// never persisted.
type RetrievedResult struct {
	Content         string   `json:"content"`
	Metadata        Metadata `json:"metadata"`
	SimilarityScore float32  `json:"similarity_score"`
}

// MergeChunkMeta builds chunk metadata from its parent document's metadata
// plus the positional chunk fields. The document map is the base and is
// never mutated; the reserved chunk keys are written last, so a document
// that (incorrectly) carries chunk_id or total_chunks has them replaced.
// Non-reserved document keys always survive untouched.
func MergeChunkMeta(doc Metadata, chunkID, totalChunks int) Metadata {
	merged := make(Metadata, len(doc)+2)
	for k, v := range doc {
		merged[k] = v
	}
	merged[MetaChunkID] = chunkID
	merged[MetaTotalChunks] = totalChunks
	return merged
}
