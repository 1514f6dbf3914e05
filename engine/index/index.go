// Package index defines the pluggable vector index abstraction and its two
// implementations: a Qdrant-backed store (durable, collection-scoped) and
// an in-memory store for offline operation and tests.
//
// Both implementations use cosine similarity and return hits ordered by
// decreasing score (nearest first). Record ids are minted at upsert time,
// never derived from content: ingesting identical text twice creates two
// records. Deduplication is explicitly not this layer's job.
package index

import (
	"context"

	"github.com/docstack-ai/docstack/engine/domain"
)

// Record is a chunk ready for indexing. The id is assigned by the index.
type Record struct {
	Content   string
	Metadata  domain.Metadata
	Embedding []float32
}

// Hit is a single nearest-neighbour match.
type Hit struct {
	ID       string
	Content  string
	Metadata domain.Metadata
	Score    float32
}

// Index persists embedding records and answers nearest-neighbour queries.
// Searching an empty index returns an empty slice, not an error. Upserting
// an embedding whose length differs from the index dimensionality fails
// with domain.ErrDimensionMismatch.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, embedding []float32, topK int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
}
