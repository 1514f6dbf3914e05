// Package embed defines the pluggable embedding provider abstraction and
// the deterministic offline provider. Remote providers live outside the
// engine (pkg/openaiclient) and are wrapped by Resilient so transport
// failures degrade softly instead of failing ingestion or queries.
package embed

import "context"

// Provider maps text to fixed-length vectors. Batch results match input
// order 1:1. Dimension is fixed per instance at construction and must
// match the dimensionality of the target index.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
