// Package retriever composes an embedding provider and a vector index into
// the query-to-ranked-chunks operation used by the pipeline.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docstack-ai/docstack/engine/domain"
	"github.com/docstack-ai/docstack/engine/embed"
	"github.com/docstack-ai/docstack/engine/index"
)

// Retriever embeds chunks into the index and answers similarity queries.
// It holds no cache: every Retrieve call re-embeds the query. That keeps
// the component stateless at the cost of one embedding call per query.
type Retriever struct {
	provider embed.Provider
	idx      index.Index
	logger   *slog.Logger
}

// Stats is the retriever's view of the index.
type Stats struct {
	DocumentCount int `json:"document_count"`
}

// New creates a Retriever.
func New(provider embed.Provider, idx index.Index, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{provider: provider, idx: idx, logger: logger}
}

// AddDocuments batch-embeds chunks and upserts them into the index.
// Index failures propagate: the index is the system of record.
func (r *Retriever) AddDocuments(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := r.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("retriever: embed %d chunks: %w", len(chunks), err)
	}

	records := make([]index.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = index.Record{
			Content:   ch.Content,
			Metadata:  ch.Metadata,
			Embedding: vectors[i],
		}
	}
	if err := r.idx.Upsert(ctx, records); err != nil {
		return fmt.Errorf("retriever: upsert: %w", err)
	}

	r.logger.Info("retriever: documents added", "chunks", len(chunks))
	return nil
}

// Retrieve embeds the query once, searches the index, and converts hits to
// RetrievedResults preserving nearest-first order. An empty index yields
// an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedResult, error) {
	vector, err := r.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}

	hits, err := r.idx.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("retriever: search: %w", err)
	}

	results := make([]domain.RetrievedResult, len(hits))
	for i, h := range hits {
		results[i] = domain.RetrievedResult{
			Content:         h.Content,
			Metadata:        h.Metadata,
			SimilarityScore: h.Score,
		}
	}
	return results, nil
}

// Dimension reports the provider's vector length.
func (r *Retriever) Dimension() int { return r.provider.Dimension() }

// Stats forwards the index record count.
func (r *Retriever) Stats(ctx context.Context) (Stats, error) {
	n, err := r.idx.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("retriever: count: %w", err)
	}
	return Stats{DocumentCount: n}, nil
}
