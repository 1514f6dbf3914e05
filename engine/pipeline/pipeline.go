// Package pipeline orchestrates document ingestion and question answering:
// load, chunk, embed, index on the way in; retrieve and generate on the
// way out. The orchestrator degrades instead of failing where it can, so
// callers always get a well-formed response.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docstack-ai/docstack/engine/answer"
	"github.com/docstack-ai/docstack/engine/chunker"
	"github.com/docstack-ai/docstack/engine/domain"
	"github.com/docstack-ai/docstack/engine/loader"
	"github.com/docstack-ai/docstack/engine/retriever"
	"github.com/docstack-ai/docstack/pkg/fn"
)

// DefaultTopK is used when a query does not specify how many chunks to retrieve.
const DefaultTopK = 5

// Orchestrator wires the ingestion and query paths together.
type Orchestrator struct {
	loader    loader.Loader
	chunker   *chunker.Chunker
	retriever *retriever.Retriever
	generator answer.Generator
	logger    *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// Stats accumulates rolling query timings. Averages are in seconds.
type Stats struct {
	TotalQueries          int     `json:"total_queries"`
	AverageRetrievalTime  float64 `json:"average_retrieval_time"`
	AverageGenerationTime float64 `json:"average_generation_time"`
}

// Performance reports per-query timings in seconds.
type Performance struct {
	RetrievalTimeSeconds float64 `json:"retrieval_time_seconds"`
	TotalTimeSeconds     float64 `json:"total_time_seconds"`
}

// QueryResponse is the full answer envelope. Every field is present even
// when the query failed internally; Error is empty on success.
type QueryResponse struct {
	Question          string                   `json:"question"`
	Answer            string                   `json:"answer"`
	RelevantDocuments []domain.RetrievedResult `json:"relevant_documents"`
	DocumentCount     int                      `json:"document_count"`
	Performance       Performance              `json:"performance"`
	Error             string                   `json:"error,omitempty"`
}

// VectorStoreStatus is the index portion of a status snapshot.
type VectorStoreStatus struct {
	DocumentCount int `json:"document_count"`
}

// ConfigSnapshot echoes the effective configuration.
type ConfigSnapshot struct {
	ChunkSize          int `json:"chunk_size"`
	ChunkOverlap       int `json:"chunk_overlap"`
	EmbeddingDimension int `json:"embedding_dimension"`
	DefaultTopK        int `json:"default_top_k"`
}

// Status is a read-only snapshot of the system.
type Status struct {
	Status      string            `json:"status"`
	VectorStore VectorStoreStatus `json:"vector_store"`
	Performance Stats             `json:"performance"`
	Config      ConfigSnapshot    `json:"config"`
}

// New creates an Orchestrator.
func New(ld loader.Loader, ck *chunker.Chunker, rt *retriever.Retriever, gen answer.Generator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		loader:    ld,
		chunker:   ck,
		retriever: rt,
		generator: gen,
		logger:    logger,
	}
}

// ingestStage builds the load -> chunk -> index stage chain for one path.
func (o *Orchestrator) ingestStage() fn.Stage[string, int] {
	load := fn.TracedStage("ingest.load", func(ctx context.Context, path string) fn.Result[[]domain.Document] {
		return fn.FromPair(o.loader.Load(ctx, path))
	})
	chunk := fn.TracedStage("ingest.chunk", fn.MapStage(o.chunker.ChunkDocuments))
	store := fn.TracedStage("ingest.store", func(ctx context.Context, chunks []domain.Chunk) fn.Result[int] {
		if err := o.retriever.AddDocuments(ctx, chunks); err != nil {
			return fn.Err[int](err)
		}
		return fn.Ok(len(chunks))
	})
	return fn.Then(fn.Then(load, chunk), store)
}

// Ingest loads a file, chunks it, and indexes the chunks. It reports
// success as a bool: failures are logged, never returned. Chunks written
// before a mid-batch failure stay in the index.
func (o *Orchestrator) Ingest(ctx context.Context, path string) bool {
	start := time.Now()
	chunks, err := o.ingestStage()(ctx, path).Unwrap()
	if err != nil {
		o.logger.Error("pipeline: ingest failed", "path", path, "err", err)
		return false
	}
	o.logger.Info("pipeline: ingested",
		"path", path,
		"chunks", chunks,
		"duration", time.Since(start))
	return true
}

// Query answers a question from the indexed corpus. The response is
// always well formed: an internal failure fills Error and leaves the
// document fields empty rather than surfacing a Go error.
func (o *Orchestrator) Query(ctx context.Context, question string, topK int) QueryResponse {
	start := time.Now()
	if topK <= 0 {
		topK = DefaultTopK
	}
	resp := QueryResponse{
		Question:          question,
		RelevantDocuments: []domain.RetrievedResult{},
	}

	if err := domain.ValidateQuery(question, topK); err != nil {
		return o.failQuery(resp, start, err)
	}

	retrievalStart := time.Now()
	results, err := o.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return o.failQuery(resp, start, fmt.Errorf("retrieve: %w", err))
	}
	retrievalTime := time.Since(retrievalStart)

	generationStart := time.Now()
	text, err := o.generator.Generate(ctx, question, results)
	if err != nil {
		return o.failQuery(resp, start, fmt.Errorf("generate: %w", err))
	}
	generationTime := time.Since(generationStart)

	o.recordQuery(retrievalTime, generationTime)

	resp.Answer = text
	resp.RelevantDocuments = results
	resp.DocumentCount = len(results)
	resp.Performance = Performance{
		RetrievalTimeSeconds: retrievalTime.Seconds(),
		TotalTimeSeconds:     time.Since(start).Seconds(),
	}
	return resp
}

// failQuery converts an internal error into a degraded response.
func (o *Orchestrator) failQuery(resp QueryResponse, start time.Time, err error) QueryResponse {
	o.logger.Error("pipeline: query failed", "question", resp.Question, "err", err)
	resp.Answer = "Error processing query. Please try again."
	resp.Error = err.Error()
	resp.Performance = Performance{TotalTimeSeconds: time.Since(start).Seconds()}
	return resp
}

// recordQuery folds one query's timings into the rolling averages.
func (o *Orchestrator) recordQuery(retrieval, generation time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := float64(o.stats.TotalQueries)
	o.stats.AverageRetrievalTime = (o.stats.AverageRetrievalTime*n + retrieval.Seconds()) / (n + 1)
	o.stats.AverageGenerationTime = (o.stats.AverageGenerationTime*n + generation.Seconds()) / (n + 1)
	o.stats.TotalQueries++
}

// PipelineStats returns a copy of the rolling stats.
func (o *Orchestrator) PipelineStats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// SystemStatus reports index size, query stats, and the effective
// configuration. Reading it never mutates state, so repeated calls
// return identical snapshots when the system is idle.
func (o *Orchestrator) SystemStatus(ctx context.Context) Status {
	st := Status{
		Status:      "running",
		Performance: o.PipelineStats(),
		Config: ConfigSnapshot{
			ChunkSize:          o.chunker.ChunkSize(),
			ChunkOverlap:       o.chunker.Overlap(),
			EmbeddingDimension: o.retriever.Dimension(),
			DefaultTopK:        DefaultTopK,
		},
	}
	idx, err := o.retriever.Stats(ctx)
	if err != nil {
		o.logger.Warn("pipeline: status: index count unavailable", "err", err)
		st.Status = "degraded"
		return st
	}
	st.VectorStore = VectorStoreStatus{DocumentCount: idx.DocumentCount}
	return st
}
