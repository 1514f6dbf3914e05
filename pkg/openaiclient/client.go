// Package openaiclient adapts the OpenAI API to the engine's embedding
// provider contract. Calls are rate limited client-side and retried with
// exponential backoff before the caller sees an error.
package openaiclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/docstack-ai/docstack/pkg/fn"
)

// DefaultEmbedModel matches the 1536-dimensional small embedding model.
const DefaultEmbedModel = openai.SmallEmbedding3

// embeddingsAPI is the slice of the OpenAI client we depend on.
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config controls the embedder's model and client-side throttling.
type Config struct {
	Model      openai.EmbeddingModel
	Dimension  int
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	Retry      fn.RetryOpts
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Model:      DefaultEmbedModel,
		Dimension:  1536,
		RatePerSec: 5,
		Burst:      10,
		Timeout:    30 * time.Second,
		Retry:      fn.DefaultRetry,
	}
}

// Embedder implements the engine's embedding provider against OpenAI.
type Embedder struct {
	api     embeddingsAPI
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewEmbedder creates an Embedder from an API key.
func NewEmbedder(apiKey string, cfg Config, logger *slog.Logger) *Embedder {
	return NewEmbedderWithClient(openai.NewClient(apiKey), cfg, logger)
}

// NewEmbedderWithClient is the test seam.
func NewEmbedderWithClient(api embeddingsAPI, cfg Config, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbedModel
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = 1536
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Burst == 0 {
		cfg.Burst = 10
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fn.DefaultRetry
	}
	return &Embedder{
		api:     api,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:  logger,
	}
}

// Dimension reports the configured vector width.
func (e *Embedder) Dimension() int { return e.cfg.Dimension }

// Embed embeds a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one API call, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openaiclient: rate limit wait: %w", err)
	}

	result := fn.Retry(ctx, e.cfg.Retry, func(ctx context.Context) fn.Result[openai.EmbeddingResponse] {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		resp, err := e.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input:      texts,
			Model:      e.cfg.Model,
			Dimensions: e.cfg.Dimension,
		})
		if err != nil {
			e.logger.Warn("openaiclient: embeddings call failed", "err", err, "texts", len(texts))
		}
		return fn.FromPair(resp, err)
	})
	resp, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("openaiclient: create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openaiclient: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	// The API may reorder data; Index points back at the input position.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openaiclient: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
