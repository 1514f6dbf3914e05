package embed

import (
	"context"
	"log/slog"

	"github.com/docstack-ai/docstack/engine/domain"
)

// Resilient wraps a remote provider with a deterministic fallback: a
// failed remote call is logged and answered from the fallback instead of
// surfacing the error. Degradation is per call; the next call tries the
// remote provider again.
type Resilient struct {
	primary  Provider
	fallback *Deterministic
	logger   *slog.Logger
}

// NewResilient builds the wrapper. The primary's dimensionality must match
// the fallback's, otherwise stored vectors would mix dimensionalities.
func NewResilient(primary Provider, fallback *Deterministic, logger *slog.Logger) (*Resilient, error) {
	if primary.Dimension() != fallback.Dimension() {
		return nil, domain.NewDimensionError(fallback.Dimension(), primary.Dimension())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{primary: primary, fallback: fallback, logger: logger}, nil
}

// Dimension returns the shared vector length.
func (r *Resilient) Dimension() int { return r.fallback.Dimension() }

// Embed tries the primary provider and degrades to the fallback on error.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.primary.Embed(ctx, text)
	if err != nil {
		r.logger.Warn("embed: provider degraded, using deterministic fallback", "err", err)
		return r.fallback.Embed(ctx, text)
	}
	return vec, nil
}

// EmbedBatch tries the primary provider and degrades the whole batch on
// error, preserving input order either way.
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := r.primary.EmbedBatch(ctx, texts)
	if err != nil {
		r.logger.Warn("embed: batch degraded, using deterministic fallback", "err", err, "texts", len(texts))
		return r.fallback.EmbedBatch(ctx, texts)
	}
	return vecs, nil
}
