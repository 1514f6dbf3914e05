package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// DefaultDimension matches text-embedding-3-small so the deterministic
// provider can stand in for the remote one against the same index.
const DefaultDimension = 1536

// Deterministic derives embeddings from a content hash: the same text
// always yields the same vector, within and across instances. The vectors
// carry no semantic meaning; the provider exists so the rest of the
// pipeline runs fully offline.
type Deterministic struct {
	dim int
}

// NewDeterministic creates a Deterministic provider with the given
// dimensionality (DefaultDimension if non-positive).
func NewDeterministic(dim int) *Deterministic {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Deterministic{dim: dim}
}

// Dimension returns the fixed vector length.
func (d *Deterministic) Dimension() int { return d.dim }

// Embed returns the hash-seeded unit vector for text. Never fails.
func (d *Deterministic) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float32, d.dim)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	// Unit length keeps cosine scores well-behaved.
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (d *Deterministic) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := d.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}
