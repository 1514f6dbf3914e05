package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docstack-ai/docstack/engine/domain"
	"github.com/google/uuid"
)

// Memory is a process-local Index using exact cosine similarity. It is not
// durable; it exists so retrieval runs without a Qdrant instance, paired
// with the deterministic embedding provider. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	dims    int
	records []memRecord
}

type memRecord struct {
	id        string
	content   string
	metadata  domain.Metadata
	embedding []float32
}

// NewMemory creates an empty in-memory index with fixed dimensionality.
func NewMemory(dims int) *Memory {
	return &Memory{dims: dims}
}

// Dimension returns the vector length accepted by the index.
func (m *Memory) Dimension() int { return m.dims }

// Upsert appends records, minting a fresh uuid per record. Content is
// never deduplicated.
func (m *Memory) Upsert(_ context.Context, records []Record) error {
	for _, r := range records {
		if len(r.Embedding) != m.dims {
			return fmt.Errorf("index: upsert: %w", domain.NewDimensionError(m.dims, len(r.Embedding)))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records = append(m.records, memRecord{
			id:        uuid.NewString(),
			content:   r.Content,
			metadata:  r.Metadata,
			embedding: r.Embedding,
		})
	}
	return nil
}

// Search returns up to topK records ordered by decreasing cosine
// similarity. An empty index yields an empty slice.
func (m *Memory) Search(_ context.Context, embedding []float32, topK int) ([]Hit, error) {
	if len(embedding) != m.dims {
		return nil, fmt.Errorf("index: search: %w", domain.NewDimensionError(m.dims, len(embedding)))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.records))
	for _, r := range m.records {
		hits = append(hits, Hit{
			ID:       r.id,
			Content:  r.content,
			Metadata: r.metadata,
			Score:    cosine(embedding, r.embedding),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of stored records.
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
