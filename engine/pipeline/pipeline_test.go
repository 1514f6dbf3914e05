package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docstack-ai/docstack/engine/answer"
	"github.com/docstack-ai/docstack/engine/chunker"
	"github.com/docstack-ai/docstack/engine/domain"
	"github.com/docstack-ai/docstack/engine/embed"
	"github.com/docstack-ai/docstack/engine/index"
	"github.com/docstack-ai/docstack/engine/loader"
	"github.com/docstack-ai/docstack/engine/retriever"
)

func newOrchestrator(t *testing.T, idx index.Index) *Orchestrator {
	t.Helper()
	if idx == nil {
		idx = index.NewMemory(64)
	}
	rt := retriever.New(embed.NewDeterministic(64), idx, nil)
	return New(loader.NewFile(), chunker.New(chunker.Config{}), rt, answer.NewPlaceholder(), nil)
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestAndQuery(t *testing.T) {
	idx := index.NewMemory(64)
	o := newOrchestrator(t, idx)
	ctx := context.Background()

	path := writeDoc(t, "facts.txt", "The sky is blue.\n\nGrass is green.")
	if !o.Ingest(ctx, path) {
		t.Fatal("Ingest returned false for a valid file")
	}
	if n, _ := idx.Count(ctx); n != 2 {
		t.Fatalf("index count = %d, want 2", n)
	}

	resp := o.Query(ctx, "what color is the sky?", 2)
	if resp.Error != "" {
		t.Fatalf("unexpected query error: %s", resp.Error)
	}
	if resp.Question != "what color is the sky?" {
		t.Errorf("question = %q", resp.Question)
	}
	if resp.DocumentCount != 2 || len(resp.RelevantDocuments) != 2 {
		t.Errorf("document count = %d, docs = %d", resp.DocumentCount, len(resp.RelevantDocuments))
	}
	if !strings.Contains(resp.Answer, "I found 2 relevant documents") {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Performance.TotalTimeSeconds < resp.Performance.RetrievalTimeSeconds {
		t.Error("total time must include retrieval time")
	}
}

func TestIngestMissingFile(t *testing.T) {
	o := newOrchestrator(t, nil)
	if o.Ingest(context.Background(), filepath.Join(t.TempDir(), "gone.txt")) {
		t.Fatal("Ingest must return false for a missing file")
	}
}

type brokenIndex struct{ index.Index }

func (b *brokenIndex) Upsert(context.Context, []index.Record) error {
	return errors.New("store down")
}

func TestIngestStoreFailure(t *testing.T) {
	o := newOrchestrator(t, &brokenIndex{Index: index.NewMemory(64)})
	path := writeDoc(t, "doc.txt", "Some content.")
	if o.Ingest(context.Background(), path) {
		t.Fatal("Ingest must return false when the index rejects the write")
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	o := newOrchestrator(t, nil)
	resp := o.Query(context.Background(), "anything at all?", 0)
	if resp.Error != "" {
		t.Fatalf("empty index must not be an error: %s", resp.Error)
	}
	if resp.DocumentCount != 0 || len(resp.RelevantDocuments) != 0 {
		t.Errorf("expected no documents, got %d", resp.DocumentCount)
	}
	if !strings.Contains(resp.Answer, "No relevant documents found") {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestQueryValidation(t *testing.T) {
	o := newOrchestrator(t, nil)
	resp := o.Query(context.Background(), "   ", 5)
	if resp.Error == "" {
		t.Fatal("blank question must set the error field")
	}
	if resp.RelevantDocuments == nil {
		t.Error("relevant_documents must be present even on failure")
	}
	if !strings.Contains(resp.Answer, "Error processing query") {
		t.Errorf("answer = %q", resp.Answer)
	}
	if o.PipelineStats().TotalQueries != 0 {
		t.Error("failed queries must not count toward stats")
	}
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, []domain.RetrievedResult) (string, error) {
	return "", errors.New("model offline")
}

func TestQueryGeneratorFailure(t *testing.T) {
	rt := retriever.New(embed.NewDeterministic(64), index.NewMemory(64), nil)
	o := New(loader.NewFile(), chunker.New(chunker.Config{}), rt, failingGenerator{}, nil)

	resp := o.Query(context.Background(), "question?", 3)
	if !strings.Contains(resp.Error, "model offline") {
		t.Fatalf("error = %q", resp.Error)
	}
	if resp.Question != "question?" {
		t.Error("question must survive a failed query")
	}
}

func TestStatsAccumulate(t *testing.T) {
	o := newOrchestrator(t, nil)
	ctx := context.Background()

	o.Query(ctx, "one?", 1)
	o.Query(ctx, "two?", 1)

	stats := o.PipelineStats()
	if stats.TotalQueries != 2 {
		t.Fatalf("TotalQueries = %d, want 2", stats.TotalQueries)
	}
	if stats.AverageRetrievalTime < 0 {
		t.Error("negative average retrieval time")
	}
}

func TestSystemStatusIdempotent(t *testing.T) {
	o := newOrchestrator(t, nil)
	ctx := context.Background()

	path := writeDoc(t, "doc.txt", "Content here.")
	o.Ingest(ctx, path)

	first := o.SystemStatus(ctx)
	second := o.SystemStatus(ctx)
	if first != second {
		t.Errorf("status changed between reads: %+v vs %+v", first, second)
	}
	if first.Status != "running" {
		t.Errorf("status = %q", first.Status)
	}
	if first.VectorStore.DocumentCount != 1 {
		t.Errorf("document count = %d, want 1", first.VectorStore.DocumentCount)
	}
	if first.Config.ChunkSize != chunker.DefaultChunkSize || first.Config.EmbeddingDimension != 64 {
		t.Errorf("config snapshot = %+v", first.Config)
	}
}

type countErrIndex struct{ index.Index }

func (c *countErrIndex) Count(context.Context) (int, error) {
	return 0, errors.New("unreachable")
}

func TestSystemStatusDegraded(t *testing.T) {
	o := newOrchestrator(t, &countErrIndex{Index: index.NewMemory(64)})
	st := o.SystemStatus(context.Background())
	if st.Status != "degraded" {
		t.Errorf("status = %q, want degraded", st.Status)
	}
}
