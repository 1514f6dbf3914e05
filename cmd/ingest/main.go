// Command ingest loads documents into the vector index. It processes the
// files given as arguments, or watches a directory when -watch is set.
// With -queue it publishes paths to NATS instead of ingesting locally,
// leaving the work to the API server's consumer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/docstack-ai/docstack/engine/answer"
	"github.com/docstack-ai/docstack/engine/chunker"
	"github.com/docstack-ai/docstack/engine/embed"
	"github.com/docstack-ai/docstack/engine/index"
	"github.com/docstack-ai/docstack/engine/loader"
	"github.com/docstack-ai/docstack/engine/pipeline"
	"github.com/docstack-ai/docstack/engine/retriever"
	"github.com/docstack-ai/docstack/pkg/openaiclient"
)

func main() {
	var (
		watchDir   = flag.String("watch", "", "directory to watch for documents")
		interval   = flag.Duration("interval", 30*time.Second, "scan interval in watch mode")
		stateFile  = flag.String("state", "", "processed files state (watch mode, default <dir>/.ingest-state.json)")
		queueURL   = flag.String("queue", "", "publish paths to this NATS URL instead of ingesting locally")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "docstack"), "Qdrant collection name")
		dims       = flag.Int("dims", embed.DefaultDimension, "embedding dimension")
		chunkSize  = flag.Int("chunk-size", chunker.DefaultChunkSize, "max chunk length in characters")
	)
	_ = godotenv.Load()
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *watchDir == "" && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [flags] <file>... or ingest -watch <dir>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var process func(ctx context.Context, path string) bool
	if *queueURL != "" {
		nc, err := nats.Connect(*queueURL)
		if err != nil {
			logger.Error("nats connect failed", "err", err)
			os.Exit(1)
		}
		defer nc.Close()
		process = func(_ context.Context, path string) bool {
			data, _ := json.Marshal(pipeline.IngestRequest{Path: path})
			if err := nc.Publish(pipeline.IngestSubject, data); err != nil {
				logger.Error("publish failed", "path", path, "err", err)
				return false
			}
			logger.Info("queued", "path", path)
			return true
		}
	} else {
		orch, closeFn, err := buildOrchestrator(ctx, *qdrantAddr, *collection, *dims, *chunkSize, logger)
		if err != nil {
			logger.Error("setup failed", "err", err)
			os.Exit(1)
		}
		defer closeFn()
		process = orch.Ingest
	}

	if *watchDir == "" {
		failed := 0
		for _, path := range flag.Args() {
			if !process(ctx, path) {
				failed++
			}
		}
		if failed > 0 {
			logger.Error("ingestion finished with failures", "failed", failed)
			os.Exit(1)
		}
		return
	}

	state := *stateFile
	if state == "" {
		state = filepath.Join(*watchDir, ".ingest-state.json")
	}
	watch(ctx, *watchDir, *interval, state, process, logger)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// buildProvider picks the embedding provider the same way the API server
// does: OpenAI with a deterministic fallback when a key is configured,
// deterministic alone otherwise. Ingesting with a different provider than
// the server queries with would mix vector spaces in one collection.
func buildProvider(apiKey string, dims int, logger *slog.Logger) (embed.Provider, error) {
	fallback := embed.NewDeterministic(dims)
	if apiKey == "" {
		logger.Info("no OpenAI key configured, using deterministic embeddings")
		return fallback, nil
	}
	cfg := openaiclient.DefaultConfig()
	cfg.Dimension = dims
	return embed.NewResilient(openaiclient.NewEmbedder(apiKey, cfg, logger), fallback, logger)
}

// buildOrchestrator wires a local ingestion pipeline. The API key decides
// between remote and deterministic embeddings, same as the server.
func buildOrchestrator(ctx context.Context, qdrantAddr, collection string, dims, chunkSize int, logger *slog.Logger) (*pipeline.Orchestrator, func(), error) {
	idx, err := index.NewQdrant(qdrantAddr, collection, dims)
	if err != nil {
		return nil, nil, fmt.Errorf("qdrant connect: %w", err)
	}
	if err := idx.EnsureCollection(ctx); err != nil {
		idx.Close()
		return nil, nil, fmt.Errorf("qdrant collection: %w", err)
	}

	provider, err := buildProvider(os.Getenv("OPENAI_API_KEY"), dims, logger)
	if err != nil {
		idx.Close()
		return nil, nil, fmt.Errorf("embedding provider: %w", err)
	}

	orch := pipeline.New(
		loader.NewFile(),
		chunker.New(chunker.Config{ChunkSize: chunkSize}),
		retriever.New(provider, idx, logger),
		answer.NewPlaceholder(),
		logger,
	)
	return orch, func() { idx.Close() }, nil
}

// watch scans dir on an interval and processes new files once. Files that
// fail stay unmarked so the next scan retries them.
func watch(ctx context.Context, dir string, interval time.Duration, stateFile string, process func(context.Context, string) bool, logger *slog.Logger) {
	processed := loadState(stateFile)
	logger.Info("watching for documents", "dir", dir, "interval", interval)

	scan := func() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Error("readdir failed", "dir", dir, "err", err)
			return
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			key := fmt.Sprintf("%s:%d", e.Name(), info.Size())
			if processed[key] {
				continue
			}

			path := filepath.Join(dir, e.Name())
			if process(ctx, path) {
				processed[key] = true
				saveState(stateFile, processed)
			} else {
				logger.Warn("file failed, will retry on next scan", "file", e.Name())
			}
		}
	}

	scan()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

func loadState(path string) map[string]bool {
	state := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	_ = json.Unmarshal(data, &state)
	return state
}

func saveState(path string, state map[string]bool) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}
