// Package main implements the docstack API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
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
	"github.com/docstack-ai/docstack/pkg/metrics"
	"github.com/docstack-ai/docstack/pkg/mid"
	"github.com/docstack-ai/docstack/pkg/openaiclient"
	openai "github.com/sashabaranov/go-openai"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	QdrantURL    string
	Collection   string
	Dimension    int
	ChunkSize    int
	ChunkOverlap int
	OpenAIKey    string
	NATSURL      string
	CORSOrigin   string
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "docstack"),
		Dimension:    envIntOr("EMBED_DIMENSION", embed.DefaultDimension),
		ChunkSize:    envIntOr("CHUNK_SIZE", chunker.DefaultChunkSize),
		ChunkOverlap: envIntOr("CHUNK_OVERLAP", chunker.DefaultOverlap),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		NATSURL:      os.Getenv("NATS_URL"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

// buildProvider picks the embedding provider: OpenAI wrapped with a
// deterministic fallback when a key is configured, deterministic alone
// otherwise.
func buildProvider(cfg Config, logger *slog.Logger) (embed.Provider, error) {
	fallback := embed.NewDeterministic(cfg.Dimension)
	if cfg.OpenAIKey == "" {
		logger.Info("no OpenAI key configured, using deterministic embeddings")
		return fallback, nil
	}
	ecfg := openaiclient.DefaultConfig()
	ecfg.Dimension = cfg.Dimension
	remote := openaiclient.NewEmbedder(cfg.OpenAIKey, ecfg, logger)
	return embed.NewResilient(remote, fallback, logger)
}

// buildGenerator picks the answer generator by the same key.
func buildGenerator(cfg Config, logger *slog.Logger) answer.Generator {
	if cfg.OpenAIKey == "" {
		return answer.NewPlaceholder()
	}
	return answer.NewOpenAI(openai.NewClient(cfg.OpenAIKey), answer.DefaultOptions(), logger)
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	idx, err := index.NewQdrant(cfg.QdrantURL, cfg.Collection, cfg.Dimension)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer idx.Close()
	if err := idx.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("qdrant collection: %w", err)
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	orch := pipeline.New(
		loader.NewFile(),
		chunker.New(chunker.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}),
		retriever.New(provider, idx, logger),
		buildGenerator(cfg, logger),
		logger,
	)

	// --- Queue consumer (optional) ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		sub, err := pipeline.NewConsumer(nc, orch, logger).Start(nc)
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer sub.Unsubscribe()
		logger.Info("queue consumer started", "subject", pipeline.IngestSubject)
	}

	// --- Build HTTP server ---
	reg := metrics.New()
	handler := mid.Chain(newMux(orch, reg, logger),
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("docstack-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
