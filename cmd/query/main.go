// Command query is an interactive console for asking questions against
// the indexed corpus. Each line read from stdin is answered with the
// retrieved sources and timings.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/docstack-ai/docstack/engine/answer"
	"github.com/docstack-ai/docstack/engine/chunker"
	"github.com/docstack-ai/docstack/engine/domain"
	"github.com/docstack-ai/docstack/engine/embed"
	"github.com/docstack-ai/docstack/engine/index"
	"github.com/docstack-ai/docstack/engine/loader"
	"github.com/docstack-ai/docstack/engine/pipeline"
	"github.com/docstack-ai/docstack/engine/retriever"
	"github.com/docstack-ai/docstack/pkg/openaiclient"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	var (
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "docstack"), "Qdrant collection name")
		dims       = flag.Int("dims", embed.DefaultDimension, "embedding dimension")
		topK       = flag.Int("top-k", pipeline.DefaultTopK, "chunks to retrieve per question")
		verbose    = flag.Bool("v", false, "print retrieved sources with scores")
	)
	_ = godotenv.Load()
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx := context.Background()

	idx, err := index.NewQdrant(*qdrantAddr, *collection, *dims)
	if err != nil {
		fmt.Fprintln(os.Stderr, "qdrant connect failed:", err)
		os.Exit(1)
	}
	defer idx.Close()

	apiKey := os.Getenv("OPENAI_API_KEY")

	var provider embed.Provider = embed.NewDeterministic(*dims)
	var gen answer.Generator = answer.NewPlaceholder()
	if apiKey != "" {
		ecfg := openaiclient.DefaultConfig()
		ecfg.Dimension = *dims
		provider, err = embed.NewResilient(openaiclient.NewEmbedder(apiKey, ecfg, logger), embed.NewDeterministic(*dims), logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "embedding provider:", err)
			os.Exit(1)
		}
		gen = answer.NewOpenAI(openai.NewClient(apiKey), answer.DefaultOptions(), logger)
	}

	orch := pipeline.New(
		loader.NewFile(),
		chunker.New(chunker.Config{}),
		retriever.New(provider, idx, logger),
		gen,
		logger,
	)

	st := orch.SystemStatus(ctx)
	fmt.Printf("connected to %s/%s (%d documents indexed)\n", *qdrantAddr, *collection, st.VectorStore.DocumentCount)
	fmt.Println(`type a question, or "exit" to quit`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		resp := orch.Query(ctx, question, *topK)
		if resp.Error != "" {
			fmt.Println("error:", resp.Error)
			continue
		}

		fmt.Println()
		fmt.Println(resp.Answer)
		if *verbose {
			for i, doc := range resp.RelevantDocuments {
				source, _ := doc.Metadata[domain.MetaSource].(string)
				fmt.Printf("  [%d] %.3f %s\n", i+1, doc.SimilarityScore, source)
			}
		}
		fmt.Printf("(%d documents, %.3fs retrieval, %.3fs total)\n\n",
			resp.DocumentCount,
			resp.Performance.RetrievalTimeSeconds,
			resp.Performance.TotalTimeSeconds)
	}
}
