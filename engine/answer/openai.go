package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docstack-ai/docstack/engine/domain"
)

const defaultSystemPrompt = `You are a document assistant.
Answer the user's question using ONLY the provided context. If the context
does not contain enough information, say so. Cite sources using [source].`

// chatAPI is the slice of the OpenAI client the generator needs.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures the OpenAI generator.
type Options struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Model:        openai.GPT4oMini,
		Temperature:  0.3,
		MaxTokens:    1024,
		SystemPrompt: defaultSystemPrompt,
	}
}

// OpenAI generates grounded answers through a chat completion model.
type OpenAI struct {
	chat   chatAPI
	opts   Options
	logger *slog.Logger
}

// NewOpenAI creates a generator backed by the given client.
func NewOpenAI(client *openai.Client, opts Options, logger *slog.Logger) *OpenAI {
	return newOpenAIWithChat(client, opts, logger)
}

// newOpenAIWithChat is the test seam.
func newOpenAIWithChat(chat chatAPI, opts Options, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &OpenAI{chat: chat, opts: opts, logger: logger}
}

// Generate builds a prompt from the retrieved chunks and asks the model.
// With no context it short-circuits to the same wording as Placeholder so
// the model never answers from thin air.
func (o *OpenAI) Generate(ctx context.Context, question string, results []domain.RetrievedResult) (string, error) {
	if len(results) == 0 {
		return "No relevant documents found. The system is working but no documents have been added yet.", nil
	}

	resp, err := o.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.opts.Model,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.opts.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(question, results)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("answer: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("answer: chat completion returned no choices")
	}

	o.logger.Info("answer generated",
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
		"context_chunks", len(results))
	return resp.Choices[0].Message.Content, nil
}

// buildUserPrompt formats the retrieved chunks above the question.
func buildUserPrompt(question string, results []domain.RetrievedResult) string {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for _, r := range results {
		source, _ := r.Metadata[domain.MetaSource].(string)
		fmt.Fprintf(&b, "[%s] (score: %.3f)\n%s\n\n", source, r.SimilarityScore, r.Content)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
