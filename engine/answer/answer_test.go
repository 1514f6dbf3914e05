package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docstack-ai/docstack/engine/domain"
)

func result(content, source string, score float32) domain.RetrievedResult {
	return domain.RetrievedResult{
		Content:         content,
		Metadata:        domain.Metadata{domain.MetaSource: source},
		SimilarityScore: score,
	}
}

func TestPlaceholder_WithResults(t *testing.T) {
	got, err := NewPlaceholder().Generate(context.Background(), "q", []domain.RetrievedResult{
		result("a", "a.txt", 0.9),
		result("b", "b.txt", 0.8),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "I found 2 relevant documents") {
		t.Errorf("answer = %q", got)
	}
}

func TestPlaceholder_NoResults(t *testing.T) {
	got, err := NewPlaceholder().Generate(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "No relevant documents found") {
		t.Errorf("answer = %q", got)
	}
}

type mockChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (m *mockChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.req = req
	return m.resp, m.err
}

func TestOpenAI_Generate(t *testing.T) {
	chat := &mockChat{resp: openai.ChatCompletionResponse{
		Model: "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "grounded answer"}},
		},
	}}
	gen := newOpenAIWithChat(chat, DefaultOptions(), nil)

	got, err := gen.Generate(context.Background(), "what is X?", []domain.RetrievedResult{
		result("X is a thing.", "x.pdf", 0.91),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "grounded answer" {
		t.Errorf("answer = %q", got)
	}

	if len(chat.req.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(chat.req.Messages))
	}
	user := chat.req.Messages[1].Content
	if !strings.Contains(user, "X is a thing.") {
		t.Error("user prompt missing retrieved content")
	}
	if !strings.Contains(user, "x.pdf") {
		t.Error("user prompt missing source citation")
	}
	if !strings.Contains(user, "Question: what is X?") {
		t.Error("user prompt missing question")
	}
}

func TestOpenAI_NoContextShortCircuits(t *testing.T) {
	chat := &mockChat{err: errors.New("must not be called")}
	gen := newOpenAIWithChat(chat, DefaultOptions(), nil)

	got, err := gen.Generate(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "No relevant documents found") {
		t.Errorf("answer = %q", got)
	}
}

func TestOpenAI_ChatError(t *testing.T) {
	sentinel := errors.New("rate limited")
	gen := newOpenAIWithChat(&mockChat{err: sentinel}, DefaultOptions(), nil)

	_, err := gen.Generate(context.Background(), "q", []domain.RetrievedResult{result("c", "s", 1)})
	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want wrapped sentinel", err)
	}
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	gen := newOpenAIWithChat(&mockChat{}, DefaultOptions(), nil)
	if _, err := gen.Generate(context.Background(), "q", []domain.RetrievedResult{result("c", "s", 1)}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
