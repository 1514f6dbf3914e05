// Package answer turns retrieved chunks into a user-facing answer. The
// Placeholder generator works with no credentials at all; the OpenAI
// generator produces grounded completions when a key is configured.
package answer

import (
	"context"
	"fmt"

	"github.com/docstack-ai/docstack/engine/domain"
)

// Generator produces an answer for a question given the retrieved context.
type Generator interface {
	Generate(ctx context.Context, question string, results []domain.RetrievedResult) (string, error)
}

// Placeholder answers without an LLM. It reports how many chunks matched
// so the rest of the pipeline stays exercisable offline.
type Placeholder struct{}

// NewPlaceholder creates a Placeholder generator.
func NewPlaceholder() *Placeholder { return &Placeholder{} }

// Generate never fails.
func (p *Placeholder) Generate(_ context.Context, _ string, results []domain.RetrievedResult) (string, error) {
	if len(results) == 0 {
		return "No relevant documents found. The system is working but no documents have been added yet.", nil
	}
	return fmt.Sprintf("I found %d relevant documents. To get AI-generated answers, please configure an OpenAI API key.", len(results)), nil
}
