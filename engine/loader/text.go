package loader

import (
	"context"
	"fmt"
	"os"

	"github.com/docstack-ai/docstack/engine/domain"
)

// Text loads a plain-text file as a single Document.
type Text struct{}

// NewText creates a plain-text loader.
func NewText() *Text { return &Text{} }

// Load reads the whole file. Files that are empty after trimming produce
// no documents rather than an empty-content Document.
func (t *Text) Load(_ context.Context, path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loader: %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}

	content := string(data)
	if isBlank(content) {
		return nil, nil
	}
	return []domain.Document{{
		Content:  content,
		Metadata: domain.Metadata{domain.MetaSource: path},
	}}, nil
}
