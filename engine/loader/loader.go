// Package loader turns source files into Documents, one per page or file.
// Loaders never mutate the filesystem; a missing path is reported as
// domain.ErrNotFound so callers can distinguish it from extraction errors.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docstack-ai/docstack/engine/domain"
)

// Loader extracts an ordered sequence of Documents from a source file.
type Loader interface {
	Load(ctx context.Context, path string) ([]domain.Document, error)
}

// File dispatches on the file extension: PDFs are extracted page by page,
// everything else is read as plain text.
type File struct {
	pdf  *PDF
	text *Text
}

// NewFile creates the extension-dispatching loader.
func NewFile() *File {
	return &File{pdf: NewPDF(), text: NewText()}
}

// Load loads a file into Documents.
func (f *File) Load(ctx context.Context, path string) ([]domain.Document, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loader: %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("loader: stat %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return f.pdf.Load(ctx, path)
	default:
		return f.text.Load(ctx, path)
	}
}
