package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/docstack-ai/docstack/engine/domain"
	"github.com/ledongthuc/pdf"
)

// PDF extracts text from PDF files, emitting one Document per non-empty
// page with source/page/total_pages metadata. Pages are 1-based.
type PDF struct{}

// NewPDF creates a PDF loader.
func NewPDF() *PDF { return &PDF{} }

// Load extracts every page's plain text. Pages whose extraction fails or
// yields only whitespace are skipped, not fatal: scanned pages without a
// text layer are common and should not block the rest of the file.
func (p *PDF) Load(_ context.Context, path string) ([]domain.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("loader: %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("loader: open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	var docs []domain.Document
	for pageNum := 1; pageNum <= total; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || isBlank(text) {
			continue
		}
		docs = append(docs, domain.Document{
			Content: text,
			Metadata: domain.Metadata{
				domain.MetaSource:     path,
				domain.MetaPage:       pageNum,
				domain.MetaTotalPages: total,
			},
		})
	}
	return docs, nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
