// Package extract turns document blobs into plain text by MIME type.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"rfprag/internal/domain"
	"rfprag/internal/port"
)

// Func extracts text from one kind of document.
type Func func(blob []byte) (string, error)

// Registry dispatches extraction on the MIME type.
type Registry struct {
	byType map[string]Func
}

var _ port.TextExtractor = (*Registry)(nil)

// NewRegistry returns a registry with the built-in extractors.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Func)}
	for _, t := range []string{"text/plain", "text/markdown", "text/csv", "application/json"} {
		r.Register(t, PlainText)
	}
	r.Register("text/html", HTML)
	r.Register("application/xhtml+xml", HTML)
	r.Register(DOCXType, DOCX)
	r.Register(PDFType, PDF)
	return r
}

func (r *Registry) Register(mimeType string, fn Func) {
	r.byType[strings.ToLower(mimeType)] = fn
}

// Supports reports whether a MIME type has an extractor.
func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.byType[normalizeType(mimeType)]
	return ok
}

func (r *Registry) Extract(ctx context.Context, blob []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fn, ok := r.byType[normalizeType(mimeType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, mimeType)
	}
	text, err := fn(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailure, mimeType, err)
	}
	return text, nil
}

func normalizeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// PlainText validates UTF-8 and normalises line endings.
func PlainText(blob []byte) (string, error) {
	blob = bytes.TrimPrefix(blob, bom)
	if !utf8.Valid(blob) {
		return "", fmt.Errorf("not valid UTF-8")
	}
	text := strings.ReplaceAll(string(blob), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
