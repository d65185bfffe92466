// Package writer renders drafted RFP responses to date-keyed markdown files.
package writer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"rfprag/internal/domain"
	"rfprag/internal/port"
)

// MarkdownWriter stores drafts under <dir>/rfp_responses/YYYY/MM/DD/.
type MarkdownWriter struct {
	dir string
	now func() time.Time
}

var _ port.DraftWriter = (*MarkdownWriter)(nil)

func NewMarkdownWriter(dir string) *MarkdownWriter {
	return &MarkdownWriter{dir: dir, now: time.Now}
}

// PathFor returns where a draft generated at t is stored.
func (w *MarkdownWriter) PathFor(projectID int64, t time.Time) string {
	return filepath.Join(w.dir, "rfp_responses", t.Format("2006"), t.Format("01"), t.Format("02"),
		fmt.Sprintf("project-%d-%s.md", projectID, t.Format("150405")))
}

func (w *MarkdownWriter) Write(ctx context.Context, project domain.Project, sections []domain.GeneratedSection) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := w.now()
	path := w.PathFor(project.ID, now)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create draft directory: %w", err)
	}
	f, path, err := createUnique(path)
	if err != nil {
		return "", fmt.Errorf("failed to create draft: %w", err)
	}
	if _, err := f.WriteString(Render(project, sections, now)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write draft: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write draft: %w", err)
	}
	return path, nil
}

// createUnique creates path exclusively, appending -2, -3, ... to the base
// name while a draft of the same second already exists.
func createUnique(path string) (*os.File, string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 2; ; n++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
		candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
}

// Render formats a draft as markdown. Each section lists the documents its
// context was drawn from.
func Render(project domain.Project, sections []domain.GeneratedSection, generated time.Time) string {
	var b strings.Builder

	title := project.Name
	if title == "" {
		title = fmt.Sprintf("Project %d", project.ID)
	}
	fmt.Fprintf(&b, "# RFP Response: %s\n\n", title)
	if project.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", project.Description)
	}
	if !project.DueDate.IsZero() {
		fmt.Fprintf(&b, "- Due date: %s\n", project.DueDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "- Generated: %s\n", generated.Format(time.RFC3339))

	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s.Name, strings.TrimSpace(s.Text))
		if docs := sourceDocuments(s.Context); len(docs) > 0 {
			fmt.Fprintf(&b, "\n_Sources: %s_\n", strings.Join(docs, ", "))
		}
	}

	return b.String()
}

func sourceDocuments(rc domain.RetrievedContext) []string {
	var docs []string
	for _, c := range rc.Chunks {
		if !slices.Contains(docs, c.Chunk.DocumentID) {
			docs = append(docs, c.Chunk.DocumentID)
		}
	}
	slices.Sort(docs)
	return docs
}
