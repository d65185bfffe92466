package port

import (
	"context"

	"rfprag/internal/domain"
)

// DocumentSource is the persistence collaborator owning project and
// document records.
type DocumentSource interface {
	Project(ctx context.Context, projectID int64) (domain.Project, error)

	DocumentsForProject(ctx context.Context, projectID int64) ([]domain.SourceDocument, error)
}

// TextExtractor turns a raw document blob into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, blob []byte, mimeType string) (string, error)
}

// DraftWriter renders generated sections and persists the result,
// returning the storage path.
type DraftWriter interface {
	Write(ctx context.Context, project domain.Project, sections []domain.GeneratedSection) (string, error)
}
