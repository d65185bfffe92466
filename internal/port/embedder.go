package port

import (
	"context"

	"rfprag/internal/domain"
)

// EmbeddingService is a single round trip to an external embedding model.
// Batching, retries and contract validation live above it.
type EmbeddingService interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector size the deployment is configured for.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// Embedder converts texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorIndex stores embedded chunks in per-project namespaces.
type VectorIndex interface {
	// Upsert publishes the chunks atomically with respect to readers.
	Upsert(ctx context.Context, projectID int64, chunks []domain.EmbeddedChunk) error

	// DeleteByDocument removes every chunk derived from the document and
	// returns how many were removed.
	DeleteByDocument(ctx context.Context, projectID int64, documentID string) (int, error)

	// ReplaceDocument swaps a document's chunks for new ones in a single
	// publish, so readers see either the old set or the new set.
	ReplaceDocument(ctx context.Context, projectID int64, documentID string, chunks []domain.EmbeddedChunk) error

	// Search returns up to k chunks of the project by descending cosine
	// similarity, ties broken by ascending chunk ID.
	Search(ctx context.Context, projectID int64, query []float32, k int) ([]domain.ScoredChunk, error)

	// Documents lists the document IDs currently indexed for the project.
	Documents(projectID int64) []string

	Stats(projectID int64) domain.IndexStats
}
