package port

import (
	"iter"

	"rfprag/internal/domain"
)

// DocumentRef identifies the document a chunk sequence is derived from.
type DocumentRef struct {
	ProjectID  int64
	DocumentID string
}

type Chunker interface {
	// Chunks lazily splits text into token-bounded chunks. Ranging over the
	// returned sequence again restarts it and yields the same chunks.
	Chunks(doc DocumentRef, text string) iter.Seq[domain.Chunk]
}
