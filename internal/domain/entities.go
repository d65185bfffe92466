package domain

import "time"

type Project struct {
	ID          int64
	Name        string
	Description string
	DueDate     time.Time
}

// SourceDocument is a raw project file as handed over by the document source.
// ReadErr is set instead of Blob when the file is listed but cannot be read;
// ingestion records it against the document and moves on.
type SourceDocument struct {
	ID       string
	Name     string
	MIMEType string
	Blob     []byte
	ModTime  time.Time
	ReadErr  error
}

// Chunk is immutable once created. Re-ingestion replaces a document's chunks
// wholesale instead of mutating them.
type Chunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	ProjectID   int64  `json:"project_id"`
	Sequence    int    `json:"sequence"`
	Text        string `json:"text"`
	TokenCount  int    `json:"token_count"`
	OffsetStart int    `json:"offset_start"`
	OffsetEnd   int    `json:"offset_end"`
}

type EmbeddedChunk struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"vector"`
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

type RetrievedContext struct {
	ProjectID    int64         `json:"project_id"`
	Query        string        `json:"query"`
	BudgetTokens int           `json:"budget_tokens"`
	UsedTokens   int           `json:"used_tokens"`
	Chunks       []ScoredChunk `json:"chunks"`
}

// Empty reports whether retrieval found nothing to ground an answer on.
func (c RetrievedContext) Empty() bool {
	return len(c.Chunks) == 0
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Answer struct {
	Question string `json:"query"`
	Answer   string `json:"answer"`
	Grounded bool   `json:"grounded"`
}

// SectionDefinition is one entry of the draft outline.
type SectionDefinition struct {
	Name         string `yaml:"name" json:"name"`
	Query        string `yaml:"query" json:"query"`
	Instructions string `yaml:"instructions" json:"instructions"`
}

type GeneratedSection struct {
	Name    string           `json:"section_name"`
	Prompt  string           `json:"prompt_used"`
	Context RetrievedContext `json:"retrieved_context"`
	Text    string           `json:"generated_text"`
}

type DocumentFailure struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

type IngestResult struct {
	ChunksInserted     int               `json:"chunks_inserted"`
	DocumentsProcessed int               `json:"documents_processed"`
	DocumentsFailed    int               `json:"documents_failed"`
	DocumentsRemoved   int               `json:"documents_removed,omitempty"`
	Failures           []DocumentFailure `json:"failures,omitempty"`
}

type IndexStats struct {
	ProjectID int64 `json:"project_id"`
	Documents int   `json:"documents"`
	Chunks    int   `json:"chunks"`
}
