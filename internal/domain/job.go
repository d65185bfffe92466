package domain

import "time"

type JobState string

const (
	JobPending   JobState = "pending"
	JobChunking  JobState = "chunking"
	JobEmbedding JobState = "embedding"
	JobIndexing  JobState = "indexing"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether the ingestion state machine allows moving
// from s to next. The per-document loop cycles chunking -> embedding ->
// indexing and back to chunking for the following document. Indexing is
// also entered directly to drop documents that left the source.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case JobPending:
		return next == JobChunking || next == JobIndexing || next == JobCompleted || next == JobFailed
	case JobChunking:
		return next == JobEmbedding || next == JobChunking || next == JobIndexing || next == JobCompleted || next == JobFailed
	case JobEmbedding:
		return next == JobIndexing || next == JobFailed
	case JobIndexing:
		return next == JobChunking || next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

type IngestionJob struct {
	ID                 string            `json:"id"`
	ProjectID          int64             `json:"project_id"`
	State              JobState          `json:"state"`
	DocumentsTotal     int               `json:"documents_total"`
	DocumentsProcessed int               `json:"documents_processed"`
	DocumentsFailed    int               `json:"documents_failed"`
	DocumentsRemoved   int               `json:"documents_removed"`
	ChunksInserted     int               `json:"chunks_inserted"`
	Failures           []DocumentFailure `json:"failures,omitempty"`
	Error              string            `json:"error,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	FinishedAt         time.Time         `json:"finished_at,omitempty"`
}

// Result summarises the job for the caller of an ingestion request.
func (j *IngestionJob) Result() IngestResult {
	return IngestResult{
		ChunksInserted:     j.ChunksInserted,
		DocumentsProcessed: j.DocumentsProcessed,
		DocumentsFailed:    j.DocumentsFailed,
		DocumentsRemoved:   j.DocumentsRemoved,
		Failures:           append([]DocumentFailure(nil), j.Failures...),
	}
}
