package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionFailure marks a document whose text could not be read.
	// It is recorded against the document and never aborts an ingestion job.
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrUnsupportedType indicates a MIME type no extractor handles.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrEmbeddingUnavailable indicates the embedding service kept failing
	// transiently until the retry ceiling was reached.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingContractViolation indicates the embedding service returned
	// vectors of the wrong count or dimension. Never retried.
	ErrEmbeddingContractViolation = errors.New("embedding contract violation")

	// ErrIngestionInProgress rejects an ingestion request while another job
	// for the same project is still running.
	ErrIngestionInProgress = errors.New("ingestion in progress")

	// ErrGenerationRejected indicates a non-retryable model-side rejection.
	ErrGenerationRejected = errors.New("generation rejected")

	// ErrModelUnavailable indicates the model service kept failing transiently.
	ErrModelUnavailable = errors.New("model service unavailable")

	// ErrIndexUnavailable indicates a storage-layer fault in the vector index.
	ErrIndexUnavailable = errors.New("index unavailable")

	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// GenerationRejectedError names the section or query a model call was
// rejected for. It matches ErrGenerationRejected with errors.Is.
type GenerationRejectedError struct {
	Section string
	Query   string
	Err     error
}

func (e *GenerationRejectedError) Error() string {
	target := e.Query
	if e.Section != "" {
		target = "section " + e.Section
	}
	return fmt.Sprintf("generation rejected for %s: %v", target, e.Err)
}

func (e *GenerationRejectedError) Unwrap() []error {
	return []error{ErrGenerationRejected, e.Err}
}
