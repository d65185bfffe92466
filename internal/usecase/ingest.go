package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"rfprag/internal/domain"
	"rfprag/internal/logger"
	"rfprag/internal/metrics"
	"rfprag/internal/port"
)

// JobLog archives finished ingestion jobs.
type JobLog interface {
	PutJob(job *domain.IngestionJob) error
	Jobs(projectID int64, limit int) ([]domain.IngestionJob, error)
}

// ProgressFunc observes a copy of the job after every state change and
// every finished document.
type ProgressFunc func(job domain.IngestionJob)

// IngestUseCase turns a project's documents into indexed chunks. At most one
// job runs per project; other projects ingest independently.
type IngestUseCase struct {
	source    port.DocumentSource
	extractor port.TextExtractor
	chunker   port.Chunker
	embedder  port.Embedder
	index     port.VectorIndex
	jobs      JobLog
	log       *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu     sync.Mutex
	active map[int64]*domain.IngestionJob
	last   map[int64]domain.IngestionJob
}

// NewIngestUseCase creates a new ingest use case. jobs may be nil.
func NewIngestUseCase(
	source port.DocumentSource,
	extractor port.TextExtractor,
	chunker port.Chunker,
	embedder port.Embedder,
	index port.VectorIndex,
	jobs JobLog,
	log *logger.Logger,
	m *metrics.Metrics,
) *IngestUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestUseCase{
		source:    source,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		jobs:      jobs,
		log:       log.Component("ingest"),
		metrics:   m,
		now:       time.Now,
		active:    make(map[int64]*domain.IngestionJob),
		last:      make(map[int64]domain.IngestionJob),
	}
}

// Ingest indexes every document of the project, replacing chunks of
// documents indexed before and dropping documents that left the source.
// Documents that cannot be extracted are recorded and skipped; embedding
// and index failures abort the job. A second call for a project whose job
// is still running fails with domain.ErrIngestionInProgress.
func (u *IngestUseCase) Ingest(ctx context.Context, projectID int64, progress ProgressFunc) (domain.IngestResult, error) {
	job, err := u.acquire(projectID)
	if err != nil {
		return domain.IngestResult{}, err
	}
	log := u.log.Project(projectID)
	log.Info().Str("job_id", job.ID).Msg("ingestion started")
	u.metrics.JobStarted()

	err = u.run(ctx, job, progress, log)
	if err != nil {
		u.update(job, progress, func(j *domain.IngestionJob) {
			j.State = domain.JobFailed
			j.Error = err.Error()
		})
		log.Error().Err(err).Str("job_id", job.ID).Msg("ingestion failed")
	} else {
		u.update(job, progress, func(j *domain.IngestionJob) {
			u.transition(j, domain.JobCompleted)
		})
	}

	final := u.release(job)
	u.metrics.JobFinished(string(final.State), final.FinishedAt.Sub(final.StartedAt),
		final.DocumentsProcessed, final.DocumentsRemoved, final.ChunksInserted)
	u.metrics.SetIndexChunks(projectID, u.index.Stats(projectID).Chunks)

	if err != nil {
		return final.Result(), fmt.Errorf("ingest project %d: %w", projectID, err)
	}

	log.Info().
		Str("job_id", job.ID).
		Int("documents_processed", final.DocumentsProcessed).
		Int("documents_failed", final.DocumentsFailed).
		Int("documents_removed", final.DocumentsRemoved).
		Int("chunks_inserted", final.ChunksInserted).
		Dur("duration_ms", final.FinishedAt.Sub(final.StartedAt)).
		Msg("ingestion completed")
	return final.Result(), nil
}

func (u *IngestUseCase) run(ctx context.Context, job *domain.IngestionJob, progress ProgressFunc, log *logger.Logger) error {
	docs, err := u.source.DocumentsForProject(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	u.update(job, progress, func(j *domain.IngestionJob) {
		j.DocumentsTotal = len(docs)
	})

	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen[doc.ID] = true
		if err := u.ingestDocument(ctx, job, doc, progress, log); err != nil {
			return err
		}
	}

	for _, docID := range u.index.Documents(job.ProjectID) {
		if seen[docID] {
			continue
		}
		u.update(job, progress, func(j *domain.IngestionJob) {
			u.transition(j, domain.JobIndexing)
		})
		if _, err := u.index.DeleteByDocument(ctx, job.ProjectID, docID); err != nil {
			return fmt.Errorf("failed to remove document %s: %w", docID, err)
		}
		log.Debug().Str("document_id", docID).Msg("removed vanished document")
		u.update(job, progress, func(j *domain.IngestionJob) {
			j.DocumentsRemoved++
		})
	}

	return nil
}

func (u *IngestUseCase) ingestDocument(ctx context.Context, job *domain.IngestionJob, doc domain.SourceDocument, progress ProgressFunc, log *logger.Logger) error {
	u.update(job, progress, func(j *domain.IngestionJob) {
		u.transition(j, domain.JobChunking)
	})

	if doc.ReadErr != nil {
		u.recordFailure(job, doc, fmt.Errorf("read %s: %w", doc.Name, doc.ReadErr), progress, log)
		return nil
	}

	text, err := u.extractor.Extract(ctx, doc.Blob, doc.MIMEType)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		u.recordFailure(job, doc, err, progress, log)
		return nil
	}

	ref := port.DocumentRef{ProjectID: job.ProjectID, DocumentID: doc.ID}
	chunks := slices.Collect(u.chunker.Chunks(ref, text))

	embedded := make([]domain.EmbeddedChunk, len(chunks))
	if len(chunks) > 0 {
		u.update(job, progress, func(j *domain.IngestionJob) {
			u.transition(j, domain.JobEmbedding)
		})

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vecs, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
		for i, c := range chunks {
			embedded[i] = domain.EmbeddedChunk{Chunk: c, Vector: vecs[i]}
		}
	}

	u.update(job, progress, func(j *domain.IngestionJob) {
		u.transition(j, domain.JobIndexing)
	})
	if err := u.index.ReplaceDocument(ctx, job.ProjectID, doc.ID, embedded); err != nil {
		return fmt.Errorf("document %s: %w", doc.ID, err)
	}

	log.Debug().Str("document_id", doc.ID).Int("chunks", len(chunks)).Msg("document indexed")
	u.update(job, progress, func(j *domain.IngestionJob) {
		j.DocumentsProcessed++
		j.ChunksInserted += len(chunks)
	})
	return nil
}

func (u *IngestUseCase) recordFailure(job *domain.IngestionJob, doc domain.SourceDocument, err error, progress ProgressFunc, log *logger.Logger) {
	reason := "extraction"
	switch {
	case errors.Is(err, domain.ErrUnsupportedType):
		reason = "unsupported_type"
	case doc.ReadErr != nil:
		reason = "unreadable"
	}
	if !errors.Is(err, domain.ErrExtractionFailure) {
		err = fmt.Errorf("%w: %w", domain.ErrExtractionFailure, err)
	}

	u.metrics.DocumentFailed(reason)
	log.Warn().Err(err).Str("document_id", doc.ID).Str("name", doc.Name).Msg("document skipped")
	u.update(job, progress, func(j *domain.IngestionJob) {
		j.DocumentsFailed++
		j.Failures = append(j.Failures, domain.DocumentFailure{
			DocumentID: doc.ID,
			Name:       doc.Name,
			Reason:     err.Error(),
		})
	})
}

// transition moves the job to next. Staying in the same state is a no-op;
// an illegal move is a programming error.
func (u *IngestUseCase) transition(j *domain.IngestionJob, next domain.JobState) {
	if j.State == next {
		return
	}
	if !j.State.CanTransition(next) {
		panic(fmt.Sprintf("ingest: illegal job transition %s -> %s", j.State, next))
	}
	j.State = next
	if next.Terminal() {
		j.FinishedAt = u.now()
	}
}

// update applies fn to the job under the table lock and reports the result.
func (u *IngestUseCase) update(job *domain.IngestionJob, progress ProgressFunc, fn func(j *domain.IngestionJob)) {
	u.mu.Lock()
	fn(job)
	if job.State == domain.JobFailed && job.FinishedAt.IsZero() {
		job.FinishedAt = u.now()
	}
	snapshot := copyJob(job)
	u.mu.Unlock()

	if progress != nil {
		progress(snapshot)
	}
}

func (u *IngestUseCase) acquire(projectID int64) (*domain.IngestionJob, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if running, ok := u.active[projectID]; ok {
		return nil, fmt.Errorf("%w: project %d (job %s, %s)",
			domain.ErrIngestionInProgress, projectID, running.ID, running.State)
	}

	job := &domain.IngestionJob{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		State:     domain.JobPending,
		StartedAt: u.now(),
	}
	u.active[projectID] = job
	return job, nil
}

func (u *IngestUseCase) release(job *domain.IngestionJob) domain.IngestionJob {
	u.mu.Lock()
	final := copyJob(job)
	delete(u.active, job.ProjectID)
	u.last[job.ProjectID] = final
	u.mu.Unlock()

	if u.jobs != nil {
		if err := u.jobs.PutJob(&final); err != nil {
			u.log.Warn().Err(err).Str("job_id", final.ID).Msg("failed to archive ingestion job")
		}
	}
	return final
}

// Job returns the running job of a project, or else its most recent
// finished job.
func (u *IngestUseCase) Job(projectID int64) (domain.IngestionJob, bool) {
	u.mu.Lock()
	if job, ok := u.active[projectID]; ok {
		defer u.mu.Unlock()
		return copyJob(job), true
	}
	if job, ok := u.last[projectID]; ok {
		u.mu.Unlock()
		return job, true
	}
	u.mu.Unlock()

	if u.jobs == nil {
		return domain.IngestionJob{}, false
	}
	jobs, err := u.jobs.Jobs(projectID, 1)
	if err != nil || len(jobs) == 0 {
		return domain.IngestionJob{}, false
	}
	return jobs[0], true
}

func copyJob(job *domain.IngestionJob) domain.IngestionJob {
	c := *job
	c.Failures = slices.Clone(job.Failures)
	return c
}
