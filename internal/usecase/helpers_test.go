package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"rfprag/internal/adapter/analyzer"
	"rfprag/internal/adapter/embedding"
	"rfprag/internal/adapter/vectorindex"
	"rfprag/internal/domain"
	"rfprag/internal/port"
	"rfprag/internal/retry"
)

const testDim = 32

var fastRetry = retry.Policy{MaxAttempts: 3}

// lineChunker turns every non-empty line into one chunk.
type lineChunker struct{}

func (lineChunker) Chunks(doc port.DocumentRef, text string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		seq := 0
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			c := domain.Chunk{
				ID:         fmt.Sprintf("%d-%s-%03d", doc.ProjectID, doc.DocumentID, seq),
				DocumentID: doc.DocumentID,
				ProjectID:  doc.ProjectID,
				Sequence:   seq,
				Text:       line,
				TokenCount: len(strings.Fields(line)),
			}
			seq++
			if !yield(c) {
				return
			}
		}
	}
}

type memSource struct {
	mu       sync.Mutex
	projects map[int64][]domain.SourceDocument
}

func newMemSource() *memSource {
	return &memSource{projects: make(map[int64][]domain.SourceDocument)}
}

func (s *memSource) set(projectID int64, docs ...domain.SourceDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[projectID] = docs
}

func (s *memSource) Project(_ context.Context, projectID int64) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	return domain.Project{ID: projectID, Name: fmt.Sprintf("Project %d", projectID)}, nil
}

func (s *memSource) DocumentsForProject(_ context.Context, projectID int64) ([]domain.SourceDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SourceDocument(nil), s.projects[projectID]...), nil
}

type plainExtractor struct{}

func (plainExtractor) Extract(_ context.Context, blob []byte, mimeType string) (string, error) {
	if !strings.HasPrefix(mimeType, "text/") {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, mimeType)
	}
	return string(blob), nil
}

func textDoc(id string, lines ...string) domain.SourceDocument {
	return domain.SourceDocument{ID: id, Name: id + ".txt", MIMEType: "text/plain", Blob: []byte(strings.Join(lines, "\n"))}
}

func numberedLines(prefix string, n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("%s requirement number %d", prefix, i)
	}
	return lines
}

// countingService embeds with the hash embedder and can inject failures.
type countingService struct {
	inner *embedding.HashEmbedder
	calls atomic.Int32

	// fail, if set, is consulted before every call with its 1-based number.
	fail func(call int, texts []string) error
	// mangle, if set, rewrites the response.
	mangle func(vecs [][]float32) [][]float32
	// gate, if set, blocks every call until closed; entered is signalled first.
	gate    chan struct{}
	entered chan struct{}
}

func newCountingService() *countingService {
	return &countingService{inner: embedding.NewHashEmbedder(testDim, analyzer.NewTokenizer())}
}

func (s *countingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	call := int(s.calls.Add(1))
	if s.gate != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail != nil {
		if err := s.fail(call, texts); err != nil {
			return nil, err
		}
	}
	vecs, err := s.inner.EmbedBatch(ctx, texts)
	if err == nil && s.mangle != nil {
		vecs = s.mangle(vecs)
	}
	return vecs, err
}

func (s *countingService) Dimension() int   { return testDim }
func (s *countingService) ModelName() string { return "test" }

func transient(op string) error {
	return &port.TransientError{Op: op, StatusCode: 429, Err: errors.New("rate limited")}
}

type memJobLog struct {
	mu   sync.Mutex
	jobs []domain.IngestionJob
}

func (l *memJobLog) PutJob(job *domain.IngestionJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = append(l.jobs, *job)
	return nil
}

func (l *memJobLog) Jobs(projectID int64, limit int) ([]domain.IngestionJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.IngestionJob
	for i := len(l.jobs) - 1; i >= 0; i-- {
		if l.jobs[i].ProjectID == projectID {
			out = append(out, l.jobs[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type pipeline struct {
	source  *memSource
	service *countingService
	index   *vectorindex.Index
	jobs    *memJobLog
	ingest  *IngestUseCase
	embed   *BatchEmbedder
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	p := &pipeline{
		source:  newMemSource(),
		service: newCountingService(),
		index:   vectorindex.New(testDim, nil),
		jobs:    &memJobLog{},
	}
	p.embed = NewBatchEmbedder(p.service, 16, fastRetry, nil, nil)
	p.ingest = NewIngestUseCase(p.source, plainExtractor{}, lineChunker{}, p.embed, p.index, p.jobs, nil, nil)
	return p
}

func (p *pipeline) retriever() *RetrieveUseCase {
	return NewRetrieveUseCase(p.embed, p.index, analyzer.NewTokenizer(), RetrieveOptions{}, nil, nil)
}
