package usecase

import (
	"context"
	"fmt"
	"strings"

	"rfprag/internal/domain"
	"rfprag/internal/logger"
	"rfprag/internal/metrics"
	"rfprag/internal/port"
)

const defaultCandidates = 20

// RetrieveUseCase turns a question into a token-bounded context from one
// project's index.
type RetrieveUseCase struct {
	embedder   port.Embedder
	index      port.VectorIndex
	tokenizer  port.Tokenizer
	candidates int
	minScore   float64 // 0 disables the filter
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// RetrieveOptions tunes candidate selection.
type RetrieveOptions struct {
	Candidates int
	MinScore   float64
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	embedder port.Embedder,
	index port.VectorIndex,
	tokenizer port.Tokenizer,
	opts RetrieveOptions,
	log *logger.Logger,
	m *metrics.Metrics,
) *RetrieveUseCase {
	if opts.Candidates <= 0 {
		opts.Candidates = defaultCandidates
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RetrieveUseCase{
		embedder:   embedder,
		index:      index,
		tokenizer:  tokenizer,
		candidates: opts.Candidates,
		minScore:   opts.MinScore,
		log:        log.Component("retrieve"),
		metrics:    m,
	}
}

// Retrieve embeds the query, searches the project's index and packs the best
// candidates into at most budget tokens. An empty index yields an empty
// context, not an error.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, projectID int64, query string, budget int) (domain.RetrievedContext, error) {
	if strings.TrimSpace(query) == "" {
		return domain.RetrievedContext{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if budget < 0 {
		return domain.RetrievedContext{}, fmt.Errorf("%w: negative token budget %d", domain.ErrInvalidInput, budget)
	}

	if u.index.Stats(projectID).Chunks == 0 {
		u.log.Debug().Int64("project_id", projectID).Msg("index empty, skipping search")
		return PackContext(projectID, query, nil, budget, u.tokenizer), nil
	}

	vecs, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return domain.RetrievedContext{}, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := u.index.Search(ctx, projectID, vecs[0], u.candidates)
	if err != nil {
		return domain.RetrievedContext{}, fmt.Errorf("failed to search index: %w", err)
	}

	if u.minScore > 0 {
		candidates = u.filterByThreshold(candidates)
	}

	packed := PackContext(projectID, query, candidates, budget, u.tokenizer)
	u.metrics.RecordRetrieval(packed.UsedTokens)
	u.log.Debug().
		Int64("project_id", projectID).
		Int("candidates", len(candidates)).
		Int("selected", len(packed.Chunks)).
		Int("used_tokens", packed.UsedTokens).
		Msg("context retrieved")

	return packed, nil
}

// filterByThreshold removes results below the minimum score threshold.
func (u *RetrieveUseCase) filterByThreshold(results []domain.ScoredChunk) []domain.ScoredChunk {
	filtered := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
