package usecase

import (
	"rfprag/internal/domain"
	"rfprag/internal/port"
)

// PackContext greedily accepts candidates in the given score order while
// the running total stays within budget. A candidate that does not fit is
// skipped, never truncated, and later smaller candidates may still fit.
func PackContext(projectID int64, query string, candidates []domain.ScoredChunk, budget int, tokenizer port.Tokenizer) domain.RetrievedContext {
	packed := domain.RetrievedContext{
		ProjectID:    projectID,
		Query:        query,
		BudgetTokens: budget,
		Chunks:       []domain.ScoredChunk{},
	}

	for _, c := range candidates {
		tokens := chunkTokens(c.Chunk, tokenizer)
		if packed.UsedTokens+tokens > budget {
			continue
		}
		packed.Chunks = append(packed.Chunks, c)
		packed.UsedTokens += tokens
	}

	return packed
}

func chunkTokens(c domain.Chunk, tokenizer port.Tokenizer) int {
	if c.TokenCount > 0 || tokenizer == nil {
		return c.TokenCount
	}
	return tokenizer.CountTokens(c.Text)
}
