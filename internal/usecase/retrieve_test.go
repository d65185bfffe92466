package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfprag/internal/adapter/analyzer"
	"rfprag/internal/domain"
)

func scored(id string, tokens int, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{ID: id, TokenCount: tokens, Text: id},
		Score: score,
	}
}

func TestPackContextSkipsWhatDoesNotFit(t *testing.T) {
	candidates := []domain.ScoredChunk{
		scored("a", 6, 0.9),
		scored("b", 6, 0.8),
		scored("c", 3, 0.7),
		scored("d", 2, 0.6),
	}

	rc := PackContext(1, "q", candidates, 10, nil)

	ids := make([]string, len(rc.Chunks))
	for i, c := range rc.Chunks {
		ids[i] = c.Chunk.ID
	}
	assert.Equal(t, []string{"a", "c"}, ids)
	assert.Equal(t, 9, rc.UsedTokens)
	assert.Equal(t, 10, rc.BudgetTokens)
}

func TestPackContextNeverExceedsBudget(t *testing.T) {
	var candidates []domain.ScoredChunk
	for i := 0; i < 30; i++ {
		candidates = append(candidates, scored(string(rune('a'+i%26))+string(rune('0'+i/26)), 1+(i*7)%13, 1-float64(i)/30))
	}

	for budget := 0; budget <= 60; budget += 7 {
		rc := PackContext(1, "q", candidates, budget, nil)
		sum := 0
		for _, c := range rc.Chunks {
			sum += c.Chunk.TokenCount
		}
		assert.Equal(t, rc.UsedTokens, sum)
		assert.LessOrEqual(t, sum, budget)
	}
}

func TestPackContextCountsTokensWhenMissing(t *testing.T) {
	c := domain.ScoredChunk{Chunk: domain.Chunk{ID: "x", Text: "three little words"}}
	rc := PackContext(1, "q", []domain.ScoredChunk{c}, 2, analyzer.NewTokenizer())
	assert.True(t, rc.Empty())
}

func TestRetrieveEmptyIndex(t *testing.T) {
	p := newPipeline(t)

	rc, err := p.retriever().Retrieve(context.Background(), 1, "what is the deadline?", 500)
	require.NoError(t, err)
	assert.True(t, rc.Empty())
	assert.Zero(t, rc.UsedTokens)
	assert.Zero(t, p.service.calls.Load())
}

func TestRetrieveStaysInsideProject(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.source.set(1, textDoc("rfp", "submission deadline is march first", "budget ceiling is fixed"))
	p.source.set(2, textDoc("other", "submission deadline is june tenth"))

	for _, id := range []int64{1, 2} {
		_, err := p.ingest.Ingest(ctx, id, nil)
		require.NoError(t, err)
	}

	rc, err := p.retriever().Retrieve(ctx, 1, "submission deadline", 100)
	require.NoError(t, err)
	require.False(t, rc.Empty())
	for _, c := range rc.Chunks {
		assert.Equal(t, int64(1), c.Chunk.ProjectID)
	}
	assert.Equal(t, "submission deadline is march first", rc.Chunks[0].Chunk.Text)
	assert.LessOrEqual(t, rc.UsedTokens, 100)
}

func TestRetrieveMinScore(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.source.set(1, textDoc("rfp", "submission deadline", "catering menu options"))
	_, err := p.ingest.Ingest(ctx, 1, nil)
	require.NoError(t, err)

	r := NewRetrieveUseCase(p.embed, p.index, nil, RetrieveOptions{MinScore: 0.5}, nil, nil)
	rc, err := r.Retrieve(ctx, 1, "submission deadline", 100)
	require.NoError(t, err)
	require.Len(t, rc.Chunks, 1)
	assert.Equal(t, "submission deadline", rc.Chunks[0].Chunk.Text)
}

func TestRetrieveValidatesInput(t *testing.T) {
	r := newPipeline(t).retriever()

	_, err := r.Retrieve(context.Background(), 1, "   ", 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.Retrieve(context.Background(), 1, "q", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
