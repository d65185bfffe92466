package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfprag/internal/domain"
	"rfprag/internal/port"
)

type scriptedLLM struct {
	mu    sync.Mutex
	calls [][]domain.ChatMessage
	// reply, if set, decides the response of the n-th (1-based) call.
	reply func(n int, messages []domain.ChatMessage) (string, error)
}

func (l *scriptedLLM) Chat(_ context.Context, messages []domain.ChatMessage, _ port.ChatOptions) (string, error) {
	l.mu.Lock()
	l.calls = append(l.calls, messages)
	n := len(l.calls)
	l.mu.Unlock()

	if l.reply != nil {
		return l.reply(n, messages)
	}
	return fmt.Sprintf("generated text %d", n), nil
}

func (l *scriptedLLM) ModelName() string { return "scripted" }

func (l *scriptedLLM) userPrompt(n int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := l.calls[n]
	return msgs[len(msgs)-1].Content
}

type recordingRetriever struct {
	mu      sync.Mutex
	queries []string
	chunks  map[string][]domain.ScoredChunk
}

func (r *recordingRetriever) Retrieve(_ context.Context, projectID int64, query string, budget int) (domain.RetrievedContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	return domain.RetrievedContext{
		ProjectID:    projectID,
		Query:        query,
		BudgetTokens: budget,
		Chunks:       r.chunks[query],
	}, nil
}

type memWriter struct {
	sections []domain.GeneratedSection
}

func (w *memWriter) Write(_ context.Context, project domain.Project, sections []domain.GeneratedSection) (string, error) {
	w.sections = sections
	return fmt.Sprintf("drafts/project-%d.md", project.ID), nil
}

var threeSections = []domain.SectionDefinition{
	{Name: "Overview", Query: "overview query"},
	{Name: "Approach", Query: "approach query", Instructions: "Be specific."},
	{Name: "Pricing", Query: "pricing query"},
}

func newGenerator(llm port.LLM, r ContextRetriever, sections []domain.SectionDefinition) *GenerateUseCase {
	return NewGenerateUseCase(llm, r, nil, nil, GenerateOptions{
		Retry:         fastRetry,
		TokenBudget:   200,
		SummaryTokens: 100,
		Sections:      sections,
	}, nil, nil)
}

func TestAnswerWithoutContextIsTagged(t *testing.T) {
	llm := &scriptedLLM{}
	p := newPipeline(t)
	g := newGenerator(llm, p.retriever(), nil)

	ans, err := g.Answer(context.Background(), 1, "What is the deadline?")
	require.NoError(t, err)
	assert.False(t, ans.Grounded)
	assert.Equal(t, "What is the deadline?", ans.Question)
	require.Len(t, llm.calls, 1)
	assert.Contains(t, llm.userPrompt(0), NoContextTag)
	assert.Contains(t, llm.calls[0][0].Content, InsufficientInformation)
}

func TestAnswerIsGroundedInProjectContext(t *testing.T) {
	ctx := context.Background()
	llm := &scriptedLLM{}
	p := newPipeline(t)
	p.source.set(1, textDoc("rfp", "submission deadline is march first"))
	_, err := p.ingest.Ingest(ctx, 1, nil)
	require.NoError(t, err)

	ans, err := newGenerator(llm, p.retriever(), nil).Answer(ctx, 1, "submission deadline")
	require.NoError(t, err)
	assert.True(t, ans.Grounded)
	assert.Equal(t, "generated text 1", ans.Answer)

	prompt := llm.userPrompt(0)
	assert.NotContains(t, prompt, NoContextTag)
	assert.Contains(t, prompt, "[1] (rfp)\nsubmission deadline is march first")
	assert.True(t, strings.HasSuffix(prompt, "Question:\nsubmission deadline\n\nAnswer:"))
}

func TestDraftRunsSectionsInOrderWithOwnContext(t *testing.T) {
	llm := &scriptedLLM{}
	r := &recordingRetriever{chunks: map[string][]domain.ScoredChunk{
		"approach query": {{Chunk: domain.Chunk{ID: "c1", DocumentID: "approach.md", Text: "use a phased rollout", TokenCount: 4}, Score: 0.9}},
	}}

	sections, err := newGenerator(llm, r, threeSections).Draft(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, []string{"overview query", "approach query", "pricing query"}, r.queries)
	for i, s := range sections {
		assert.Equal(t, threeSections[i].Name, s.Name)
		assert.Equal(t, threeSections[i].Query, s.Context.Query)
		assert.Equal(t, fmt.Sprintf("generated text %d", i+1), s.Text)
		assert.Equal(t, promptText(llm.calls[i]), s.Prompt)
	}

	first, second, third := llm.userPrompt(0), llm.userPrompt(1), llm.userPrompt(2)
	assert.NotContains(t, first, "Previously written sections")
	assert.Contains(t, first, NoContextTag)

	assert.Contains(t, second, "- Overview: generated text 1")
	assert.Contains(t, second, "use a phased rollout")
	assert.Contains(t, second, "Instructions: Be specific.")

	assert.Contains(t, third, "- Approach: generated text 2")
	assert.NotContains(t, third, "use a phased rollout", "context belongs to its own section only")
}

func TestDraftAbortsOnFirstRejectedSection(t *testing.T) {
	llm := &scriptedLLM{reply: func(n int, _ []domain.ChatMessage) (string, error) {
		if n == 2 {
			return "", errors.New("content policy violation")
		}
		return "ok", nil
	}}

	_, err := newGenerator(llm, &recordingRetriever{}, threeSections).Draft(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationRejected)

	var rejected *domain.GenerationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Approach", rejected.Section)
	assert.Equal(t, "approach query", rejected.Query)
	assert.Len(t, llm.calls, 2)
}

func TestDraftModelUnavailableAfterRetries(t *testing.T) {
	llm := &scriptedLLM{reply: func(int, []domain.ChatMessage) (string, error) {
		return "", transient("chat")
	}}

	_, err := newGenerator(llm, &recordingRetriever{}, threeSections).Draft(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.NotErrorIs(t, err, domain.ErrGenerationRejected)
	assert.Len(t, llm.calls, fastRetry.MaxAttempts)
}

func TestDraftStopsOnCancellation(t *testing.T) {
	llm := &scriptedLLM{}
	ctx, cancel := context.WithCancel(context.Background())
	llm.reply = func(n int, _ []domain.ChatMessage) (string, error) {
		cancel()
		return "first", nil
	}

	_, err := newGenerator(llm, &recordingRetriever{}, threeSections).Draft(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, llm.calls, 1)
}

func TestDraftAndWrite(t *testing.T) {
	src := newMemSource()
	src.set(3, textDoc("x", "anything"))
	w := &memWriter{}
	g := NewGenerateUseCase(&scriptedLLM{}, &recordingRetriever{}, src, w, GenerateOptions{
		Retry:    fastRetry,
		Sections: threeSections[:1],
	}, nil, nil)

	res, err := g.DraftAndWrite(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "drafts/project-3.md", res.Path)
	assert.Equal(t, "Project 3", res.Project.Name)
	assert.Len(t, w.sections, 1)

	_, err = g.DraftAndWrite(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestChatValidatesHistory(t *testing.T) {
	llm := &scriptedLLM{}
	g := newGenerator(llm, &recordingRetriever{}, nil)

	_, err := g.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = g.Chat(context.Background(), []domain.ChatMessage{{Role: "robot", Content: "hi"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	out, err := g.Chat(context.Background(), []domain.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "generated text 1", out)
}

func TestChatRejectionCarriesQuery(t *testing.T) {
	llm := &scriptedLLM{reply: func(int, []domain.ChatMessage) (string, error) {
		return "", errors.New("bad request")
	}}

	_, err := newGenerator(llm, &recordingRetriever{}, nil).Chat(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hello"}})
	var rejected *domain.GenerationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "hello", rejected.Query)
	assert.Empty(t, rejected.Section)
}

func TestRunningSummaryDropsOldestFirst(t *testing.T) {
	done := []domain.GeneratedSection{
		{Name: "One", Text: strings.Repeat("alpha ", 10)},
		{Name: "Two", Text: "beta gamma"},
	}

	full := runningSummary(done, 100)
	assert.Contains(t, full, "- One:")
	assert.Contains(t, full, "- Two: beta gamma")

	short := runningSummary(done, 5)
	assert.NotContains(t, short, "One")
	assert.Equal(t, "- Two: beta gamma", short)
	assert.LessOrEqual(t, len(strings.Fields(short)), 5)

	assert.Empty(t, runningSummary(done, 0))
}
