package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rfprag/internal/domain"
	"rfprag/internal/logger"
	"rfprag/internal/metrics"
	"rfprag/internal/port"
	"rfprag/internal/retry"
)

// ContextRetriever supplies token-bounded context for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, projectID int64, query string, budget int) (domain.RetrievedContext, error)
}

// ProjectLookup resolves project metadata for draft prompts.
type ProjectLookup interface {
	Project(ctx context.Context, projectID int64) (domain.Project, error)
}

// GenerateOptions configures model calls and drafting.
type GenerateOptions struct {
	Chat          port.ChatOptions
	Retry         retry.Policy
	TokenBudget   int
	SummaryTokens int
	Sections      []domain.SectionDefinition
}

// GenerateUseCase answers questions and drafts RFP responses with an
// external model, grounded in retrieved project context.
type GenerateUseCase struct {
	llm       port.LLM
	retriever ContextRetriever
	projects  ProjectLookup
	writer    port.DraftWriter
	opts      GenerateOptions
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewGenerateUseCase creates a new generate use case. projects and writer
// may be nil.
func NewGenerateUseCase(
	llm port.LLM,
	retriever ContextRetriever,
	projects ProjectLookup,
	writer port.DraftWriter,
	opts GenerateOptions,
	log *logger.Logger,
	m *metrics.Metrics,
) *GenerateUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &GenerateUseCase{
		llm:       llm,
		retriever: retriever,
		projects:  projects,
		writer:    writer,
		opts:      opts,
		log:       log.Component("generate"),
		metrics:   m,
	}
}

var chatRoles = map[string]bool{"system": true, "user": true, "assistant": true}

// Chat forwards a conversation to the model without retrieval.
func (u *GenerateUseCase) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: empty message history", domain.ErrInvalidInput)
	}
	for i, m := range messages {
		if !chatRoles[m.Role] {
			return "", fmt.Errorf("%w: message %d has unknown role %q", domain.ErrInvalidInput, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return "", fmt.Errorf("%w: message %d is empty", domain.ErrInvalidInput, i)
		}
	}
	return u.complete(ctx, messages, "", lastUserMessage(messages))
}

// Answer answers one question from the project's context. When retrieval
// finds nothing the model is told so and the answer is marked ungrounded.
func (u *GenerateUseCase) Answer(ctx context.Context, projectID int64, question string) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	rc, err := u.retriever.Retrieve(ctx, projectID, question, u.opts.TokenBudget)
	if err != nil {
		return domain.Answer{}, err
	}

	text, err := u.complete(ctx, BuildAnswerPrompt(question, rc), "", question)
	if err != nil {
		return domain.Answer{}, err
	}

	u.log.Debug().
		Int64("project_id", projectID).
		Int("context_chunks", len(rc.Chunks)).
		Bool("grounded", !rc.Empty()).
		Msg("question answered")

	return domain.Answer{Question: question, Answer: text, Grounded: !rc.Empty()}, nil
}

// complete runs one model call under the retry policy. Transient failures
// are retried up to the ceiling; anything else is a rejection.
func (u *GenerateUseCase) complete(ctx context.Context, messages []domain.ChatMessage, section, query string) (string, error) {
	var text string
	attempt := 0

	err := retry.Do(ctx, u.opts.Retry, port.IsTransient, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			u.metrics.RecordRetry("chat")
		}

		start := time.Now()
		out, err := u.llm.Chat(ctx, messages, u.opts.Chat)
		u.metrics.RecordCall("chat", time.Since(start), err)
		u.log.LogCall("chat", attempt, time.Since(start), err)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err == nil {
		return text, nil
	}

	var exhausted *retry.ExhaustedError
	switch {
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.As(err, &exhausted):
		return "", fmt.Errorf("%w after %d attempts: %w", domain.ErrModelUnavailable, exhausted.Attempts, exhausted.Last)
	default:
		u.metrics.GenerationRejected()
		return "", &domain.GenerationRejectedError{Section: section, Query: query, Err: err}
	}
}

func lastUserMessage(messages []domain.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
