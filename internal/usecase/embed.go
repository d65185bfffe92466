package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rfprag/internal/domain"
	"rfprag/internal/logger"
	"rfprag/internal/metrics"
	"rfprag/internal/port"
	"rfprag/internal/retry"
)

const defaultBatchSize = 64

// BatchEmbedder splits texts into batches, retries each failing batch on its
// own and validates every response against the configured dimension.
type BatchEmbedder struct {
	service   port.EmbeddingService
	batchSize int
	policy    retry.Policy
	log       *logger.Logger
	metrics   *metrics.Metrics
}

var _ port.Embedder = (*BatchEmbedder)(nil)

func NewBatchEmbedder(service port.EmbeddingService, batchSize int, policy retry.Policy, log *logger.Logger, m *metrics.Metrics) *BatchEmbedder {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BatchEmbedder{
		service:   service,
		batchSize: batchSize,
		policy:    policy,
		log:       log.Component("embedder"),
		metrics:   m,
	}
}

func (e *BatchEmbedder) Dimension() int {
	return e.service.Dimension()
}

// Embed returns one vector per text in input order. Either every batch
// succeeds or the call fails; partial results are never returned.
func (e *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *BatchEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32
	attempt := 0

	err := retry.Do(ctx, e.policy, port.IsTransient, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			e.metrics.RecordRetry("embed")
		}

		start := time.Now()
		got, err := e.service.EmbedBatch(ctx, batch)
		e.metrics.RecordCall("embed", time.Since(start), err)
		e.log.LogCall("embed", attempt, time.Since(start), err)
		if err != nil {
			return err
		}
		if err := e.validate(batch, got); err != nil {
			return err
		}
		vecs = got
		return nil
	})
	if err == nil {
		return vecs, nil
	}

	var exhausted *retry.ExhaustedError
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, domain.ErrEmbeddingContractViolation):
		return nil, err
	case errors.As(err, &exhausted):
		return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrEmbeddingUnavailable, exhausted.Attempts, exhausted.Last)
	default:
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
}

func (e *BatchEmbedder) validate(batch []string, vecs [][]float32) error {
	if len(vecs) != len(batch) {
		return fmt.Errorf("%w: got %d vectors for %d inputs",
			domain.ErrEmbeddingContractViolation, len(vecs), len(batch))
	}
	dim := e.service.Dimension()
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				domain.ErrEmbeddingContractViolation, i, len(v), dim)
		}
	}
	return nil
}
