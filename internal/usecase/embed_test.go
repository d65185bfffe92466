package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfprag/internal/domain"
	"rfprag/internal/metrics"
	"rfprag/internal/retry"
)

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("passage %d about delivery", i)
	}
	return out
}

func TestBatchEmbedderPreservesOrderAcrossBatches(t *testing.T) {
	svc := newCountingService()
	e := NewBatchEmbedder(svc, 3, fastRetry, nil, nil)

	in := texts(7)
	got, err := e.Embed(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, got, 7)
	assert.EqualValues(t, 3, svc.calls.Load())

	want, err := svc.inner.EmbedBatch(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBatchEmbedderRetriesOnlyTheFailingBatch(t *testing.T) {
	svc := newCountingService()
	svc.fail = func(call int, _ []string) error {
		if call == 2 {
			return transient("embed")
		}
		return nil
	}
	m := metrics.New()
	e := NewBatchEmbedder(svc, 2, fastRetry, nil, m)

	got, err := e.Embed(context.Background(), texts(6))
	require.NoError(t, err)
	assert.Len(t, got, 6)
	assert.EqualValues(t, 4, svc.calls.Load())
}

func TestBatchEmbedderRetryCeiling(t *testing.T) {
	for _, attempts := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("attempts=%d", attempts), func(t *testing.T) {
			svc := newCountingService()
			svc.fail = func(int, []string) error { return transient("embed") }
			e := NewBatchEmbedder(svc, 8, retry.Policy{MaxAttempts: attempts}, nil, nil)

			got, err := e.Embed(context.Background(), texts(3))
			assert.Nil(t, got)
			assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
			assert.EqualValues(t, attempts, svc.calls.Load())
		})
	}
}

func TestBatchEmbedderPermanentErrorIsNotRetried(t *testing.T) {
	svc := newCountingService()
	svc.fail = func(int, []string) error { return errors.New("401 unauthorized") }
	e := NewBatchEmbedder(svc, 8, fastRetry, nil, nil)

	_, err := e.Embed(context.Background(), texts(3))
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestBatchEmbedderContractViolations(t *testing.T) {
	tests := []struct {
		name   string
		mangle func([][]float32) [][]float32
	}{
		{"missing vector", func(v [][]float32) [][]float32 { return v[:len(v)-1] }},
		{"wrong dimension", func(v [][]float32) [][]float32 {
			v[0] = v[0][:testDim-1]
			return v
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newCountingService()
			svc.mangle = tt.mangle
			e := NewBatchEmbedder(svc, 8, fastRetry, nil, nil)

			_, err := e.Embed(context.Background(), texts(3))
			assert.ErrorIs(t, err, domain.ErrEmbeddingContractViolation)
			assert.NotErrorIs(t, err, domain.ErrEmbeddingUnavailable)
			assert.EqualValues(t, 1, svc.calls.Load(), "contract violations are never retried")
		})
	}
}

func TestBatchEmbedderEmptyInput(t *testing.T) {
	svc := newCountingService()
	got, err := NewBatchEmbedder(svc, 8, fastRetry, nil, nil).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, svc.calls.Load())
}
