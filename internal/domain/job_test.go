package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStateTransitions(t *testing.T) {
	tests := []struct {
		from, to JobState
		want     bool
	}{
		{JobPending, JobChunking, true},
		{JobPending, JobIndexing, true},
		{JobPending, JobCompleted, true},
		{JobChunking, JobEmbedding, true},
		{JobEmbedding, JobIndexing, true},
		{JobEmbedding, JobCompleted, false},
		{JobIndexing, JobChunking, true},
		{JobIndexing, JobCompleted, true},
		{JobIndexing, JobEmbedding, false},
		{JobCompleted, JobChunking, false},
		{JobFailed, JobPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.False(t, JobIndexing.Terminal())
}

func TestJobResultCopiesFailures(t *testing.T) {
	job := &IngestionJob{
		DocumentsProcessed: 2,
		DocumentsFailed:    1,
		Failures:           []DocumentFailure{{DocumentID: "a.pdf", Reason: "unsupported"}},
	}
	res := job.Result()
	res.Failures[0].Reason = "changed"
	assert.Equal(t, "unsupported", job.Failures[0].Reason)
	assert.Equal(t, 2, res.DocumentsProcessed)
}

func TestGenerationRejectedError(t *testing.T) {
	cause := errors.New("content policy")
	err := &GenerationRejectedError{Section: "Pricing Approach", Query: "pricing", Err: cause}

	assert.ErrorIs(t, err, ErrGenerationRejected)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "generation rejected for section Pricing Approach: content policy", err.Error())

	q := &GenerationRejectedError{Query: "when is it due?", Err: cause}
	assert.Equal(t, "generation rejected for when is it due?: content policy", q.Error())
}
