package llmclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRateLimitError(t *testing.T) {
	err := &RateLimitError{Err: errors.New("429 too many requests")}
	assert.Equal(t, RetryRateLimited, Classify(err))
}

func TestClassifyContextCanceledIsNoRetry(t *testing.T) {
	assert.Equal(t, NoRetry, Classify(context.Canceled))
}

func TestClassifyNilIsNoRetry(t *testing.T) {
	assert.Equal(t, NoRetry, Classify(nil))
}

func TestClassifyUnknownErrorIsNoRetry(t *testing.T) {
	assert.Equal(t, NoRetry, Classify(errors.New("boom")))
}

func TestBackoffIsWithinJitterBand(t *testing.T) {
	for n, base := range BackoffSchedule {
		d := Backoff(n)
		jitter := base / 4
		assert.GreaterOrEqual(t, d, base-jitter)
		assert.LessOrEqual(t, d, base+jitter)
	}
}

func TestBackoffOutOfRangeIsZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(-1))
	assert.Equal(t, time.Duration(0), Backoff(len(BackoffSchedule)))
}

func TestMaxAttemptsMatchesSchedule(t *testing.T) {
	assert.Equal(t, 5, MaxAttempts)
}
