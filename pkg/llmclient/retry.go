package llmclient

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"
)

// RetryDecision determines how a stage worker should react to a model
// call failure, in the same literal-enum style as pkg/mcp.RecoveryAction
// (NoRetry/RetrySameSession/RetryNewSession).
type RetryDecision int

const (
	// NoRetry — the error is not recoverable within the current attempt
	// budget (malformed request, auth failure, context cancellation).
	NoRetry RetryDecision = iota
	// RetryRateLimited — the provider is throttling; back off and retry.
	RetryRateLimited
)

// RateLimitError is returned by a Client implementation when the
// provider responds with a rate-limit or transient-overload status.
// Classify treats it as RetryRateLimited regardless of transport.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string { return e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// Classify determines the retry decision for a model-call error.
func Classify(err error) RetryDecision {
	if err == nil {
		return NoRetry
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return RetryRateLimited
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NoRetry
	}

	return NoRetry
}

// BackoffSchedule is the retry backoff ladder: 2s, 4s, 8s, 16s, 32s,
// each jittered +/- 25%, capped at 5 attempts (spec.md §7).
var BackoffSchedule = []time.Duration{
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	32 * time.Second,
}

// MaxAttempts is the number of model-call attempts a stage worker makes
// before giving up and returning the error, which leaves the message on
// the bus for redelivery.
var MaxAttempts = len(BackoffSchedule)

// Backoff returns the jittered sleep duration before retry attempt n
// (0-indexed: n=0 is the delay before the second attempt). Returns 0 if
// n is out of range.
func Backoff(n int) time.Duration {
	if n < 0 || n >= len(BackoffSchedule) {
		return 0
	}
	base := BackoffSchedule[n]
	jitter := base / 4
	offset := time.Duration(rand.Int64N(int64(2*jitter+1))) - jitter
	return base + offset
}
