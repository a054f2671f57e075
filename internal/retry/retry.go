// Package retry runs an operation again when it fails with an error the
// caller declares recoverable, waiting an exponentially growing delay
// between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy controls which errors are retried and how long to wait between attempts.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	Multiplier  float64
	MinWait     time.Duration
	MaxWait     time.Duration

	// Retryable reports whether err should be retried. A nil predicate retries nothing.
	Retryable func(err error) bool
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy is three attempts with waits of min(10s, max(2s, 1s*2^(n-1))).
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Multiplier:  1,
	MinWait:     2 * time.Second,
	MaxWait:     10 * time.Second,
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Backoff returns the wait after the given 1-based attempt failed.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	wait := time.Duration(multiplier * math.Pow(2, float64(attempt-1)) * float64(time.Second))
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	if wait < p.MinWait {
		wait = p.MinWait
	}
	return wait
}

// NewBackOff returns the policy's wait schedule as a backoff.BackOff without jitter.
func (p Policy) NewBackOff() backoff.BackOff {
	return &schedule{policy: p}
}

type schedule struct {
	policy   Policy
	attempts int
}

func (s *schedule) NextBackOff() time.Duration {
	s.attempts++
	return s.policy.Backoff(s.attempts)
}

func (s *schedule) Reset() { s.attempts = 0 }

// WithRetryable returns a copy of the policy using the given predicate.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

// Do calls fn until it succeeds, fails with a non-retryable error, or runs out of attempts.
// The attempt number passed to fn starts at 1.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		attempt int
		lastErr error
	)

	operation := func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return struct{}{}, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}

		lastErr = err
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.NewBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			p.OnRetry(attempt, wait, err)
		}))
	}

	_, err := backoff.Retry(ctx, operation, opts...)
	if err == nil {
		return nil
	}

	// The last try is returned as is, permanent marker included.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}

	if lastErr != nil && errors.Is(err, lastErr) && attempt >= attempts {
		return &ExhaustedError{Attempts: attempt, Err: lastErr}
	}

	return err
}
