// Package backoff provides a small bounded-retry helper with exponential
// delays, used around operations that race on unique constraints (e.g. the
// room-creation insert losing the invite-code race to a concurrent writer).
package backoff

import (
	"context"
	"errors"
	"time"
)

// ErrAttemptsExhausted is returned when every attempt failed with a
// retryable error.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy describes a bounded exponential backoff schedule. Attempt n
// (0-based) sleeps BaseDelay * Multiplier^n before retrying.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the room-creation retry budget: 3 attempts, 50ms
// base delay, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		Multiplier:  2,
	}
}

// Delays returns the sleep schedule between attempts. The first attempt
// runs immediately, so there are MaxAttempts-1 delays.
func (p Policy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	d := float64(p.BaseDelay)
	for i := 0; i < p.MaxAttempts-1; i++ {
		delays = append(delays, time.Duration(d))
		d *= p.Multiplier
	}
	return delays
}

// Retry runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget runs out. retryable decides whether an error is worth
// another attempt; non-retryable errors are returned to the caller as-is.
// When the budget is exhausted the last error is wrapped together with
// ErrAttemptsExhausted.
func Retry(ctx context.Context, p Policy, retryable func(error) bool, op func() error) error {
	var lastErr error
	delays := p.Delays()

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delays[attempt-1]):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}

	return errors.Join(ErrAttemptsExhausted, lastErr)
}
