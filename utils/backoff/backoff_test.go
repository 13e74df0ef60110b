package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRetryable = errors.New("retryable")

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
	}
}

func TestDelays(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: 50 * time.Millisecond, Multiplier: 2}
	delays := p.Delays()

	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("Expected %d delays, got %d", len(want), len(delays))
	}
	for i, d := range delays {
		if d != want[i] {
			t.Errorf("Delay %d: expected %v, got %v", i, want[i], d)
		}
	}
}

func TestDelays_SingleAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 1, BaseDelay: 50 * time.Millisecond, Multiplier: 2}
	if delays := p.Delays(); delays != nil {
		t.Errorf("Expected no delays for a single attempt, got %v", delays)
	}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3),
		func(error) bool { return true },
		func() error {
			calls++
			return nil
		})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3),
		func(err error) bool { return errors.Is(err, errRetryable) },
		func() error {
			calls++
			if calls < 3 {
				return errRetryable
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	err := Retry(context.Background(), fastPolicy(3),
		func(err error) bool { return errors.Is(err, errRetryable) },
		func() error {
			calls++
			return fatal
		})
	if !errors.Is(err, fatal) {
		t.Fatalf("Expected fatal error, got %v", err)
	}
	if errors.Is(err, ErrAttemptsExhausted) {
		t.Error("Non-retryable error must not be wrapped as exhaustion")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetry_Exhaustion(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3),
		func(err error) bool { return errors.Is(err, errRetryable) },
		func() error {
			calls++
			return errRetryable
		})
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Expected ErrAttemptsExhausted, got %v", err)
	}
	if !errors.Is(err, errRetryable) {
		t.Error("Exhaustion error should carry the last attempt error")
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Policy{MaxAttempts: 3, BaseDelay: time.Minute, Multiplier: 2},
		func(error) bool { return true },
		func() error {
			calls++
			cancel() // cancel while waiting for the next attempt
			return errRetryable
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}
