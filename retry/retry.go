// Package retry provides a bounded exponential-backoff retry combinator
// driven by an immutable policy value.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrExhausted marks a failure after the final attempt. The last attempt's
// error is wrapped alongside it.
var ErrExhausted = errors.New("all retry attempts exhausted")

// Policy describes a bounded retry schedule. The delay before attempt n+1 is
// InitialDelay * Multiplier^(n-1). Policies are values; nothing mutates them.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   int
}

// DefaultPolicy matches the platform-facing defaults: two attempts, five
// seconds before the retry, doubling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 2, InitialDelay: 5 * time.Second, Multiplier: 2}
}

// sleep waits for d or until ctx is done. Overridden in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds or the policy is exhausted, blocking the
// calling goroutine for the backoff between attempts. Context cancellation
// aborts the wait. On exhaustion the returned error wraps both ErrExhausted
// and the last attempt's error.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op func() (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err
		logger.Warn("attempt failed", "attempt", attempt, "max_attempts", p.MaxAttempts, "reason", err.Error())
		if attempt == p.MaxAttempts {
			break
		}
		logger.Info("retrying after backoff", "delay", delay.String())
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay *= time.Duration(p.Multiplier)
	}
	return zero, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
