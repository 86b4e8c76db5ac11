package retry

import (
	"context"
	"time"
)

// Policy is a bounded retry schedule shared by the external call sites.
// MaxAttempts counts the initial attempt; BaseDelay doubles after every
// failed attempt.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Default matches the provider call policy: one initial attempt plus two
// retries with exponential backoff.
var Default = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// Do runs fn until it succeeds, fails with an error retryable reports as
// permanent, or the policy is exhausted. The backoff sleep respects ctx
// cancellation. The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
