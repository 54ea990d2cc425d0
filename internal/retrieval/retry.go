package retrieval

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
)

// BackoffFunc computes the pause before retry number attempt (1-based,
// counted after the first failure).
type BackoffFunc func(attempt int, base time.Duration) time.Duration

// FixedBackoff pauses the same base duration between every attempt.
func FixedBackoff(_ int, base time.Duration) time.Duration {
	return base
}

// LinearBackoff grows the pause by one base duration per attempt, so with a
// 500ms base the waits are 1.0s, 1.5s, 2.0s.
func LinearBackoff(attempt int, base time.Duration) time.Duration {
	return base + time.Duration(attempt)*base
}

// RetryPolicy declares how often a fallback stage may retry and how long it
// pauses in between. The three chains share this one mechanism instead of
// duplicated loop bodies.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     BackoffFunc
}

// delay returns the pause to apply after the given failed attempt.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = FixedBackoff
	}
	return backoff(attempt, p.BaseDelay)
}

// Attempt runs fn until it succeeds, the policy is exhausted, or the context
// is cancelled. fn receives the 1-based attempt number so callers can vary
// arguments between attempts (e.g. swap parameter namings). The last error
// is returned when all attempts fail.
func (p RetryPolicy) Attempt(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "retry cancelled")
		}

		if lastErr = fn(ctx, attempt); lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		if pause := p.delay(attempt); pause > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry cancelled")
			case <-time.After(pause):
			}
		}
	}

	return lastErr
}
