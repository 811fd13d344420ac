package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"lupa-be/pkg/crawl"
)

// RetryPolicy declares how often a step runs and how long to wait between
// attempts. Backoff receives the error that failed the attempt and the
// attempt's number, starting at 1.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(err error, attempt int) time.Duration
}

// FilePolicy: 3 attempts, exponential from 1s, factor 2, capped at 30s.
func FilePolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     Exponential(time.Second, 2, 30*time.Second),
	}
}

// WebsitePolicy: 5 attempts, 60s after a rate limit and 10s otherwise.
func WebsitePolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff: func(err error, _ int) time.Duration {
			if crawl.IsRateLimit(err) {
				return 60 * time.Second
			}
			return 10 * time.Second
		},
	}
}

func Exponential(base time.Duration, factor float64, max time.Duration) func(error, int) time.Duration {
	return func(_ error, attempt int) time.Duration {
		d := float64(base)
		for i := 1; i < attempt; i++ {
			d *= factor
			if time.Duration(d) >= max {
				return max
			}
		}
		return time.Duration(d)
	}
}

// policyBackOff feeds a RetryPolicy's schedule to backoff.Retry. The
// operation records the failure before the library asks for the next wait.
type policyBackOff struct {
	policy  RetryPolicy
	attempt int
	lastErr error
}

func (b *policyBackOff) Reset() { b.attempt = 0 }

func (b *policyBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.policy.Backoff == nil {
		return 0
	}
	return b.policy.Backoff(b.lastErr, b.attempt)
}

// Do runs fn until it succeeds, fails with a non-retryable error or the
// attempts run out.
func (p RetryPolicy) Do(ctx context.Context, onRetry func(attempt int, err error, wait time.Duration), fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	schedule := &policyBackOff{policy: p}
	operation := func() (struct{}, error) {
		if schedule.lastErr != nil && ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		err := fn(ctx)
		if err != nil {
			schedule.lastErr = err
			if !IsRetryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
		}
		return struct{}{}, err
	}
	notify := func(err error, wait time.Duration) {
		if onRetry != nil {
			onRetry(schedule.attempt, err, wait)
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(schedule),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	last := schedule.lastErr
	switch {
	case last == nil:
		return err
	case ctx.Err() != nil && !errors.Is(last, ctx.Err()):
		return fmt.Errorf("%w (retry interrupted: %v)", last, ctx.Err())
	case !IsRetryable(last):
		return last
	default:
		return fmt.Errorf("after %d attempts: %w", attempts, last)
	}
}
