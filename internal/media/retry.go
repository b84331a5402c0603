package media

import (
	"context"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// RetryPolicy bounds retries of a single tool invocation.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // doubled after every failed attempt

	// OnRetry, when set, is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy returns a policy of 3 attempts starting at 500ms backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, Backoff: defaultBackoff}
}

// Retry calls fn until it succeeds, returns a non-transient error, the
// attempt limit is reached, or ctx is done. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.Backoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || !IsTransient(err) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
	}
}
