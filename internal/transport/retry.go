package transport

import (
	"context"
	"time"
)

// RetryPolicy mirrors the tunables of a generic async-retry utility.
type RetryPolicy struct {
	MaxRetries         int           `yaml:"max_retries"`
	BaseDelay          time.Duration `yaml:"base_delay"`
	MaxDelay           time.Duration `yaml:"max_delay"`
	ExponentialBackoff bool          `yaml:"exponential_backoff"`
	OnRetry            func(err error, attempt int)
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if !p.ExponentialBackoff {
		return p.BaseDelay
	}
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry runs op until it succeeds, the policy's retries are exhausted, or
// ctx is cancelled. Delay for attempt n is min(maxDelay, baseDelay*2^n)
// when exponential, else a flat baseDelay.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if policy.OnRetry != nil {
				policy.OnRetry(lastErr, attempt)
			}
			select {
			case <-time.After(policy.delay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
