// Package retry wraps a single outbound call with bounded exponential
// backoff. It covers one batch tick only; the cross-tick budget lives on the
// scheduled post's retry_count.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// PermanentError marks a failure that must not be retried, such as a
// validation problem or a revoked credential.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type config struct {
	maxAttempts int
	baseDelay   time.Duration
}

type Option func(*config)

func WithMaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// Do runs op up to maxAttempts times, sleeping baseDelay<<attempt between
// failures. There is no sleep after the final attempt. A PermanentError
// stops immediately and is returned unwrapped.
func Do(ctx context.Context, op func() error, opts ...Option) error {
	cfg := config{maxAttempts: DefaultMaxAttempts, baseDelay: DefaultBaseDelay}
	for _, opt := range opts {
		opt(&cfg)
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return perm.Err
		}

		if attempt == cfg.maxAttempts-1 {
			break
		}

		timer := time.NewTimer(cfg.baseDelay << attempt)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
