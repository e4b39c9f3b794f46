package site

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// permanent reports errors that another attempt cannot fix.
func permanent(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// retryWithBackoff calls fn until it succeeds, fails permanently or has
// been retried maxRetries times. The wait doubles from base.
func retryWithBackoff(ctx context.Context, maxRetries int, base time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || permanent(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := base << uint(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
