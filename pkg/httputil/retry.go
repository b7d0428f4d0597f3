package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a transient failure that [Retry] attempts again.
// After, when set, is the wait requested by the server and replaces the
// backoff delay of the next attempt.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Backoff describes how [Retry] spaces its attempts.
type Backoff struct {
	Attempts int
	Delay    time.Duration // before the second attempt; doubled after each failure
	MaxDelay time.Duration // zero means unbounded
}

// next returns the wait before the attempt following a failure with err.
func (b Backoff) next(delay time.Duration, err error) time.Duration {
	var re *RetryableError
	if errors.As(err, &re) && re.After > 0 {
		delay = re.After
	}
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return delay
}

// Retry runs fn until it succeeds, fails with an error that is not a
// [RetryableError], or b.Attempts is exhausted. fn receives the zero-based
// attempt number. The last error is returned unwrapped from its
// RetryableError, or ctx.Err() when the context ends during a wait.
func Retry(ctx context.Context, b Backoff, fn func(attempt int) error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay
	var lastErr error

	for i := range attempts {
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = re.Err

		if i < attempts-1 {
			wait := b.next(delay, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				delay *= 2
			}
		}
	}
	return lastErr
}
