package util

import (
	"context"
	"errors"
	"time"
)

// Backoff is a retry schedule: up to Attempts calls, the first retry after
// Base, the delay doubling on every further retry and capped at Max when Max
// is positive.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func (b Backoff) delay(retry int) time.Duration {
	d := b.Base
	for range retry {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	return d
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry gives up on it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error or the schedule
// runs out. fn receives the 1-based attempt number. The last error is
// returned unwrapped from Permanent.
func Retry(ctx context.Context, b Backoff, fn func(attempt int) error) error {
	attempts := max(b.Attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}
		t := time.NewTimer(b.delay(attempt - 1))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
