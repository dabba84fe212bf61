// File: internal/retry/retry.go

// Package retry provides the bounded-attempt combinator shared by the
// selection validator and the plain fill path. Backoff between attempts
// is uniform random inside a window that widens linearly with the
// attempt number.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Backoff describes a randomized linear-window backoff. The delay
// before attempt n (n >= 2, 1-based) is drawn uniformly from
// [Min*n, Max*n].
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff matches the selection validator's window of
// [500ms*n, 1500ms*n].
var DefaultBackoff = Backoff{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}

// Delay returns the randomized delay to sleep before the given 1-based
// attempt number. Attempts below 1 are treated as 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	lo := b.Min * time.Duration(attempt)
	hi := b.Max * time.Duration(attempt)
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// Sleep blocks for the attempt's delay, returning early with ctx.Err()
// if the context is canceled first.
func (b Backoff) Sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(b.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn up to attempts times. The sleep between failures is keyed
// to the upcoming attempt, so the delay before attempt n falls in
// [Min*n, Max*n]. It stops immediately on context cancellation and,
// when every attempt fails, returns all attempt errors joined so no
// diagnostic is lost. fn receives the 1-based attempt number.
func Do(ctx context.Context, attempts int, b Backoff, fn func(ctx context.Context, attempt int) error) error {
	if attempts < 1 {
		return fmt.Errorf("retry: attempts must be >= 1, got %d", attempts)
	}

	var attemptErrs []error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		attemptErrs = append(attemptErrs, err)
		if attempt < attempts {
			if err := b.Sleep(ctx, attempt+1); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, errors.Join(attemptErrs...))
}
