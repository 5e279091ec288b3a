// Package retry provides the shared retry/backoff primitive (spec.md C9)
// used by the DAG scheduler's per-node retry loop and by pipeline middleware
// wrappers. Attempts are counted from 1; MaxAttempts == N+1 means a node's
// run is invoked at most N+1 times for N configured retries.
package retry

import (
	"context"
	"math"
	"time"
)

// Policy describes how many times to attempt an operation and how long to
// wait between attempts.
type Policy struct {
	// MaxAttempts is the total number of invocations allowed, including the
	// first. Must be >= 1; values < 1 are treated as 1 (no retries).
	MaxAttempts int

	// Delay is the base delay, in milliseconds, applied between attempts.
	Delay int

	// Exponential, when true, scales Delay by 2^n, where n is the
	// zero-based retry index (the delay before the second invocation uses
	// exponent 0). Middleware wrappers that want
	// exponential backoff set this; the DAG scheduler's own per-node
	// retries use a flat delay and leave this false, per spec.md §4.9.
	Exponential bool

	// MaxDelayMs caps the computed delay when Exponential is set. Zero
	// means no cap.
	MaxDelayMs int
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// delayFor returns the delay to sleep before the given zero-based retry
// attempt (0 = the delay before the second invocation).
func (p Policy) delayFor(attempt int) time.Duration {
	base := p.Delay
	if base < 0 {
		base = 0
	}
	if !p.Exponential {
		return time.Duration(base) * time.Millisecond
	}
	scaled := float64(base) * math.Pow(2, float64(attempt))
	if p.MaxDelayMs > 0 && scaled > float64(p.MaxDelayMs) {
		scaled = float64(p.MaxDelayMs)
	}
	return time.Duration(scaled) * time.Millisecond
}

// Do executes fn, retrying according to policy on failure. It returns the
// first successful result, or the last error once attempts are exhausted.
// The total number of invocations is at most policy.MaxAttempts. Attempt
// counting starts at 1 and is reported to the caller via the returned count
// for observability (e.g. scenario S6 in spec.md §8 pins an exact attempt
// count).
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) (any, error)) (result any, attempts int, err error) {
	max := policy.maxAttempts()
	for attempt := 1; attempt <= max; attempt++ {
		attempts = attempt
		result, err = fn(ctx)
		if err == nil {
			return result, attempts, nil
		}
		if attempt == max {
			break
		}
		delay := policy.delayFor(attempt - 1)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, attempts, ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}
	}
	return nil, attempts, err
}
