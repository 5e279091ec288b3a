package graph

import "github.com/ragdagio/ragdag/retry"

// RetryPolicy configures a node's retry behavior. It mirrors spec.md §3's
// Node.options.retry shape directly: a count of additional attempts and a
// flat delay between them (no exponential backoff at the node level — that
// is reserved for the shared primitive in package retry, which middleware
// wrappers may opt into; see retry.Policy).
type RetryPolicy struct {
	// Retries is the number of additional attempts after the first. Zero
	// means the node runs exactly once.
	Retries int

	// DelayMs is the delay, in milliseconds, between attempts. Zero means
	// attempts are retried immediately.
	DelayMs int
}

// asRetryPolicy converts a node's flat RetryPolicy into the shared
// retry.Policy primitive (C9) used by the scheduler's attempt loop.
func (p RetryPolicy) asRetryPolicy() retry.Policy {
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	delay := p.DelayMs
	if delay < 0 {
		delay = 0
	}
	return retry.Policy{
		MaxAttempts: retries + 1,
		Delay:       delay,
	}
}
