package graph

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ragdagio/ragdag/graph/emit"
	"github.com/ragdagio/ragdag/retry"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// ExecuteOptions configures a single Execute call (spec.md §4.4's
// normalised options record).
type ExecuteOptions struct {
	// Concurrency bounds the number of node bodies running at once. Zero
	// means RAG_MAX_CONCURRENCY when that is set to a positive integer,
	// and unbounded otherwise.
	Concurrency int

	// Timeout bounds the whole run. Zero means no timeout.
	Timeout time.Duration

	// ContinueOnError treats a critical node's failure as non-fatal when
	// the node is not in RequiredNodes.
	ContinueOnError bool

	// EnableCheckpoints, when true with CheckpointID set, saves a
	// checkpoint snapshot after the run completes.
	EnableCheckpoints bool
	CheckpointID      string

	// RequiredNodes overrides which node ids are exempt from graceful
	// degradation's "non-critical" treatment.
	RequiredNodes []string

	// RetryFailedNodes, when true, overrides every node's own retry count
	// with MaxRetries (its own delay is still used).
	RetryFailedNodes bool
	MaxRetries       int

	// GracefulDegradation lets nodes outside the computed required set
	// fail without halting the run, and lets their absence contribute a
	// nil value to downstream multi-parent input lists.
	GracefulDegradation bool

	// Seed is the value fed to every source node (a node with no
	// inputs).
	Seed any

	// Emitter receives scheduler log lines. A nil Emitter (or a
	// NullEmitter) in Execute falls back to the engine's WithEmitter sink,
	// which discards events unless one was configured; Resume discards them.
	Emitter emit.Emitter

	// Tracer, when set, opens an OpenTelemetry span per node execution.
	Tracer trace.Tracer

	// Metrics, when set, receives per-node non-critical-failure counts as
	// the scheduler records them (runsTotal/nodesSucceeded/nodesFailed are
	// observed once at the end of Execute instead).
	Metrics *Metrics
}

func (o ExecuteOptions) warn(msg string) {
	if o.Emitter != nil {
		o.Emitter.Emit(emit.Event{Msg: msg})
		return
	}
	log.Print(msg)
}

// runState holds the mutable per-run results/errors maps, guarded by a
// single mutex per spec.md §5's "results and errors maps are mutated only
// by the scheduler" rule.
type runState struct {
	mu      sync.Mutex
	results map[string]any
	errors  map[string]error
}

func newRunState() *runState {
	return &runState{results: make(map[string]any), errors: make(map[string]error)}
}

func (s *runState) setResult(id string, v any) {
	s.mu.Lock()
	s.results[id] = v
	s.mu.Unlock()
}

func (s *runState) setError(id string, err error) {
	s.mu.Lock()
	s.errors[id] = err
	s.mu.Unlock()
}

func (s *runState) getResult(id string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.results[id]
	return v, ok
}

func (s *runState) snapshot() (map[string]any, map[string]error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make(map[string]any, len(s.results))
	for k, v := range s.results {
		results[k] = v
	}
	errs := make(map[string]error, len(s.errors))
	for k, v := range s.errors {
		errs[k] = v
	}
	return results, errs
}

// ancestorSet returns ids ∪ their transitive ancestors over rev, used to
// compute requiredIds = sinkIds ∪ ancestors(sinkIds).
func ancestorSet(ids []string, rev map[string][]string) map[string]bool {
	seen := make(map[string]bool, len(ids))
	stack := append([]string{}, ids...)
	for _, id := range ids {
		seen[id] = true
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, parent := range rev[id] {
			if !seen[parent] {
				seen[parent] = true
				stack = append(stack, parent)
			}
		}
	}
	return seen
}

// assembleInput implements spec.md §4.3's input-assembly rule: zero parents
// is the seed, one parent is that parent's result, N parents is an ordered
// slice. A missing parent result (graceful degradation only) contributes
// nil in its position.
func assembleInput(n *Node, seed any, state *runState) any {
	switch len(n.inputs) {
	case 0:
		return seed
	case 1:
		v, _ := state.getResult(n.inputs[0].ID)
		return v
	default:
		in := make([]any, len(n.inputs))
		for i, p := range n.inputs {
			v, _ := state.getResult(p.ID)
			in[i] = v
		}
		return in
	}
}

func isRequiredOverride(id string, required []string) bool {
	for _, r := range required {
		if r == id {
			return true
		}
	}
	return false
}

// effectiveRetryPolicy implements spec.md §4.3's retry-policy rule: the
// attempt count comes from either the node's own policy or the global
// override, but the delay always comes from the node's own policy.
func effectiveRetryPolicy(n *Node, opts ExecuteOptions) retry.Policy {
	retries := n.Retry.Retries
	if opts.RetryFailedNodes {
		retries = opts.MaxRetries
	}
	if retries < 0 {
		retries = 0
	}
	delay := n.Retry.DelayMs
	if delay < 0 {
		delay = 0
	}
	return retry.Policy{MaxAttempts: retries + 1, Delay: delay}
}

// runScheduler executes order's nodes respecting dependency edges, with
// bounded concurrency, per-node retry, and a global timeout race
// (spec.md §4.3). Each node waits on its own parents via a private done
// channel rather than on the caller's iteration order, so independent
// branches proceed concurrently while multi-parent nodes block until every
// parent has resolved.
func runScheduler(ctx context.Context, order []*Node, fwd, rev map[string][]string, seed any, opts ExecuteOptions) (*runState, error) {
	state := newRunState()
	sinks := sinkIDs(order, fwd)
	required := ancestorSet(sinks, rev)
	sinkCount := len(sinks)

	var sem *semaphore.Weighted
	if opts.Concurrency > 0 {
		sem = semaphore.NewWeighted(int64(opts.Concurrency))
	}

	done := make(map[string]chan struct{}, len(order))
	for _, n := range order {
		done[n.ID] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for _, n := range order {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done[n.ID])

			for _, p := range n.inputs {
				<-done[p.ID]
			}

			missingRequired := false
			for _, p := range n.inputs {
				if _, ok := state.getResult(p.ID); !ok {
					exempt := opts.GracefulDegradation && !required[p.ID]
					if !exempt {
						missingRequired = true
					}
				}
			}
			if missingRequired {
				return
			}

			nonCritical := n.Optional ||
				(opts.GracefulDegradation && !required[n.ID] && !isRequiredOverride(n.ID, opts.RequiredNodes)) ||
				(sinkCount >= 2 && len(fwd[n.ID]) == 0)

			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					return
				}
				defer sem.Release(1)
			}

			input := assembleInput(n, seed, state)
			executeNode(ctx, n, input, fwd, nonCritical, opts, state)
		}()
	}

	runDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(runDone)
	}()

	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		select {
		case <-runDone:
		case <-timer.C:
			return state, &Error{Message: "Execution timeout"}
		}
	} else {
		<-runDone
	}
	return state, nil
}

// executeNode runs a single node to completion, including retries, and
// records either a result or an enriched error into state. Non-critical
// failures are logged per spec.md §4.3's exact warning format and never
// propagate beyond the error map.
func executeNode(ctx context.Context, n *Node, input any, fwd map[string][]string, nonCritical bool, opts ExecuteOptions, state *runState) {
	ctx, span := startNodeSpan(ctx, opts.Tracer, n.ID)

	if n.Run == nil {
		err := &Error{Message: fmt.Sprintf("Node %s has no run function", n.ID), NodeID: n.ID}
		recordFailure(n, err, nonCritical, opts, state)
		endSpan(span, err)
		return
	}

	policy := effectiveRetryPolicy(n, opts)
	result, _, err := retry.Do(ctx, policy, func(ctx context.Context) (any, error) {
		return n.Run(ctx, input)
	})
	if err != nil {
		enriched := Create(n.ID, err, CreateOptions{Downstream: fwd[n.ID]})
		recordFailure(n, enriched, nonCritical, opts, state)
		endSpan(span, enriched)
		return
	}
	state.setResult(n.ID, result)
	endSpan(span, nil)
}

func recordFailure(n *Node, err error, nonCritical bool, opts ExecuteOptions, state *runState) {
	state.setError(n.ID, err)
	if nonCritical || opts.ContinueOnError {
		opts.warn(fmt.Sprintf("Non-critical node failure: %s", err.Error()))
		if opts.Metrics != nil {
			opts.Metrics.observeNonCritical()
		}
	}
}
