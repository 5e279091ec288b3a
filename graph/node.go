// Package graph provides the core DAG execution engine: topological
// validation, dependency-respecting scheduling, bounded concurrency,
// retry with backoff, checkpoint/resume, and aggregated error reporting.
package graph

import "context"

// RunFunc is a node's unit of work. It receives the assembled input for the
// node (the seed for a source node, the single parent's result for a node
// with one input, or an ordered slice of parent results for a fan-in node)
// and returns a result or an error.
//
// RunFunc bodies may be synchronous or may block on I/O; the scheduler
// treats every node as asynchronous regardless.
type RunFunc func(ctx context.Context, input any) (any, error)

// Node is a unit of work in the DAG.
//
// A Node's identity is its ID, stable and unique within a Graph. Its inputs
// and outputs are ordered sets of other nodes in the same graph, mutated
// only through Engine.Connect — never assigned to directly — so that
// multi-parent input assembly can rely on insertion order.
type Node struct {
	// ID is this node's stable identifier, unique within its graph.
	ID string

	// Run is the node's body. A nil Run is a construction error caught at
	// execution time ("Node <id> has no run function").
	Run RunFunc

	// Optional marks the node's failure as non-critical: the scheduler
	// records the error and continues instead of halting the run.
	Optional bool

	// Retry configures per-node retry behavior. The zero value means no
	// retries (one attempt only).
	Retry RetryPolicy

	inputs  []*Node // ordered parents, mutated only via connect
	outputs []*Node // ordered children, mutated only via connect
}

// Inputs returns this node's parent nodes in connection order.
func (n *Node) Inputs() []*Node {
	return n.inputs
}

// Outputs returns this node's child nodes in connection order.
func (n *Node) Outputs() []*Node {
	return n.outputs
}
