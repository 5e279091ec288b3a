package graph

import (
	"context"
	"os"
	"strconv"
	"sync"

	"github.com/ragdagio/ragdag/graph/emit"
	"github.com/ragdagio/ragdag/retry"
	"go.opentelemetry.io/otel/trace"
)

// Engine is the public DAG facade (spec.md §4.4, C4): node registration,
// connection, validation, and execution, grounded on the teacher's
// Engine[S]/New/Add/Connect/Run surface but generalised to spec.md's
// untyped any-payload model instead of the teacher's generic reducer state.
type Engine struct {
	mu          sync.Mutex
	nodes       map[string]*Node
	order       []*Node // insertion order, for stable default iteration
	checkpoints *checkpointStore
	metrics     *Metrics
	emitter     emit.Emitter
	tracer      trace.Tracer
}

// EngineOption configures a new Engine.
type EngineOption func(*Engine)

// WithMetrics registers a Metrics collector on the engine.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEmitter sets the engine's default event sink, used by the scheduler
// for non-critical failure warnings when Execute is called without its own
// Emitter.
func WithEmitter(em emit.Emitter) EngineOption {
	return func(e *Engine) { e.emitter = em }
}

// WithTracer sets the engine's default OpenTelemetry tracer.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// New constructs an empty Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		nodes:       make(map[string]*Node),
		checkpoints: newCheckpointStore(),
		emitter:     emit.NullEmitter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddNode registers a node. Returns ErrNodeExists if id is already present.
func (e *Engine) AddNode(id string, run RunFunc, opts ...NodeOption) (*Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.nodes[id]; exists {
		return nil, ErrNodeExists
	}
	n := &Node{ID: id, Run: run}
	for _, opt := range opts {
		opt(n)
	}
	e.nodes[id] = n
	e.order = append(e.order, n)
	return n, nil
}

// NodeOption configures a Node at AddNode time.
type NodeOption func(*Node)

// Optional marks a node's failure as non-critical.
func Optional() NodeOption {
	return func(n *Node) { n.Optional = true }
}

// WithRetry sets a node's retry policy.
func WithRetry(retries, delayMs int) NodeOption {
	return func(n *Node) { n.Retry = RetryPolicy{Retries: retries, DelayMs: delayMs} }
}

// Connect adds an edge from -> to, pushing to from's outputs and to's
// inputs in call order (spec.md §4.4: insertion order must be preserved
// because multi-parent input assembly depends on it).
func (e *Engine) Connect(from, to string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if from == to {
		return ErrSelfEdge
	}
	fromNode, ok := e.nodes[from]
	if !ok {
		return ErrNodeNotFound
	}
	toNode, ok := e.nodes[to]
	if !ok {
		return ErrNodeNotFound
	}
	fromNode.outputs = append(fromNode.outputs, toNode)
	toNode.inputs = append(toNode.inputs, fromNode)
	return nil
}

func (e *Engine) snapshotNodes() []*Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Node{}, e.order...)
}

// Validate runs C2's validateDAG.
func (e *Engine) Validate() error {
	_, err := validateDAG(e.snapshotNodes())
	return err
}

// ValidateTopology runs C2's validateTopology and returns any collected
// warnings.
func (e *Engine) ValidateTopology(opts TopologyOptions) ([]string, error) {
	return ValidateTopology(e.snapshotNodes(), opts)
}

// TopoSort returns the current topological order.
func (e *Engine) TopoSort() ([]*Node, error) {
	return topoSort(e.snapshotNodes())
}

// GetDownstreamNodes returns n's transitive descendants, excluding n
// itself (spec.md §4.4 getDownstreamNodes).
func (e *Engine) GetDownstreamNodes(n *Node) []*Node {
	seen := make(map[string]bool)
	var out []*Node
	var visit func(*Node)
	visit = func(cur *Node) {
		for _, child := range cur.outputs {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			out = append(out, child)
			visit(child)
		}
	}
	visit(n)
	return out
}

func resolveDefaults(opts ExecuteOptions) ExecuteOptions {
	if opts.Concurrency == 0 {
		if v := os.Getenv("RAG_MAX_CONCURRENCY"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				opts.Concurrency = n
			}
		}
	}
	if opts.RetryFailedNodes && opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Emitter == nil {
		opts.Emitter = emit.NullEmitter{}
	}
	return opts
}

// Execute runs the DAG to completion from opts.Seed, per spec.md §4.3's
// scheduling algorithm and §4.4's result-shaping rules. Any error returned
// has already passed through WrapExecution.
func (e *Engine) Execute(ctx context.Context, opts ExecuteOptions) (Result, error) {
	nodes := e.snapshotNodes()
	order, err := validateDAG(nodes)
	if err != nil {
		return Result{}, WrapExecution(err)
	}

	opts = resolveDefaults(opts)
	if _, ok := opts.Emitter.(emit.NullEmitter); ok && e.emitter != nil {
		opts.Emitter = e.emitter
	}
	if opts.Tracer == nil && e.tracer != nil {
		opts.Tracer = e.tracer
	}
	if opts.Metrics == nil && e.metrics != nil {
		opts.Metrics = e.metrics
	}

	adj := buildAdjacency(order)
	ctx, rootSpan := startRunSpan(ctx, opts.Tracer, len(order))
	state, timeoutErr := runScheduler(ctx, order, adj.fwd, adj.rev, opts.Seed, opts)
	results, errs := state.snapshot()
	if timeoutErr != nil {
		endSpan(rootSpan, timeoutErr)
		return Result{}, WrapExecution(timeoutErr)
	}
	endSpan(rootSpan, Aggregate(errs, nil))

	if opts.Metrics != nil {
		opts.Metrics.observeRun(results, errs)
	}

	if len(errs) >= 2 {
		orderedIDs := make([]string, len(order))
		for i, n := range order {
			orderedIDs[i] = n.ID
		}
		return Result{}, WrapExecution(Aggregate(errs, orderedIDs))
	}

	sinks := sinkIDs(order, adj.fwd)
	if len(sinks) == 0 {
		return Result{}, WrapExecution(soleOrEmptySinkError(errs))
	}

	successfulSinks := make([]string, 0, len(sinks))
	for _, id := range sinks {
		if _, ok := results[id]; ok {
			successfulSinks = append(successfulSinks, id)
		}
	}
	if len(successfulSinks) == 0 {
		return Result{}, WrapExecution(soleOrEmptySinkError(errs))
	}

	if opts.EnableCheckpoints && opts.CheckpointID != "" {
		e.checkpoints.save(opts.CheckpointID, results, errs)
		if e.metrics != nil {
			e.metrics.setCheckpointCount(len(e.checkpoints.list()))
		}
	}

	if opts.GracefulDegradation || opts.RetryFailedNodes || len(successfulSinks) >= 2 {
		sinkResults := make(map[string]any, len(successfulSinks))
		for _, id := range successfulSinks {
			sinkResults[id] = results[id]
		}
		if opts.GracefulDegradation && len(successfulSinks) < len(sinks) {
			return newPartial(sinkResults, results), nil
		}
		return newMultiSink(sinkResults, results), nil
	}
	return newSingleSink(results[successfulSinks[0]], results), nil
}

func soleOrEmptySinkError(errs map[string]error) error {
	if len(errs) == 1 {
		for _, err := range errs {
			return err
		}
	}
	return &Error{Message: "DAG has no sink nodes - no final output available"}
}

// CheckpointData is the resumable snapshot passed to Resume.
type CheckpointData struct {
	Completed []string
	Results   map[string]any
}

// Resume replays a run from a checkpoint, best-effort: node failures are
// logged and skipped rather than raised (spec.md §4.4 resume).
func (e *Engine) Resume(ctx context.Context, data CheckpointData, opts ExecuteOptions) (map[string]any, error) {
	nodes := e.snapshotNodes()
	order, err := validateDAG(nodes)
	if err != nil {
		return nil, WrapExecution(err)
	}
	opts = resolveDefaults(opts)

	completed := make(map[string]bool, len(data.Completed))
	for _, id := range data.Completed {
		completed[id] = true
	}
	state := newRunState()
	for id, v := range data.Results {
		state.setResult(id, v)
	}

	adj := buildAdjacency(order)
	for _, n := range order {
		if completed[n.ID] {
			continue
		}
		input := assembleInput(n, nil, state)
		result, _, err := runWithPolicy(ctx, n, input, opts)
		if err != nil {
			opts.warn("Node " + n.ID + " failed during resume: " + err.Error())
			continue
		}
		state.setResult(n.ID, result)
	}
	results, _ := state.snapshot()
	return results, nil
}

func runWithPolicy(ctx context.Context, n *Node, input any, opts ExecuteOptions) (any, int, error) {
	if n.Run == nil {
		return nil, 0, &Error{Message: "Node " + n.ID + " has no run function", NodeID: n.ID}
	}
	policy := effectiveRetryPolicy(n, opts)
	return retry.Do(ctx, policy, func(ctx context.Context) (any, error) {
		return n.Run(ctx, input)
	})
}

// SaveCheckpoint stores a checkpoint snapshot under id, generating one when
// id is empty, and returns the id used.
func (e *Engine) SaveCheckpoint(id string, results map[string]any, errs map[string]error) string {
	return e.checkpoints.save(id, results, errs)
}

// LoadCheckpoint retrieves a previously saved checkpoint.
func (e *Engine) LoadCheckpoint(id string) (Checkpoint, error) {
	return e.checkpoints.load(id)
}

// ListCheckpoints lists every stored checkpoint's summary.
func (e *Engine) ListCheckpoints() []CheckpointSummary {
	return e.checkpoints.list()
}

// ClearCheckpoint deletes a stored checkpoint, if present.
func (e *Engine) ClearCheckpoint(id string) {
	e.checkpoints.clear(id)
}
