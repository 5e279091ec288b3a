package graph

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for conditions that are structurally distinct from the
// enriched errors C1 produces (see Error below) — construction mistakes and
// engine misuse, in the same spirit as the teacher's ErrMaxStepsExceeded /
// ErrNoProgress sentinels (graph/errors.go, graph/checkpoint.go).
var (
	ErrNilRun        = errors.New("node has no run function")
	ErrNodeExists    = errors.New("node already exists")
	ErrNodeNotFound  = errors.New("node not found")
	ErrSelfEdge      = errors.New("self-edges are not permitted")
	ErrInvalidRetry  = errors.New("invalid retry policy")
	ErrNoCheckpoint  = errors.New("checkpoint not found")
	ErrPluginMissing = errors.New("plugin not found")
)

// Error is the enriched error value shared by every component in this
// module (spec.md §4.1, §7, §9 "Error metadata"). Rather than a family of
// exception subclasses, every failure mode in the engine is represented by
// this single value type, carrying whatever structured context applies.
type Error struct {
	// Message is the human-readable, already-formatted description.
	Message string

	// Cause is the original error that produced this one, if any.
	Cause error

	// NodeID identifies the node that failed, if this is a node error.
	NodeID string

	// Timestamp records when the error was constructed.
	Timestamp time.Time

	// Cycle holds the node id path of a detected cycle, e.g. ["A","B","A"].
	Cycle []string

	// Errors holds sub-errors for aggregate errors.
	Errors []error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap supports errors.Is / errors.As against Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// hasTimestamp reports whether a timestamp has been set.
func (e *Error) hasTimestamp() bool {
	return e != nil && !e.Timestamp.IsZero()
}

// CreateOptions configures Create.
type CreateOptions struct {
	// Downstream lists the ids of nodes affected by this node's failure.
	// When non-empty, the message is suffixed per spec.md §4.1.
	Downstream []string

	// Timestamp overrides the error's timestamp; zero means "now".
	Timestamp time.Time
}

// Create builds a node-execution error: "Node <id> execution failed:
// <cause>", optionally suffixed with the affected downstream ids
// (spec.md §4.1).
func Create(nodeID string, cause error, opts CreateOptions) *Error {
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := fmt.Sprintf("Node %s execution failed: %s", nodeID, causeMessage(cause))
	if len(opts.Downstream) > 0 {
		msg += fmt.Sprintf(". This affects downstream nodes: %s", strings.Join(opts.Downstream, ", "))
	}
	return &Error{
		Message:   msg,
		Cause:     cause,
		NodeID:    nodeID,
		Timestamp: ts,
	}
}

func causeMessage(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}

// Aggregate combines a map of per-node errors into a single error per
// spec.md §4.1: empty input returns nil, a single entry is returned
// unchanged, and two or more entries are wrapped as "Multiple execution
// errors" carrying each entry's Cause (or the entry itself if it has none).
//
// errorsByID's iteration order is not itself meaningful to the aggregate's
// semantics, but callers that need deterministic Errors ordering should
// pass ids in the order they want preserved via orderedIDs.
func Aggregate(errorsByID map[string]error, orderedIDs []string) error {
	if len(errorsByID) == 0 {
		return nil
	}
	if len(errorsByID) == 1 {
		for _, err := range errorsByID {
			return err
		}
	}
	ids := make([]string, 0, len(errorsByID))
	for _, id := range orderedIDs {
		if _, ok := errorsByID[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) != len(errorsByID) {
		ids = ids[:0]
		for id := range errorsByID {
			ids = append(ids, id)
		}
	}
	sub := make([]error, 0, len(ids))
	for _, id := range ids {
		err := errorsByID[id]
		if enriched, ok := err.(*Error); ok && enriched.Cause != nil {
			sub = append(sub, enriched.Cause)
		} else {
			sub = append(sub, err)
		}
	}
	return &Error{
		Message: "Multiple execution errors",
		Errors:  sub,
	}
}

// PreserveContext copies message and structured fields from src into a new
// Error, then merges in whatever fields of extra are not already set
// (spec.md §4.1 preserveContext).
func PreserveContext(src *Error, extra *Error) *Error {
	out := &Error{
		Message:   src.Message,
		NodeID:    src.NodeID,
		Timestamp: src.Timestamp,
		Cause:     src.Cause,
		Cycle:     src.Cycle,
		Errors:    src.Errors,
	}
	if extra == nil {
		return out
	}
	if out.NodeID == "" {
		out.NodeID = extra.NodeID
	}
	if !out.hasTimestamp() {
		out.Timestamp = extra.Timestamp
	}
	if out.Cause == nil {
		out.Cause = extra.Cause
	}
	if out.Cycle == nil {
		out.Cycle = extra.Cycle
	}
	if out.Errors == nil {
		out.Errors = extra.Errors
	}
	return out
}

// CreateCycleError builds the enriched error for a detected cycle,
// formatting path as "a -> b -> c" (spec.md §4.1, §4.2).
func CreateCycleError(path []string) *Error {
	return &Error{
		Message:   fmt.Sprintf("Cycle detected involving node: %s", strings.Join(path, " -> ")),
		Cycle:     path,
		Timestamp: time.Now(),
	}
}

// WrapExecution applies the wrap/halt policy table from spec.md §4.1: a
// node error or an already-DAG-wrapped error passes through unchanged; a
// cycle/validation/aggregate error is wrapped as "DAG execution failed:
// ..."; the two unwrapped sentinel messages ("Execution timeout", "DAG has
// no sink nodes...") pass through unchanged; everything else is wrapped.
func WrapExecution(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	enriched, isEnriched := err.(*Error)

	if isEnriched && enriched.NodeID != "" {
		return err
	}
	if strings.HasPrefix(msg, "Node ") || strings.HasPrefix(msg, "DAG execution failed") {
		return err
	}
	if msg == "Execution timeout" || msg == "DAG has no sink nodes - no final output available" {
		return err
	}
	if (isEnriched && (len(enriched.Cycle) > 0 || len(enriched.Errors) > 0)) || strings.HasPrefix(msg, "DAG validation failed") {
		wrapped := &Error{
			Message: fmt.Sprintf("DAG execution failed: %s", msg),
		}
		if isEnriched {
			wrapped.Cycle = enriched.Cycle
			wrapped.Errors = enriched.Errors
			wrapped.NodeID = enriched.NodeID
			wrapped.Timestamp = enriched.Timestamp
		}
		return wrapped
	}

	wrapped := &Error{Message: fmt.Sprintf("DAG execution failed: %s", msg)}
	if isEnriched {
		wrapped.Cycle = enriched.Cycle
		wrapped.Errors = enriched.Errors
		wrapped.NodeID = enriched.NodeID
		wrapped.Timestamp = enriched.Timestamp
	}
	return wrapped
}

// HaltOptions configures ShouldHaltExecution.
type HaltOptions struct {
	ContinueOnError bool
	IsNonCritical   bool
}

// ShouldHaltExecution implements spec.md §4.1's halt decision table.
func ShouldHaltExecution(err error, opts HaltOptions) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if enriched, ok := err.(*Error); ok && len(enriched.Cycle) > 0 {
		return true
	}
	if strings.HasPrefix(msg, "DAG validation failed") || strings.HasPrefix(msg, "DAG is empty") {
		return true
	}
	if msg == "Execution timeout" {
		return true
	}
	if enriched, ok := err.(*Error); ok && enriched.NodeID != "" {
		if !opts.IsNonCritical && !opts.ContinueOnError {
			return true
		}
		return false
	}
	return false
}

// SerializedCause is the depth-1 flattening of an error's cause chain used
// by Serialize.
type SerializedCause struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Serialized is the plain record produced by Serialize (spec.md §4.1).
type Serialized struct {
	Message   string            `json:"message"`
	NodeID    *string           `json:"nodeId"`
	Timestamp *time.Time        `json:"timestamp"`
	Cause     *SerializedCause  `json:"cause"`
	Cycle     []string          `json:"cycle"`
	Errors    []SerializedCause `json:"errors"`
}

// Serialize flattens an enriched error into a plain record suitable for
// logging or transport, cutting the cause chain to depth 1.
func Serialize(err *Error) Serialized {
	out := Serialized{Message: err.Message}
	if err.NodeID != "" {
		id := err.NodeID
		out.NodeID = &id
	}
	if err.hasTimestamp() {
		ts := err.Timestamp
		out.Timestamp = &ts
	}
	if err.Cause != nil {
		out.Cause = &SerializedCause{Message: err.Cause.Error()}
	}
	if len(err.Cycle) > 0 {
		out.Cycle = err.Cycle
	}
	if len(err.Errors) > 0 {
		out.Errors = make([]SerializedCause, len(err.Errors))
		for i, sub := range err.Errors {
			out.Errors[i] = SerializedCause{Message: sub.Error()}
		}
	}
	return out
}
