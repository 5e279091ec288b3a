// Package emit provides the scheduler and pipeline's structured logging
// sink: a small Emitter interface plus a stdlib-only JSON implementation,
// grounded on the teacher's own emit package which never reaches for an
// external logging framework.
package emit

import "time"

// Event is a single structured log line emitted by the scheduler, engine,
// or pipeline composer.
type Event struct {
	// RunID identifies the Execute/Ingest/Query call this event belongs to.
	RunID string `json:"runId,omitempty"`

	// NodeID identifies the node this event concerns, if any.
	NodeID string `json:"nodeId,omitempty"`

	// Stage names the pipeline stage this event concerns, if any
	// (loader, embedder, retriever, reranker, llm).
	Stage string `json:"stage,omitempty"`

	// Msg is the human-readable message.
	Msg string `json:"msg"`

	// Meta carries arbitrary structured fields, e.g. attempt counts or
	// progress counters.
	Meta map[string]any `json:"meta,omitempty"`

	// Time is set by the Emitter if zero.
	Time time.Time `json:"time"`
}
