// Package plugintest provides thread-safe, call-recording mock
// implementations of every pipeline stage contract, grounded on the
// teacher's graph/model.MockChatModel: a small struct holding canned
// responses/errors plus a call log, safe for concurrent use by the
// parallel embed-chunk DAG path.
package plugintest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ragdagio/ragdag/pipeline"
)

// MockLoader returns a fixed document set for any path and records every
// call.
type MockLoader struct {
	mu    sync.Mutex
	Docs  []pipeline.Document
	Err   error
	Calls []string
}

func (m *MockLoader) Load(_ context.Context, path string) ([]pipeline.Document, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, path)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Docs, nil
}

func (m *MockLoader) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockEmbedder returns a deterministic vector per input (its length) so
// tests can assert on shape without caring about values, and optionally
// fails every call for retry-path tests.
type MockEmbedder struct {
	mu        sync.Mutex
	Err       error
	EmbedErrs map[int]error // nth Embed call (0-based) fails with this error
	calls     int
}

func (m *MockEmbedder) Embed(_ context.Context, items []string) ([]pipeline.Vector, error) {
	m.mu.Lock()
	call := m.calls
	m.calls++
	m.mu.Unlock()
	if err, ok := m.EmbedErrs[call]; ok {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]pipeline.Vector, len(items))
	for i, s := range items {
		out[i] = pipeline.Vector{float64(len(s))}
	}
	return out, nil
}

func (m *MockEmbedder) EmbedQuery(_ context.Context, text string) (pipeline.Vector, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return pipeline.Vector{float64(len(text))}, nil
}

func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRetriever records every stored document/vector pair and serves
// Retrieve from whatever was stored, in storage order, truncated to topK
// when positive.
type MockRetriever struct {
	mu      sync.Mutex
	Err     error
	stored  []pipeline.Document
	vectors []pipeline.Vector
}

func (m *MockRetriever) Store(_ context.Context, docs []pipeline.Document, vectors []pipeline.Vector) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, docs...)
	m.vectors = append(m.vectors, vectors...)
	return nil
}

func (m *MockRetriever) Retrieve(_ context.Context, _ pipeline.Vector, topK int) ([]pipeline.Document, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := append([]pipeline.Document{}, m.stored...)
	if topK > 0 && topK < len(docs) {
		docs = docs[:topK]
	}
	return docs, nil
}

func (m *MockRetriever) StoredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

// MockLLM returns a canned response and records every prompt it is asked
// to answer.
type MockLLM struct {
	mu       sync.Mutex
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLM) Generate(_ context.Context, prompt string, _ []pipeline.Document) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return fmt.Sprintf("answer to: %s", prompt), nil
}

func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
