// Package pipeline composes the five registered plugin stages (loader,
// embedder, retriever, reranker, llm) into the canonical RAG ingest and
// query operations (spec.md §4.6, C6), grounded on the teacher's
// graph/tool.Tool and graph/model.ChatModel capability-contract style.
package pipeline

import "context"

// Document is the unit produced by a Loader and consumed by the embedder
// and retriever stages.
type Document struct {
	ID      string
	Content string
	Score   float64
	Meta    map[string]any
}

// Chunk implements spec.md §6.1's chunk() contract: a Document splits
// itself into the text units the embedder consumes.
func (d Document) Chunk() []string {
	if d.Content == "" {
		return nil
	}
	return []string{d.Content}
}

// Vector is a fixed-length embedding. Its length is opaque to the core and
// is whatever the configured embedder produces.
type Vector []float64

// Loader loads documents from a source path or URI.
type Loader interface {
	Load(ctx context.Context, path string) ([]Document, error)
}

// Embedder turns text into vectors, for both ingest (bulk) and query
// (single) use.
type Embedder interface {
	Embed(ctx context.Context, items []string) ([]Vector, error)
	EmbedQuery(ctx context.Context, text string) (Vector, error)
}

// Retriever stores embedded documents and retrieves the closest matches to
// a query vector.
type Retriever interface {
	Store(ctx context.Context, docs []Document, vectors []Vector) error
	Retrieve(ctx context.Context, queryVector Vector, topK int) ([]Document, error)
}

// Reranker reorders retrieved documents by relevance to query, returning
// the same elements permuted (spec.md §4.7).
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document) ([]Document, error)
}

// LLM generates a final answer from a prompt and the retrieved context
// documents.
type LLM interface {
	Generate(ctx context.Context, prompt string, contextDocs []Document) (string, error)
}

// StreamingLLM is the optional streaming variant of LLM: tokens arrive on
// the returned channel, which is closed when generation finishes (the
// channel close is the "done" marker; errCh carries at most one error).
type StreamingLLM interface {
	GenerateStream(ctx context.Context, prompt string, contextDocs []Document) (tokens <-chan string, errCh <-chan error)
}
