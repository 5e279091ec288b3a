package pipeline_test

import (
	"context"
	"testing"

	"github.com/ragdagio/ragdag/pipeline"
	"github.com/ragdagio/ragdag/pipeline/plugintest"
	"github.com/ragdagio/ragdag/registry"
)

func newTestPipeline(t *testing.T, opts pipeline.Options) (*pipeline.Pipeline, *plugintest.MockRetriever, *plugintest.MockLLM) {
	t.Helper()
	reg := registry.New()
	loader := &plugintest.MockLoader{Docs: []pipeline.Document{
		{ID: "doc1", Content: "go concurrency patterns"},
		{ID: "doc2", Content: "channels and goroutines"},
	}}
	embedder := &plugintest.MockEmbedder{}
	retriever := &plugintest.MockRetriever{}
	llm := &plugintest.MockLLM{Response: "final answer"}

	_ = reg.Register(registry.StageLoader, "mock", loader)
	_ = reg.Register(registry.StageEmbedder, "mock", embedder)
	_ = reg.Register(registry.StageRetriever, "mock", retriever)
	_ = reg.Register(registry.StageLLM, "mock", llm)
	_ = reg.Register(registry.StageReranker, "mock", pipeline.LexicalReranker{})

	cfg := pipeline.Config{Pipeline: []pipeline.PluginSelection{
		{Stage: "loader", Name: "mock"},
		{Stage: "embedder", Name: "mock"},
		{Stage: "retriever", Name: "mock"},
		{Stage: "llm", Name: "mock"},
		{Stage: "reranker", Name: "mock"},
	}}

	p, err := pipeline.NewPipeline(cfg, opts, reg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, retriever, llm
}

func TestIngestStoresEmbeddedChunks(t *testing.T) {
	p, retriever, _ := newTestPipeline(t, pipeline.Options{})
	if err := p.Ingest(context.Background(), "path/to/doc"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if retriever.StoredCount() != 2 {
		t.Fatalf("expected 2 stored chunks, got %d", retriever.StoredCount())
	}
}

func TestIngestParallelPathStoresSameChunks(t *testing.T) {
	p, retriever, _ := newTestPipeline(t, pipeline.Options{UseParallelProcessing: true, MaxConcurrency: 2})
	if err := p.Ingest(context.Background(), "path/to/doc"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if retriever.StoredCount() != 2 {
		t.Fatalf("expected 2 stored chunks via parallel path, got %d", retriever.StoredCount())
	}
}

func TestIngestRespectsEmbedderBatchSizeEnvVar(t *testing.T) {
	t.Setenv("RAG_EMBEDDER_BATCH_SIZE", "1")
	reg := registry.New()
	loader := &plugintest.MockLoader{Docs: []pipeline.Document{
		{ID: "doc1", Content: "alpha"},
		{ID: "doc2", Content: "beta"},
		{ID: "doc3", Content: "gamma"},
	}}
	embedder := &plugintest.MockEmbedder{}
	retriever := &plugintest.MockRetriever{}
	llm := &plugintest.MockLLM{}
	_ = reg.Register(registry.StageLoader, "mock", loader)
	_ = reg.Register(registry.StageEmbedder, "mock", embedder)
	_ = reg.Register(registry.StageRetriever, "mock", retriever)
	_ = reg.Register(registry.StageLLM, "mock", llm)

	cfg := pipeline.Config{Pipeline: []pipeline.PluginSelection{
		{Stage: "loader", Name: "mock"},
		{Stage: "embedder", Name: "mock"},
		{Stage: "retriever", Name: "mock"},
		{Stage: "llm", Name: "mock"},
	}}
	p, err := pipeline.NewPipeline(cfg, pipeline.Options{}, reg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if err := p.Ingest(context.Background(), "path/to/doc"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if embedder.CallCount() != 3 {
		t.Fatalf("expected one Embed call per chunk with batch size 1, got %d", embedder.CallCount())
	}
	if retriever.StoredCount() != 3 {
		t.Fatalf("expected 3 stored chunks, got %d", retriever.StoredCount())
	}
}

func TestQueryReturnsLLMAnswer(t *testing.T) {
	p, retriever, llm := newTestPipeline(t, pipeline.Options{UseReranker: true})
	_ = retriever.Store(context.Background(), []pipeline.Document{{ID: "doc1", Content: "go concurrency"}}, []pipeline.Vector{{1}})

	answer, err := p.Query(context.Background(), "go concurrency")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer != "final answer" {
		t.Fatalf("expected mock LLM response, got %q", answer)
	}
	if llm.CallCount() != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", llm.CallCount())
	}
}

func TestIngestStreamEmitsProcessedAndDoneEvents(t *testing.T) {
	p, _, _ := newTestPipeline(t, pipeline.Options{})
	events := p.IngestStream(context.Background(), "path/to/doc")

	var sawProcessed, sawDone bool
	for ev := range events {
		if ev.Processed != nil {
			sawProcessed = true
		}
		if ev.Done != nil {
			sawDone = true
			if ev.Done.ProcessedChunks != 2 {
				t.Fatalf("expected 2 processed chunks in summary, got %d", ev.Done.ProcessedChunks)
			}
		}
	}
	if !sawProcessed || !sawDone {
		t.Fatalf("expected both a processed and a done event, got processed=%v done=%v", sawProcessed, sawDone)
	}
}

func TestQueryStreamEmitsTokenThenDone(t *testing.T) {
	p, retriever, _ := newTestPipeline(t, pipeline.Options{})
	_ = retriever.Store(context.Background(), []pipeline.Document{{ID: "doc1", Content: "x"}}, []pipeline.Vector{{1}})

	events := p.QueryStream(context.Background(), "query")
	var sawToken, sawDone bool
	for ev := range events {
		if ev.Token != "" {
			sawToken = true
		}
		if ev.Done {
			sawDone = true
		}
	}
	if !sawToken || !sawDone {
		t.Fatalf("expected a token event then a done event, got token=%v done=%v", sawToken, sawDone)
	}
}
