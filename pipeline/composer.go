package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ragdagio/ragdag/graph"
	"github.com/ragdagio/ragdag/graph/emit"
	"github.com/ragdagio/ragdag/registry"
	"github.com/ragdagio/ragdag/retry"
)

// Options configures a Pipeline's middleware and execution strategy
// (spec.md §4.6).
type Options struct {
	UseReranker            bool
	UseParallelProcessing  bool
	UseStreamingSafeguards bool
	UseLogging             bool
	UseRetry               bool
	OnProgress             ProgressFunc
	MaxConcurrency         int
	ChunkBufferSize        int
	Emitter                emit.Emitter
}

// Pipeline is the canonical five-stage RAG pipeline built by NewPipeline
// (spec.md §4.6, C6): loader -> embedder -> retriever for ingest,
// embedder -> retriever -> [reranker] -> llm for query.
type Pipeline struct {
	loader    Loader
	embedder  Embedder
	retriever Retriever
	reranker  Reranker
	llm       LLM

	opts      Options
	emitter   emit.Emitter
	namespace string
	env       EnvDefaults
}

// NewPipeline resolves config.Pipeline's selections against reg and
// assembles a Pipeline. Missing required stages (loader, embedder,
// retriever, llm) are an error; reranker is only required when
// opts.UseReranker is set. The RAG_MAX_CONCURRENCY, RAG_NODE_TIMEOUT,
// RAG_EMBEDDER_BATCH_SIZE, and RAG_RETRIEVER_BATCH_SIZE env vars (spec.md
// §6.3) are read once here and used by Ingest; Query uses none of them.
func NewPipeline(config Config, opts Options, reg *registry.Registry) (*Pipeline, error) {
	p := &Pipeline{opts: opts, emitter: opts.Emitter, namespace: config.namespaceOrDefault(), env: LoadEnvDefaults()}
	if p.emitter == nil {
		p.emitter = emit.NullEmitter{}
	}

	selections := make(map[registry.Stage]string, len(config.Pipeline))
	for _, sel := range config.Pipeline {
		selections[registry.Stage(sel.Stage)] = sel.Name
	}

	loader, err := lookupAs[Loader](reg, registry.StageLoader, selections)
	if err != nil {
		return nil, err
	}
	embedder, err := lookupAs[Embedder](reg, registry.StageEmbedder, selections)
	if err != nil {
		return nil, err
	}
	retriever, err := lookupAs[Retriever](reg, registry.StageRetriever, selections)
	if err != nil {
		return nil, err
	}
	llm, err := lookupAs[LLM](reg, registry.StageLLM, selections)
	if err != nil {
		return nil, err
	}
	p.loader, p.embedder, p.retriever, p.llm = loader, embedder, retriever, llm

	if opts.UseReranker {
		reranker, err := lookupAs[Reranker](reg, registry.StageReranker, selections)
		if err != nil {
			return nil, err
		}
		p.reranker = reranker
	}
	return p, nil
}

func lookupAs[T any](reg *registry.Registry, stage registry.Stage, selections map[registry.Stage]string) (T, error) {
	var zero T
	name, ok := selections[stage]
	if !ok {
		return zero, fmt.Errorf("no plugin selected for stage %s", stage)
	}
	plugin, err := reg.Get(stage, name)
	if err != nil {
		return zero, err
	}
	typed, ok := plugin.(T)
	if !ok {
		return zero, fmt.Errorf("plugin %s/%s does not implement the expected stage contract", stage, name)
	}
	return typed, nil
}

func (p *Pipeline) progress(stage, message string, completed, total int) {
	if p.opts.OnProgress != nil {
		p.opts.OnProgress(ProgressEvent{Stage: stage, Message: message, Completed: completed, Total: total})
	}
	if p.opts.UseLogging {
		p.emitter.Emit(emit.Event{Stage: stage, Msg: message, Meta: map[string]any{"namespace": p.namespace}})
	}
}

// batchBounds splits [0, n) into chunks of size (or one chunk covering the
// whole range when size is non-positive or already covers n), implementing
// spec.md §6.3's embedder/retriever batch-size knobs.
func batchBounds(n, size int) [][2]int {
	if n == 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return [][2]int{{0, n}}
	}
	bounds := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		bounds = append(bounds, [2]int{start, end})
	}
	return bounds
}

func (p *Pipeline) withRetry(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if !p.opts.UseRetry {
		return fn(ctx)
	}
	result, _, err := retry.Do(ctx, retry.Policy{MaxAttempts: 3, Delay: 100}, fn)
	return result, err
}

// Ingest loads path, chunks each document, embeds the chunks, and stores
// the resulting vectors (spec.md §4.6 ingest). When opts.UseParallelProcessing
// is set, chunk embedding runs as a DAG so independent chunks embed
// concurrently; otherwise it runs as a straight-line call sequence.
func (p *Pipeline) Ingest(ctx context.Context, path string) error {
	runID := uuid.NewString()
	p.progress("loader", "loading "+path, 0, 0)
	docs, err := p.loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("ingest %s: load: %w", runID, err)
	}

	var chunkDocs []Document
	for _, d := range docs {
		for _, c := range d.Chunk() {
			chunkDocs = append(chunkDocs, Document{ID: d.ID, Content: c, Meta: d.Meta})
		}
	}
	p.progress("loader", "chunked documents", len(chunkDocs), len(chunkDocs))

	var vectors []Vector
	if p.opts.UseParallelProcessing && len(chunkDocs) > 1 {
		vectors, err = p.embedChunksParallel(ctx, chunkDocs)
		if err != nil {
			return fmt.Errorf("ingest %s: embed: %w", runID, err)
		}
	} else {
		texts := make([]string, len(chunkDocs))
		for i, d := range chunkDocs {
			texts[i] = d.Content
		}
		vectors = make([]Vector, 0, len(texts))
		for _, bound := range batchBounds(len(texts), p.env.EmbedderBatchSize) {
			batch := texts[bound[0]:bound[1]]
			result, embedErr := p.withRetry(ctx, func(ctx context.Context) (any, error) {
				return p.embedder.Embed(ctx, batch)
			})
			if embedErr != nil {
				return fmt.Errorf("ingest %s: embed: %w", runID, embedErr)
			}
			vectors = append(vectors, result.([]Vector)...)
		}
	}
	p.progress("embedder", "embedded chunks", len(vectors), len(chunkDocs))

	for _, bound := range batchBounds(len(chunkDocs), p.env.RetrieverBatchSize) {
		docBatch := chunkDocs[bound[0]:bound[1]]
		vecBatch := vectors[bound[0]:bound[1]]
		_, err = p.withRetry(ctx, func(ctx context.Context) (any, error) {
			return nil, p.retriever.Store(ctx, docBatch, vecBatch)
		})
		if err != nil {
			return fmt.Errorf("ingest %s: store: %w", runID, err)
		}
	}
	p.progress("retriever", "stored vectors", len(vectors), len(vectors))
	return nil
}

// embedChunksParallel builds a one-node-per-chunk DAG fanning into a
// single collector node, so independent chunks embed concurrently up to
// opts.MaxConcurrency (spec.md §4.6's useParallelProcessing option),
// falling back to RAG_MAX_CONCURRENCY (spec.md §6.3) when that field is
// unset. RAG_NODE_TIMEOUT, when set, bounds the whole chunk DAG run.
func (p *Pipeline) embedChunksParallel(ctx context.Context, chunks []Document) ([]Vector, error) {
	eng := graph.New()
	nodeIDs := make([]string, len(chunks))
	for i, c := range chunks {
		id := fmt.Sprintf("%s-chunk-%d", p.namespace, i)
		nodeIDs[i] = id
		text := c.Content
		if _, err := eng.AddNode(id, func(ctx context.Context, _ any) (any, error) {
			vecs, err := p.embedder.Embed(ctx, []string{text})
			if err != nil {
				return nil, err
			}
			if len(vecs) == 0 {
				return Vector(nil), nil
			}
			return vecs[0], nil
		}); err != nil {
			return nil, err
		}
	}
	const collectorID = "collect"
	if _, err := eng.AddNode(collectorID, func(_ context.Context, input any) (any, error) {
		return input, nil
	}); err != nil {
		return nil, err
	}
	for _, id := range nodeIDs {
		if err := eng.Connect(id, collectorID); err != nil {
			return nil, err
		}
	}

	concurrency := p.opts.MaxConcurrency
	if concurrency <= 0 {
		concurrency = p.env.MaxConcurrency
	}
	result, err := eng.Execute(ctx, graph.ExecuteOptions{Concurrency: concurrency, Timeout: p.env.NodeTimeout, Emitter: p.emitter})
	if err != nil {
		return nil, err
	}
	vectors := make([]Vector, len(chunks))
	for i, id := range nodeIDs {
		if v, ok := result.Get(id); ok {
			vectors[i], _ = v.(Vector)
		}
	}
	return vectors, nil
}

// Query embeds prompt, retrieves the closest documents, optionally
// reranks them, and generates a final answer (spec.md §4.6 query).
func (p *Pipeline) Query(ctx context.Context, prompt string) (string, error) {
	runID := uuid.NewString()
	p.progress("embedder", "embedding query", 0, 0)
	qv, err := p.embedder.EmbedQuery(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("query %s: embed: %w", runID, err)
	}

	p.progress("retriever", "retrieving documents", 0, 0)
	docs, err := p.retriever.Retrieve(ctx, qv, 0)
	if err != nil {
		return "", fmt.Errorf("query %s: retrieve: %w", runID, err)
	}

	if p.opts.UseReranker && p.reranker != nil {
		p.progress("reranker", "reranking documents", 0, len(docs))
		docs, err = p.reranker.Rerank(ctx, prompt, docs)
		if err != nil {
			return "", fmt.Errorf("query %s: rerank: %w", runID, err)
		}
	}

	p.progress("llm", "generating answer", 0, 0)
	answer, err := p.llm.Generate(ctx, prompt, docs)
	if err != nil {
		return "", fmt.Errorf("query %s: generate: %w", runID, err)
	}
	return answer, nil
}
