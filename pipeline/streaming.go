package pipeline

import "context"

// IngestStream ingests path, emitting a ChunkProcessed event per
// successfully embedded-and-stored chunk, a ChunkFailed event per failed
// chunk (failures do not terminate the stream), and a terminal IngestEvent
// carrying an IngestSummary (spec.md §4.8). Cancelling ctx stops emission
// and closes the returned channel; any chunk embed/store call already in
// flight is allowed to finish but its result is discarded.
func (p *Pipeline) IngestStream(ctx context.Context, path string) <-chan IngestEvent {
	bufSize := 0
	if p.opts.UseStreamingSafeguards {
		bufSize = 1
	}
	out := make(chan IngestEvent, bufSize)

	go func() {
		defer close(out)

		docs, err := p.loader.Load(ctx, path)
		if err != nil {
			return
		}
		var chunks []Document
		for _, d := range docs {
			for _, c := range d.Chunk() {
				chunks = append(chunks, Document{ID: d.ID, Content: c, Meta: d.Meta})
			}
		}

		total := len(chunks)
		processed, failed := 0, 0
		for i, c := range chunks {
			select {
			case <-ctx.Done():
				return
			default:
			}

			vecs, embedErr := p.embedder.Embed(ctx, []string{c.Content})
			if embedErr == nil && len(vecs) > 0 {
				embedErr = p.retriever.Store(ctx, []Document{c}, vecs)
			}
			if embedErr != nil {
				failed++
				select {
				case out <- IngestEvent{Failed: &ChunkFailed{ChunkID: chunkID(c, i), Err: embedErr}}:
				case <-ctx.Done():
					return
				}
				continue
			}
			processed++
			select {
			case out <- IngestEvent{Processed: &ChunkProcessed{Processed: processed, Total: total}}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- IngestEvent{Done: &IngestSummary{TotalChunks: total, ProcessedChunks: processed, FailedChunks: failed}}:
		case <-ctx.Done():
		}
	}()

	return out
}

func chunkID(d Document, index int) string {
	if d.ID != "" {
		return d.ID
	}
	return "chunk-" + itoa(index)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// QueryStream embeds prompt, retrieves and optionally reranks documents,
// then streams the LLM's tokens, terminating with a done event (spec.md
// §4.8). If the configured LLM does not implement StreamingLLM, the whole
// answer is emitted as a single token followed by done.
func (p *Pipeline) QueryStream(ctx context.Context, prompt string) <-chan QueryEvent {
	out := make(chan QueryEvent, 1)
	go func() {
		defer close(out)

		qv, err := p.embedder.EmbedQuery(ctx, prompt)
		if err != nil {
			return
		}
		docs, err := p.retriever.Retrieve(ctx, qv, 0)
		if err != nil {
			return
		}
		if p.opts.UseReranker && p.reranker != nil {
			docs, err = p.reranker.Rerank(ctx, prompt, docs)
			if err != nil {
				return
			}
		}

		if streaming, ok := p.llm.(StreamingLLM); ok {
			tokens, errCh := streaming.GenerateStream(ctx, prompt, docs)
			for {
				select {
				case tok, more := <-tokens:
					if !more {
						select {
						case out <- QueryEvent{Done: true}:
						case <-ctx.Done():
						}
						return
					}
					select {
					case out <- QueryEvent{Token: tok}:
					case <-ctx.Done():
						return
					}
				case <-errCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}

		answer, err := p.llm.Generate(ctx, prompt, docs)
		if err != nil {
			return
		}
		select {
		case out <- QueryEvent{Token: answer}:
		case <-ctx.Done():
			return
		}
		select {
		case out <- QueryEvent{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out
}
