package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// LexicalReranker implements spec.md §4.7's deterministic token-overlap
// scoring: the semantic baseline every test in this repo pins its
// expectations against. It has no dependencies and never fails.
type LexicalReranker struct{}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func overlapCount(query map[string]bool, docTokens []string) int {
	seen := make(map[string]bool, len(docTokens))
	count := 0
	for _, t := range docTokens {
		if query[t] && !seen[t] {
			seen[t] = true
			count++
		}
	}
	return count
}

type scoredDoc struct {
	doc   Document
	score float64
	index int
}

// Rerank scores each document by |Q ∩ D_i| + 1e-4 * tokenCount(D_i), sorting
// descending with a stable ascending-index tie-break (spec.md §4.7 steps
// 1-4).
func (LexicalReranker) Rerank(_ context.Context, query string, docs []Document) ([]Document, error) {
	q := tokenSet(tokenize(query))
	scored := make([]scoredDoc, len(docs))
	for i, d := range docs {
		docTokens := tokenize(d.Content)
		overlap := overlapCount(q, docTokens)
		scored[i] = scoredDoc{
			doc:   d,
			score: float64(overlap) + 1e-4*float64(len(docTokens)),
			index: i,
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].index < scored[j].index
	})
	out := make([]Document, len(scored))
	for i, s := range scored {
		out[i] = s.doc
	}
	return out, nil
}

// LLMReranker asks an LLM for a relevance-ordered permutation of doc
// indices and falls back to LexicalReranker on any parse failure or
// out-of-range index, per spec.md §4.7's "implementations may ship an
// LLM-based variant… falls back to the lexical algorithm on invalid
// output" allowance. The expected response is a JSON array of zero-based
// indices, e.g. "[2,0,1]", parsed defensively with gjson.
type LLMReranker struct {
	LLM      LLM
	fallback LexicalReranker
}

// NewLLMReranker wraps llm with the lexical fallback.
func NewLLMReranker(llm LLM) *LLMReranker {
	return &LLMReranker{LLM: llm}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, docs []Document) ([]Document, error) {
	prompt := rerankPrompt(query, docs)
	raw, err := r.LLM.Generate(ctx, prompt, nil)
	if err != nil {
		return r.fallback.Rerank(ctx, query, docs)
	}
	order, ok := parsePermutation(raw, len(docs))
	if !ok {
		return r.fallback.Rerank(ctx, query, docs)
	}
	out := make([]Document, len(docs))
	for i, idx := range order {
		out[i] = docs[idx]
	}
	return out, nil
}

func rerankPrompt(query string, docs []Document) string {
	var b strings.Builder
	b.WriteString("Rank the following documents by relevance to the query: ")
	b.WriteString(query)
	b.WriteString("\nRespond with a JSON array of zero-based document indices, most relevant first.\n")
	for _, d := range docs {
		b.WriteString(strings.TrimSpace(d.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// parsePermutation validates that raw decodes to a JSON array containing
// exactly n distinct indices in [0, n).
func parsePermutation(raw string, n int) ([]int, bool) {
	result := gjson.Parse(strings.TrimSpace(raw))
	if !result.IsArray() {
		return nil, false
	}
	arr := result.Array()
	if len(arr) != n {
		return nil, false
	}
	seen := make(map[int]bool, n)
	out := make([]int, 0, n)
	for _, v := range arr {
		if !v.IsNumber() {
			return nil, false
		}
		idx := int(v.Int())
		if idx < 0 || idx >= n || seen[idx] {
			return nil, false
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out, true
}
